// Package scraper extracts stock items from storefront page HTML.
package scraper

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

// Selectors the storefront renders for each stock row. The name lives in an
// h2 and the stock label is colored green (in stock) or red (out of stock).
const (
	ItemSelector  = ".seed-item"
	nameSelector  = "h2"
	labelSelector = "p.text-green-500, p.text-red-500"
)

// ParseItems extracts all stock rows from the page HTML. A page that parses
// but contains no rows returns an empty slice and no error; the caller
// decides whether that means the page was not rendered.
func ParseItems(html []byte) ([]stock.Item, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	var items []stock.Item
	doc.Find(ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		name := sel.Find(nameSelector).First().Text()
		label := sel.Find(labelSelector).First().Text()
		if name == "" {
			return
		}
		items = append(items, stock.NewItem(name, label))
	})
	return items, nil
}
