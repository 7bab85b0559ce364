// Package detector decides when a probe fetch needs headless rendering.
package detector

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gardenbot/stock-watcher/internal/stock"
)

// Heuristic implements stock.RenderDetector using simple HTML signals.
type Heuristic struct {
	minHTMLBytes int
	mustSelector string
	keywords     [][]byte
}

// NewHeuristic constructs a detector with the configured thresholds. The
// mustSelector is the element a fully rendered stock page always contains.
func NewHeuristic(minBytes int, mustSelector string, keywords []string) *Heuristic {
	lowerKeywords := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowerKeywords = append(lowerKeywords, bytes.ToLower([]byte(kw)))
	}
	return &Heuristic{
		minHTMLBytes: minBytes,
		mustSelector: mustSelector,
		keywords:     lowerKeywords,
	}
}

// ShouldPromote inspects the probe result for signals that the stock items
// only appear after JavaScript execution.
func (d *Heuristic) ShouldPromote(probe stock.ScrapeResult) bool {
	if d == nil {
		return false
	}
	switch {
	case len(probe.Items) > 0:
		return false
	case d.bodyBelowThreshold(probe.HTML):
		return true
	case d.containsKeywords(probe.HTML):
		return true
	default:
		return d.missingSelector(probe.HTML)
	}
}

func (d *Heuristic) bodyBelowThreshold(body []byte) bool {
	return d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes
}

func (d *Heuristic) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lowerBody := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lowerBody, kw) {
			return true
		}
	}
	return false
}

func (d *Heuristic) missingSelector(body []byte) bool {
	if d.mustSelector == "" || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	return doc.Find(d.mustSelector).Length() == 0
}
