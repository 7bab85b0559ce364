package stock

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var quantityPattern = regexp.MustCompile(`Stock:\s*(\d+)`)

// ParseQuantity extracts the numeric quantity from a stock label such as
// "Stock: 3". A label with no match means the item is out of stock.
func ParseQuantity(label string) int {
	m := quantityPattern.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// NormalizeName cleans a scraped item name so it can be compared against the
// target list. The page suffixes names with " Seed".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, " Seed")
	return strings.TrimSpace(name)
}

// NewItem builds an Item from the raw name and stock label text.
func NewItem(rawName, rawLabel string) Item {
	qty := ParseQuantity(rawLabel)
	return Item{
		Name:     NormalizeName(rawName),
		Quantity: qty,
		InStock:  qty > 0,
		RawLabel: strings.TrimSpace(rawLabel),
	}
}

// TargetSet holds the configured target names for case-insensitive matching.
type TargetSet struct {
	names map[string]string
}

// NewTargetSet builds a TargetSet from configured names. Empty entries are
// dropped.
func NewTargetSet(names []string) TargetSet {
	set := make(map[string]string, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		set[strings.ToLower(n)] = n
	}
	return TargetSet{names: set}
}

// Contains reports whether the normalized item name is a target.
func (t TargetSet) Contains(name string) bool {
	_, ok := t.names[strings.ToLower(NormalizeName(name))]
	return ok
}

// Len returns the number of configured targets.
func (t TargetSet) Len() int {
	return len(t.names)
}

// Filter returns the items whose names are targets, preserving input order.
func (t TargetSet) Filter(items []Item) []Item {
	var hits []Item
	for _, item := range items {
		if t.Contains(item.Name) {
			hits = append(hits, item)
		}
	}
	return hits
}

// Fingerprint returns a stable identity for the in-stock state of the given
// items. Two snapshots with the same available targets and quantities share a
// fingerprint regardless of item order.
func Fingerprint(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if !item.InStock {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(item.Name), item.Quantity))
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}
