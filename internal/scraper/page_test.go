package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html><body>
<div class="seed-list">
  <div class="seed-item">
    <h2>Beanstalk Seed</h2>
    <p class="text-green-500">Stock: 3</p>
  </div>
  <div class="seed-item">
    <h2>Sugar Apple Seed</h2>
    <p class="text-red-500">Stock: 0</p>
  </div>
  <div class="seed-item">
    <h2>Carrot Seed</h2>
    <p class="text-green-500">Stock: 12</p>
  </div>
  <div class="seed-item">
    <h2></h2>
    <p class="text-red-500">Stock: 0</p>
  </div>
</div>
</body></html>`

func TestParseItems(t *testing.T) {
	t.Parallel()

	items, err := ParseItems([]byte(samplePage))
	require.NoError(t, err)
	require.Len(t, items, 3, "rows with empty names are skipped")

	require.Equal(t, "Beanstalk", items[0].Name)
	require.Equal(t, 3, items[0].Quantity)
	require.True(t, items[0].InStock)

	require.Equal(t, "Sugar Apple", items[1].Name)
	require.False(t, items[1].InStock)

	require.Equal(t, "Carrot", items[2].Name)
	require.Equal(t, 12, items[2].Quantity)
}

func TestParseItems_EmptyPage(t *testing.T) {
	t.Parallel()

	items, err := ParseItems([]byte(`<html><body><div id="app"></div></body></html>`))
	require.NoError(t, err)
	require.Empty(t, items)
}
