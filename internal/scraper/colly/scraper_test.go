package collyscraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const renderedPage = `<!DOCTYPE html>
<html><body>
<div class="seed-item">
  <h2>Beanstalk Seed</h2>
  <p class="text-green-500">Stock: 2</p>
</div>
</body></html>`

func TestScrape_ParsesStaticItems(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(renderedPage))
	}))
	defer srv.Close()

	s := New(Config{UserAgent: "stock-watcher-test/1.0", Timeout: 5 * time.Second})
	result, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, result.StatusCode)
	require.False(t, result.UsedHeadless)
	require.Equal(t, "stock-watcher-test/1.0", gotUA)
	require.Len(t, result.Items, 1)
	require.Equal(t, "Beanstalk", result.Items[0].Name)
	require.Equal(t, 2, result.Items[0].Quantity)
}

func TestScrape_EmptyAppShellReturnsNoItems(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="app"></div></body></html>`))
	}))
	defer srv.Close()

	s := New(Config{Timeout: 5 * time.Second})
	result, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Empty(t, result.Items)
	require.NotEmpty(t, result.HTML)
}

func TestScrape_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(Config{Timeout: 5 * time.Second})
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "probe")
}
