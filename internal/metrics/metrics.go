// Package metrics exposes Prometheus collectors for the stock-watcher service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	checksTotal             *prometheus.CounterVec
	scrapeDurationSeconds   *prometheus.HistogramVec
	headlessPromotionsTotal prometheus.Counter
	seedQuantity            *prometheus.GaugeVec
	targetsInStock          prometheus.Gauge
	alertsTotal             *prometheus.CounterVec
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_checks_total",
				Help: "Total number of stock checks, labeled by status and trigger.",
			},
			[]string{"status", "trigger"},
		)

		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockwatch_scrape_duration_seconds",
				Help:    "Histogram of scrape latencies, labeled by fetch mode.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"mode"},
		)

		headlessPromotionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stockwatch_headless_promotions_total",
				Help: "Total probe fetches promoted to headless rendering.",
			},
		)

		seedQuantity = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockwatch_seed_quantity",
				Help: "Last observed quantity per target seed.",
			},
			[]string{"seed"},
		)

		targetsInStock = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockwatch_targets_in_stock",
				Help: "Number of target seeds currently in stock.",
			},
		)

		alertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_alerts_total",
				Help: "Total alerts attempted, labeled by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCheck increments the check counter for the given status and trigger.
func ObserveCheck(status, trigger string) {
	checksTotal.WithLabelValues(status, trigger).Inc()
}

// ObserveScrape records the duration of a scrape in the given mode
// ("probe" or "headless").
func ObserveScrape(mode string, duration time.Duration) {
	scrapeDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveHeadlessPromotion increments the promotion counter.
func ObserveHeadlessPromotion() {
	headlessPromotionsTotal.Inc()
}

// SetSeedQuantity records the last observed quantity for a target seed.
func SetSeedQuantity(seed string, quantity int) {
	seedQuantity.WithLabelValues(seed).Set(float64(quantity))
}

// SetTargetsInStock records how many target seeds are currently available.
func SetTargetsInStock(n int) {
	targetsInStock.Set(float64(n))
}

// ObserveAlert increments the alert counter for the channel and outcome.
func ObserveAlert(channel, outcome string) {
	alertsTotal.WithLabelValues(channel, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
