package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API metrics
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "salonforge_api_request_duration_seconds",
			Help:    "API request duration in seconds by endpoint",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 11), // 50ms to ~51s
		},
		[]string{"endpoint", "status"},
	)

	// Generation metrics
	generationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonforge_generation_total",
			Help: "Total number of settled generate submissions",
		},
		[]string{"outcome"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "salonforge_generation_duration_seconds",
			Help:    "Wall time from submit to settle",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s to ~128s
		},
		[]string{"outcome"},
	)

	featuredLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salonforge_featured_loads_total",
			Help: "Featured keyword loads by result",
		},
		[]string{"result"}, // "success", "cache_hit", "fallback" or a failure kind
	)

	progressJump = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salonforge_progress_completion_jump_percent",
			Help:    "How far the progress bar jumped when the request settled",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

// Collector provides convenience methods for recording metrics. It
// satisfies the observer interfaces of the api, session, featured and
// progress packages.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// RecordAPIRequest records an API request duration. statusCode 0 means the
// request never received a response.
func (c *Collector) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	apiRequestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

// RecordGeneration records one settled submit
func (c *Collector) RecordGeneration(kind string, duration time.Duration) {
	generationTotal.WithLabelValues(kind).Inc()
	generationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordFeaturedLoad counts one featured keyword load
func (c *Collector) RecordFeaturedLoad(result string) {
	featuredLoads.WithLabelValues(result).Inc()
}

// RecordProgressJump records the gap Complete closed
func (c *Collector) RecordProgressJump(delta int) {
	progressJump.Observe(float64(delta))
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.logger.Info("Serving metrics", "addr", addr, "path", "/metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
