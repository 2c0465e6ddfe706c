package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Logger is the structured logger for hot paths; logrus stays the
	// repo-wide default.
	Logger *zap.Logger

	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_verdicts_total",
			Help: "Total number of moderation verdicts by recommended action",
		},
		[]string{"action"},
	)

	violationCategoriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_violation_categories_total",
			Help: "Total number of violations by check category",
		},
		[]string{"category"},
	)

	challengeOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_outcomes_total",
			Help: "Total number of resolved challenges by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	messageProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "message_processing_duration_seconds",
			Help:    "Time spent evaluating and acting on messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

func Init(ctx context.Context, metricsAddr string) error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(verdictsTotal)
	prometheus.MustRegister(violationCategoriesTotal)
	prometheus.MustRegister(challengeOutcomesTotal)
	prometheus.MustRegister(messageProcessingDuration)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("error", err.Error()).Error("metrics server failed")
		}
	}()

	return nil
}

// RecordVerdict records one evaluated message outcome. Categories must come
// from the fixed check identifiers, never from free-form reason text.
func RecordVerdict(action string, categories []string) {
	verdictsTotal.WithLabelValues(action).Inc()
	for _, category := range categories {
		violationCategoriesTotal.WithLabelValues(category).Inc()
	}
}

func RecordChallengeOutcome(kind, outcome string) {
	challengeOutcomesTotal.WithLabelValues(kind, outcome).Inc()
}

// StartMessageProcessing returns a closure that records the elapsed
// processing time under the given status.
func StartMessageProcessing() func(status string) {
	start := time.Now()
	return func(status string) {
		messageProcessingDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
