// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Chat log
	ChatEventsAppended prometheus.Counter
	ChatEventsStored   prometheus.Gauge

	// Control bridge; result=sent|failed|no_target
	ControlMessages *prometheus.CounterVec
	ControlRedials  prometheus.Counter

	// Status registry and reconciliation (bot side)
	StatusUpdates  prometheus.Counter
	ReconcilePolls *prometheus.CounterVec // result=unchanged|converged|error
	ChannelJoins   prometheus.Counter
	ChannelParts   prometheus.Counter

	// Ownership correlation
	Correlations          *prometheus.CounterVec // result=ok|no_wallets|error
	TemplatesSkipped      prometheus.Counter
	LedgerRequestDuration *prometheus.HistogramVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatEventsAppended = promauto.NewCounter(prometheus.CounterOpts{Name: "jackbot_chat_events_appended_total", Help: "Chat events appended to the in-memory log"})
		ChatEventsStored = promauto.NewGauge(prometheus.GaugeOpts{Name: "jackbot_chat_events_stored", Help: "Chat events currently held in the log"})
		ControlMessages = promauto.NewCounterVec(prometheus.CounterOpts{Name: "jackbot_control_messages_total", Help: "Control messages by outcome"}, []string{"result"})
		ControlRedials = promauto.NewCounter(prometheus.CounterOpts{Name: "jackbot_control_redials_total", Help: "Control socket rebuilds after a target change"})
		StatusUpdates = promauto.NewCounter(prometheus.CounterOpts{Name: "jackbot_status_updates_total", Help: "Bot status replacements"})
		ReconcilePolls = promauto.NewCounterVec(prometheus.CounterOpts{Name: "jackbot_reconcile_polls_total", Help: "Reconciliation polls by outcome"}, []string{"result"})
		ChannelJoins = promauto.NewCounter(prometheus.CounterOpts{Name: "jackbot_channel_joins_total", Help: "Channels joined by reconciliation"})
		ChannelParts = promauto.NewCounter(prometheus.CounterOpts{Name: "jackbot_channel_parts_total", Help: "Channels departed by reconciliation"})
		Correlations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "jackbot_ownership_correlations_total", Help: "Ownership correlations by outcome"}, []string{"result"})
		TemplatesSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "jackbot_ownership_templates_skipped_total", Help: "NFT templates skipped during correlation"})
		LedgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "jackbot_ledger_request_duration_seconds", Help: "Ledger connector request duration seconds", Buckets: prometheus.DefBuckets}, []string{"op"})
		HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "jackbot_http_requests_total", Help: "HTTP requests by method, route and status"}, []string{"method", "route", "status"})
	})
}

// RecordChatAppend counts an appended event and records the log size.
func RecordChatAppend(size int) {
	if ChatEventsAppended != nil {
		ChatEventsAppended.Inc()
		ChatEventsStored.Set(float64(size))
	}
}

// RecordControlMessage counts a control-bridge send outcome.
func RecordControlMessage(result string) {
	if ControlMessages != nil {
		ControlMessages.WithLabelValues(result).Inc()
	}
}

// RecordControlRedial counts a control socket rebuild.
func RecordControlRedial() {
	if ControlRedials != nil {
		ControlRedials.Inc()
	}
}

// RecordStatusUpdate counts a status replacement.
func RecordStatusUpdate() {
	if StatusUpdates != nil {
		StatusUpdates.Inc()
	}
}

// RecordReconcilePoll counts a reconciliation poll and its join/part effects.
func RecordReconcilePoll(result string, joined, parted int) {
	if ReconcilePolls == nil {
		return
	}
	ReconcilePolls.WithLabelValues(result).Inc()
	ChannelJoins.Add(float64(joined))
	ChannelParts.Add(float64(parted))
}

// RecordCorrelation counts a correlation outcome and any skipped templates.
func RecordCorrelation(result string, skipped int) {
	if Correlations == nil {
		return
	}
	Correlations.WithLabelValues(result).Inc()
	TemplatesSkipped.Add(float64(skipped))
}

// ObserveLedger records a ledger request duration for op.
func ObserveLedger(op string, d time.Duration) {
	if LedgerRequestDuration != nil {
		LedgerRequestDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// RecordHTTPRequest counts a served HTTP request.
func RecordHTTPRequest(method, route string, status int) {
	if HTTPRequests != nil {
		HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
