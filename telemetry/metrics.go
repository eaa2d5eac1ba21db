// Package telemetry provides Prometheus metrics, OpenTelemetry tracing and correlation-id aware logging helpers.
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

	// Counters
	CommandsTotal     *prometheus.CounterVec // labels: command, platform
	RecordsAdded      *prometheus.CounterVec // labels: kind
	RecordsDeleted    *prometheus.CounterVec // labels: kind
	StreamChecks      *prometheus.CounterVec // labels: result (live|offline|error)
	AnnouncementsSent prometheus.Counter
	DailyMessagesSent prometheus.Counter

	// Histograms (seconds)
	CommandDuration prometheus.Observer

	// Gauges
	StreamLiveGauge prometheus.Gauge // 1=live,0=offline
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_total", Help: "Number of commands handled"}, []string{"command", "platform"})
		RecordsAdded = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_records_added_total", Help: "Number of memes/quotes stored"}, []string{"kind"})
		RecordsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_records_deleted_total", Help: "Number of memes/quotes deleted by admins"}, []string{"kind"})
		StreamChecks = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_stream_checks_total", Help: "Number of live status checks by result"}, []string{"result"})
		AnnouncementsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_stream_announcements_total", Help: "Number of go-live announcements sent"})
		DailyMessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_daily_messages_total", Help: "Number of scheduled daily messages sent"})
		CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_command_duration_seconds", Help: "Command handling duration seconds", Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5}})
		StreamLiveGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_stream_live", Help: "Streamer live=1 offline=0"})
	})
}

// IncCommand counts one handled command. Callers pass "unknown" for unrecognised tokens.
func IncCommand(command, platform string) {
	if CommandsTotal != nil {
		CommandsTotal.WithLabelValues(command, platform).Inc()
	}
}

// IncRecordAdded counts a stored record.
func IncRecordAdded(kind string) {
	if RecordsAdded != nil {
		RecordsAdded.WithLabelValues(kind).Inc()
	}
}

// IncRecordDeleted counts a deleted record.
func IncRecordDeleted(kind string) {
	if RecordsDeleted != nil {
		RecordsDeleted.WithLabelValues(kind).Inc()
	}
}

// ObserveStreamCheck counts a status check and, unless it failed, updates the live gauge.
func ObserveStreamCheck(result string, live bool) {
	if StreamChecks != nil {
		StreamChecks.WithLabelValues(result).Inc()
	}
	if StreamLiveGauge != nil && result != "error" {
		if live {
			StreamLiveGauge.Set(1)
		} else {
			StreamLiveGauge.Set(0)
		}
	}
}

// IncAnnouncement counts a go-live announcement.
func IncAnnouncement() {
	if AnnouncementsSent != nil {
		AnnouncementsSent.Inc()
	}
}

// IncDailyMessage counts a scheduled daily message.
func IncDailyMessage() {
	if DailyMessagesSent != nil {
		DailyMessagesSent.Inc()
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
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
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
