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

	// Chat gateway counters
	ChatSessions    prometheus.Counter
	ChatMessages    prometheus.Counter
	ChatNotices     prometheus.Counter
	ChatDropped     prometheus.Counter // PRIVMSG lines that failed the parser
	ChatPings       prometheus.Counter
	ChatSent        prometheus.Counter // outbound caller messages written
	ChatDisconnects prometheus.Counter

	// Upstream API counters
	GQLRequests   prometheus.Counter
	GQLErrors     prometheus.Counter
	HelixRequests prometheus.Counter
	HelixErrors   prometheus.Counter

	// Histograms (seconds)
	EmoteFetchDuration prometheus.Observer

	// Gauges
	SSESubscribersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatSessions = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_sessions_started_total", Help: "Number of chat sessions established"})
		ChatMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_total", Help: "Number of chat messages parsed and emitted"})
		ChatNotices = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_notices_total", Help: "Number of server notices emitted"})
		ChatDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_dropped_frames_total", Help: "Number of malformed chat lines dropped"})
		ChatPings = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_pings_sent_total", Help: "Number of keepalive pings sent"})
		ChatSent = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_outbound_sent_total", Help: "Number of caller messages written to the wire"})
		ChatDisconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_disconnects_total", Help: "Number of read loop terminations"})
		GQLRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_gql_requests_total", Help: "Number of GQL requests issued"})
		GQLErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_gql_errors_total", Help: "Number of GQL requests that failed"})
		HelixRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_helix_requests_total", Help: "Number of Helix requests issued"})
		HelixErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_helix_errors_total", Help: "Number of Helix requests that failed"})
		EmoteFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "emote_fetch_duration_seconds", Help: "Third-party emote fetch duration seconds", Buckets: prometheus.DefBuckets})
		SSESubscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_sse_subscribers", Help: "Current number of SSE event subscribers"})
	})
}

// The Inc helpers are nil-guarded so packages exercised in tests don't need
// Init to have run.

func IncChatSessions()    { inc(ChatSessions) }
func IncChatMessages()    { inc(ChatMessages) }
func IncChatNotices()     { inc(ChatNotices) }
func IncChatDropped()     { inc(ChatDropped) }
func IncChatPings()       { inc(ChatPings) }
func IncChatSent()        { inc(ChatSent) }
func IncChatDisconnects() { inc(ChatDisconnects) }
func IncGQLRequests()     { inc(GQLRequests) }
func IncGQLErrors()       { inc(GQLErrors) }
func IncHelixRequests()   { inc(HelixRequests) }
func IncHelixErrors()     { inc(HelixErrors) }

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetSSESubscribers records the current number of event stream subscribers.
func SetSSESubscribers(n int) {
	if SSESubscribersGauge != nil {
		SSESubscribersGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
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

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
