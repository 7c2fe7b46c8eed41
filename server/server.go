package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/secousse/backend/telemetry"
)

// NewMux returns the HTTP handler with all routes, wrapped with the
// correlation-id injector, tracing middleware and CORS.
func NewMux(h *Handlers) http.Handler {
	corsCfg := loadCORSConfig()

	mux := http.NewServeMux()

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health and status
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.HandleFunc("/readyz", h.HandleReadyz)
	mux.HandleFunc("/status", h.HandleStatus)

	// OAuth
	mux.HandleFunc("/auth/twitch/start", h.HandleOAuthStart)
	mux.HandleFunc("/auth/twitch/callback", h.HandleOAuthCallback)
	mux.HandleFunc("/auth/twitch/status", h.HandleOAuthStatus)
	mux.HandleFunc("/auth/twitch/logout", h.HandleOAuthLogout)

	// Chat gateway
	mux.HandleFunc("/chat/connect", h.HandleChatConnect)
	mux.HandleFunc("/chat/disconnect", h.HandleChatDisconnect)
	mux.HandleFunc("/chat/send", h.HandleChatSend)
	mux.HandleFunc("/chat/events", h.HandleChatEvents)

	// Streams and channels
	mux.HandleFunc("/streams/top", h.HandleTopStreams)
	mux.HandleFunc("/streams/followed", h.HandleFollowedStreams)
	mux.HandleFunc("/channels/", h.HandleChannel)
	mux.HandleFunc("/channels", h.HandleChannels)
	mux.HandleFunc("/search", h.HandleSearch)
	mux.HandleFunc("/playback/", h.HandlePlayback)
	mux.HandleFunc("/watch", h.HandleWatch)

	// Viewer
	mux.HandleFunc("/users/me", h.HandleSelf)
	mux.HandleFunc("/users/follow", h.HandleFollow)
	mux.HandleFunc("/users/unfollow", h.HandleUnfollow)
	mux.HandleFunc("/users/follow-status", h.HandleFollowStatus)

	// Emotes and badges
	mux.HandleFunc("/emotes/global", h.HandleGlobalEmotes)
	mux.HandleFunc("/emotes/channel/", h.HandleChannelEmotes)
	mux.HandleFunc("/badges/global", h.HandleGlobalBadges)
	mux.HandleFunc("/badges/channel/", h.HandleChannelBadges)

	// Wrap with correlation ID injector and tracing middleware.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate.
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		mux.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
		if wrappedWriter.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", wrappedWriter.statusCode))
			span.SetStatus(code, msg)
		}
	})
	return withCORSConfig(handler, corsCfg)
}

// statusRecorder wraps ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it.
// The SSE event stream depends on this passing through.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
