package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/trip-notifier/internal/platform/logging"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/metrics"
)

type RouterOptions struct {
	// AuthMiddleware guards the notification routes. Nil leaves them open.
	AuthMiddleware func(http.Handler) http.Handler
	Logger         *zap.Logger
}

// NewRouter constructs the API HTTP router.
//
// This is intentionally a thin adapter:
// - handlers decode + validate the trigger and delegate to the notification service
// - this package wires routes/middleware and maps errors onto the JSON envelope
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	// Infra endpoints, unauthenticated.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}
		r.Post("/notifications/verify-email", s.PostVerifyEmail)
		r.Post("/notifications/trip-dates", s.PostTripDates)
		r.Post("/notifications/participation-requests", s.PostParticipationRequest)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeAPIError(w, req, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeAPIError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

// requestLogger attaches a request-scoped logger to the context and logs one line per request.
func requestLogger(base *zap.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := base.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), l)))

			if isPublicPath(r.URL.Path) {
				return
			}
			l.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
