package chi

import (
	"net/http"
	"time"

	chiv5 "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cvsearch/internal/domain"
	"github.com/kailas-cloud/cvsearch/internal/logger"
)

// Response headers describing how a search was served.
const (
	headerSearchMethod    = "X-Search-Method"
	headerEmbeddingTokens = "X-Embedding-Tokens"
	headerRequestID       = "X-Request-ID"
)

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					log.Error("Panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits one canonical log line per request. It installs
// the request logger and a usage collector the handlers and use cases write to.
func wideEventMiddleware(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set(headerRequestID, requestID)
			}

			reqLogger := log.With(zap.String("request_id", requestID))
			ctx := logger.ContextWithLogger(r.Context(), reqLogger)
			ctx, usage := domain.NewContextWithUsage(ctx)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := ""
			if rc := chiv5.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if m := ww.Header().Get(headerSearchMethod); m != "" {
				fields = append(fields,
					zap.String("search_method", m),
					zap.Bool("fallback", usage.FellBack()),
					zap.Int("embedding_tokens", usage.TotalTokens()),
				)
			}
			reqLogger.Info("http_request", fields...)
		})
	}
}
