package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/verimarket/backend/internal/response"
)

const ctxCallerKey contextKey = "caller"

// caller is installed by RequestLogger before routing and filled in by
// Authenticate, so the access log line can name the account even though it
// is written outside the authenticated group.
type caller struct {
	principal Principal
	known     bool
}

func callerSlot(ctx context.Context) *caller {
	c, _ := ctx.Value(ctxCallerKey).(*caller)
	return c
}

func recordCaller(ctx context.Context, p Principal) {
	if c := callerSlot(ctx); c != nil {
		c.principal, c.known = p, true
	}
}

// callerAttrs returns the account id and role of the caller, or nothing for
// anonymous requests.
func callerAttrs(r *http.Request) []any {
	p, ok := PrincipalFromCtx(r.Context())
	if !ok {
		c := callerSlot(r.Context())
		if c == nil || !c.known {
			return nil
		}
		p = c.principal
	}
	if p.AccountID == uuid.Nil {
		return nil
	}
	return []any{"account_id", p.AccountID, "role", p.Role}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RequestLogger writes one line per request with the matched route and the
// calling account. 5xx responses log at error level, 4xx at warn.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			r = r.WithContext(context.WithValue(r.Context(), ctxCallerKey, &caller{}))

			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			attrs := []any{
				"method", r.Method,
				"route", routePattern(r),
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			attrs = append(attrs, callerAttrs(r)...)

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

// Recoverer turns a handler panic into a 500 INTERNAL_ERROR envelope and logs
// the stack against the calling account.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rv := recover()
				if rv == nil {
					return
				}
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				attrs := []any{
					"panic", rv,
					"method", r.Method,
					"route", routePattern(r),
					"stack", string(debug.Stack()),
				}
				attrs = append(attrs, callerAttrs(r)...)
				logger.ErrorContext(r.Context(), "handler panicked", attrs...)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred", nil)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// routePattern prefers the chi pattern so ids don't fan out log cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
