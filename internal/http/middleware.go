package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/service"
	"github.com/fjod/go_storefront/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SessionHeader = "X-Session-ID"
	maxSessionLen = 128
)

type ctxKey int

const sessionIDKey ctxKey = iota

// SessionMiddleware identifies the buyer by the X-Session-ID header. A new id
// is issued when the header is missing or malformed, and the id in use is
// always echoed back.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSpace(req.Header.Get(SessionHeader))
		if !validSessionID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(SessionHeader, id)
		ctx := context.WithValue(req.Context(), sessionIDKey, id)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionLen {
		return false
	}
	for _, c := range id {
		if !(c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func getSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// TokenValidator checks admin tokens.
type TokenValidator interface {
	Valid(ctx context.Context, token string) bool
}

// AdminOnly rejects requests without a valid bearer token.
func AdminOnly(gate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !gate.Valid(req.Context(), bearerToken(req)) {
				respondError(w, http.StatusUnauthorized, "unauthorized", "admin sign-in required")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// StatusSource reports whether shop data has been loaded.
type StatusSource interface {
	Status() service.ShopStatus
}

// RequireReady answers 503 until shop data has loaded once.
func RequireReady(shop StatusSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			st := shop.Status()
			if !st.Ready {
				msg := st.Error
				if msg == "" {
					msg = service.ErrShopNotReady.Error()
				}
				respondError(w, http.StatusServiceUnavailable, "not_ready", msg)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// BodyLimit caps request bodies at n bytes.
func BodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Body != nil {
				req.Body = http.MaxBytesReader(w, req.Body, n)
			}
			next.ServeHTTP(w, req)
		})
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.WithTrace(req.Context(), log).Info("http request",
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(req.Context())))
			}()
			next.ServeHTTP(ww, req)
		})
	}
}
