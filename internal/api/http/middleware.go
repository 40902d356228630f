package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/logger"
	"zephyrm-backend/internal/security"
)

const HeaderXRequestID = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when given.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(HeaderXRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(HeaderXRequestID, rid)

		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		ctx = logger.NewContext(ctx, logger.Get().With("request_id", rid))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loggingRecorder struct {
	http.ResponseWriter
	code int
}

func (lr *loggingRecorder) WriteHeader(code int) {
	lr.code = code
	lr.ResponseWriter.WriteHeader(code)
}

func (lr *loggingRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lr.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Logging writes one line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &loggingRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// RateLimit applies one token bucket to the whole server. A non-positive
// rps disables it.
func RateLimit(rps float64, burst int) mux.MiddlewareFunc {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Code: "RATE_LIMITED"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware validates bearer tokens according to the security level of
// the matched route.
type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Handler must run after route matching so the route template is known.
func (a *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		level := config.GetSecurityLevel(r.Method, route)

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization token is not provided", Code: "UNAUTHENTICATED"})
			return
		}
		claims, err := a.tokenManager.ValidateToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token: " + err.Error(), Code: "UNAUTHENTICATED"})
			return
		}
		if level == config.SecurityAdmin && !claims.IsAdmin() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "administrator role required", Code: "FORBIDDEN"})
			return
		}

		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

// extractToken reads the Authorization header, falling back to the
// access_token query parameter used by websocket clients.
func extractToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		return token[7:]
	}
	if token != "" {
		return token
	}
	return r.URL.Query().Get("access_token")
}
