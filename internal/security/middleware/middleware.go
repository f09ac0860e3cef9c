package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/infrastructure/logger"
	"github.com/intelliod/ems/internal/security"
	"github.com/intelliod/ems/internal/security/audit"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/internal/security/ratelimit"
)

const RequestIDHeader = "X-Request-ID"

// Authenticator resolves a bearer token to the calling principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperror.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(apperror.BodyOf(err))
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(apperror.Body{Error: "too many requests", Code: "rate_limited"})
}

// RequestLogger assigns a request id and writes one access log record per request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			start := time.Now()
			ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r.WithContext(logger.WithRequestID(r.Context(), id)))

			level := slog.LevelInfo
			if ww.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.Log(r.Context(), level, "http request",
				slog.String("request_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", ClientIP(r)),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// CORS answers preflight requests and sets CORS headers for the allowed origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed["*"] || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+RequestIDHeader)
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credentialPaths are the unauthenticated routes that accept a password.
var credentialPaths = map[string]bool{
	"/api/auth/login":            true,
	"/api/auth/first-time-login": true,
}

// LoginRateLimit limits the credential routes per client address, as
// resolved by proxies (nil means the connection address).
func LoginRateLimit(limiter *ratelimit.Limiter, proxies *ProxyResolver, perMinute int, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !credentialPaths[strings.TrimRight(r.URL.Path, "/")] {
				next.ServeHTTP(w, r)
				return
			}
			ip := proxies.ClientIP(r)
			if !limiter.AllowStrict(ip, perMinute, time.Minute) {
				log.WarnContext(r.Context(), "login rate limit exceeded",
					slog.String("remote", ip),
					slog.String("path", r.URL.Path),
				)
				writeRateLimited(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate requires a valid bearer token, stores the principal on the
// request context, and applies the per-user rate limit. limiter may be nil.
func Authenticate(authn Authenticator, limiter *ratelimit.Limiter, auditLog *audit.Logger, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, apperror.ErrTokenMissing)
				return
			}

			token, err := auth.ExtractToken(header)
			if err != nil {
				writeError(w, apperror.ErrTokenInvalid)
				return
			}

			principal, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if apperror.GetCode(err) == apperror.CodeInternal {
					log.ErrorContext(r.Context(), "authentication failed", slog.String("error", err.Error()))
				} else if errors.Is(err, apperror.ErrForbidden) && auditLog != nil {
					auditLog.LogDenied(r.Context(), "", err.Error())
				}
				writeError(w, err)
				return
			}

			if limiter != nil && !limiter.Allow(principal.UserID) {
				log.WarnContext(r.Context(), "rate limit exceeded", slog.String("user_id", principal.UserID))
				writeRateLimited(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequirePermission refuses principals whose role lacks perm. It must run
// after Authenticate.
func RequirePermission(authz *security.AuthorizationService, perm security.Permission, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFromContext(r.Context())
			if p == nil {
				writeError(w, apperror.ErrTokenMissing)
				return
			}
			if err := authz.ValidatePermission(p.Role, perm); err != nil {
				if auditLog != nil {
					auditLog.LogDenied(r.Context(), p.UserID, string(perm))
				}
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one listed runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
