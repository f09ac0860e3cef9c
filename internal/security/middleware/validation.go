package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/intelliod/ems/internal/apperror"
)

// RequireJSON answers 415 when a POST or PUT carries a body that is not
// application/json. Bodyless actions such as submit-onboarding pass.
func RequireJSON(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasBody := r.ContentLength != 0
			if (r.Method == http.MethodPost || r.Method == http.MethodPut) && hasBody && !isJSON(r.Header.Get("Content-Type")) {
				log.WarnContext(r.Context(), "rejected non-JSON body",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("content_type", r.Header.Get("Content-Type")),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":"Content-Type must be application/json","code":"unsupported_media_type"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

const markupChars = `<>"'`

// SanitizeInputs rejects query values containing markup characters and
// paths that try to climb out of their route.
func SanitizeInputs(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "//") {
				log.WarnContext(r.Context(), "suspicious path", slog.String("path", r.URL.Path))
				writeError(w, apperror.Validation("invalid path"))
				return
			}

			var bad []apperror.FieldError
			for key, values := range r.URL.Query() {
				for _, v := range values {
					if strings.ContainsAny(v, markupChars) {
						bad = append(bad, apperror.FieldError{Field: key, Message: "contains disallowed characters"})
						break
					}
				}
			}
			if len(bad) > 0 {
				log.WarnContext(r.Context(), "suspicious query input",
					slog.String("path", r.URL.Path),
					slog.Int("fields", len(bad)),
				)
				writeError(w, apperror.Validation("invalid input", bad...))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
