package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/verimarket/backend/internal/response"
	"github.com/verimarket/backend/internal/validation"
)

const maxBodyBytes = 1 << 20

// BodyValidator checks a raw body against a named schema.
type BodyValidator interface {
	Validate(name string, body []byte) error
}

// ValidateBody rejects requests whose JSON body does not match schema. It
// reads the body, then replaces r.Body so the handler can decode it again.
func ValidateBody(v BodyValidator, schema string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			r.Body.Close()
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_BODY", "failed to read body", nil)
				return
			}
			if len(bodyBytes) > maxBodyBytes {
				response.Error(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", nil)
				return
			}
			if err := v.Validate(schema, bodyBytes); err != nil {
				if errors.Is(err, validation.ErrValidation) {
					response.Error(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
					return
				}
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "validation unavailable", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			next.ServeHTTP(w, r)
		})
	}
}
