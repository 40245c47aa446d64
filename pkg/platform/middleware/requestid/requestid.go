// Package requestid assigns every request an identifier that is echoed in
// responses and attached to all log records produced while serving it.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"certo/pkg/requestcontext"
)

// Header is the request/response header carrying the request identifier.
const Header = "X-Request-Id"

// Middleware reuses the caller supplied request id when present, otherwise
// generates a fresh UUID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
