package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header carries the correlation id across every hop of a request.
const Header = "jaryqlibrary-correlation-id"

type ctxKey struct{}

// WithID stores id in ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the correlation id carried by ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewID mints a new correlation id.
func NewID() string {
	return uuid.NewString()
}

// Middleware forwards an inbound correlation id unchanged or mints one when
// the request has none. The id is set on the request header, stored in the
// request context and echoed on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = NewID()
			r.Header.Set(Header, id)
		}

		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

// Propagate copies the correlation id of ctx onto an outbound request.
func Propagate(ctx context.Context, req *http.Request) {
	if id := FromContext(ctx); id != "" {
		req.Header.Set(Header, id)
	}
}
