// Package gateway is the single entry point in front of the books, members
// and loans services. Each route rewrites its prefix away and forwards
// through a per-route circuit breaker and a per-caller rate limiter.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/segyhp/jaryq-library/internal/breaker"
	"github.com/segyhp/jaryq-library/internal/clock"
	"github.com/segyhp/jaryq-library/internal/correlation"
	"github.com/segyhp/jaryq-library/internal/ratelimit"
	customError "github.com/segyhp/jaryq-library/pkg/errors"
	"github.com/segyhp/jaryq-library/pkg/response"
)

const (
	// FallbackPath serves the placeholder answer given while a backend is unreachable
	FallbackPath    = "/contactSupport"
	FallbackMessage = "An error occurred. Please try after some time or contact support team"

	HeaderResponseTime = "X-Response-Time"
)

var errUpstream = errors.New("upstream failure")

type Options struct {
	Breakers    *breaker.Registry
	Limiter     ratelimit.Limiter
	KeyResolver ratelimit.KeyResolver
	// Transport is used to reach backends. Nil means http.DefaultTransport.
	Transport http.RoundTripper
	Clock     clock.Clock
}

type Gateway struct {
	routes []Route
	opts   Options
}

// New compiles routes. Every route gets its own breaker from the registry.
func New(routes []Route, opts Options) (*Gateway, error) {
	if opts.Breakers == nil || opts.Limiter == nil {
		return nil, errors.New("gateway needs a breaker registry and a rate limiter")
	}
	if opts.KeyResolver == nil {
		opts.KeyResolver = ratelimit.HeaderKeyResolver("user")
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem(nil)
	}

	compiled := make([]Route, len(routes))
	for i := range routes {
		compiled[i] = routes[i]
		if err := compiled[i].compile(); err != nil {
			return nil, err
		}
	}

	return &Gateway{routes: compiled, opts: opts}, nil
}

func (g *Gateway) Routes(r *mux.Router) {
	r.HandleFunc(FallbackPath, Fallback)

	for i := range g.routes {
		route := &g.routes[i]
		r.PathPrefix(route.Prefix + "/").Handler(g.chain(route))
		slog.Info("gateway route registered", "route", route.ID, "prefix", route.Prefix, "backend", route.Backend)
	}
}

// chain composes the per-route filters: rewrite, correlation id, response
// timestamp, circuit breaker, rate limiter, then the proxy itself.
func (g *Gateway) chain(route *Route) http.Handler {
	var h http.Handler = g.proxy(route)
	h = ratelimit.Middleware(g.opts.Limiter, g.opts.KeyResolver)(h)
	h = g.circuitBreaker(route)(h)
	h = g.responseTimestamp(h)
	h = correlation.Middleware(h)
	return rewrite(route)(h)
}

func rewrite(route *Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			escaped, ok := route.Rewrite(r.URL.EscapedPath())
			if !ok {
				response.NotFound(w, r, "no route for path")
				return
			}
			path, err := url.PathUnescape(escaped)
			if err != nil {
				response.Error(w, r, http.StatusBadRequest, customError.ErrCodeValidation, "malformed path")
				return
			}

			out := r.Clone(r.Context())
			out.URL.Path = path
			out.URL.RawPath = escaped
			next.ServeHTTP(w, out)
		})
	}
}

func (g *Gateway) responseTimestamp(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderResponseTime, g.opts.Clock.Now().Format(time.RFC3339Nano))
		next.ServeHTTP(w, r)
	})
}

// circuitBreaker short-circuits to the fallback while the route's breaker
// is open. Proxy errors and 5xx answers count as failures; requests the
// rate limiter rejects never reached the backend and are not counted.
func (g *Gateway) circuitBreaker(route *Route) func(http.Handler) http.Handler {
	cb := g.opts.Breakers.Get(route.BreakerName())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &outcomeRecorder{ResponseWriter: w, status: http.StatusOK}

			err := cb.Execute(r.Context(), func(ctx context.Context) error {
				next.ServeHTTP(rec, r.WithContext(ctx))
				if rec.limited {
					return breaker.ErrIgnored
				}
				if rec.err != nil {
					return rec.err
				}
				if rec.status >= http.StatusInternalServerError {
					return errUpstream
				}
				return nil
			})

			if errors.Is(err, breaker.ErrOpen) {
				slog.WarnContext(r.Context(), "circuit open, serving fallback", "breaker", cb.Name(), "path", r.URL.Path)
				Fallback(w, r)
			}
		})
	}
}

func (g *Gateway) proxy(route *Route) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(route.target)
			pr.SetXForwarded()
		},
		Transport: g.opts.Transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.ErrorContext(r.Context(), "backend call failed, serving fallback", "route", route.ID, "error", err)
			if rec, ok := w.(*outcomeRecorder); ok {
				rec.err = err
			}
			Fallback(w, r)
		},
	}
}

// Fallback is the "contact support" placeholder
func Fallback(w http.ResponseWriter, r *http.Request) {
	response.Error(w, r, http.StatusServiceUnavailable, customError.ErrCodeServiceUnavailable, FallbackMessage)
}

type outcomeRecorder struct {
	http.ResponseWriter
	status  int
	err     error
	limited bool
}

func (o *outcomeRecorder) MarkRateLimited() {
	o.limited = true
}

func (o *outcomeRecorder) WriteHeader(code int) {
	o.status = code
	o.ResponseWriter.WriteHeader(code)
}

func (o *outcomeRecorder) Unwrap() http.ResponseWriter {
	return o.ResponseWriter
}
