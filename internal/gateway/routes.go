package gateway

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/segyhp/jaryq-library/internal/config"
)

// PathPrefix is the external namespace every routed path lives under
const PathPrefix = "/jaryqlibrary"

// Route forwards requests under Prefix to Backend, replacing Prefix with
// RewriteTo. The trailing segment is kept as is.
type Route struct {
	ID        string `yaml:"id"`
	Prefix    string `yaml:"prefix"`
	RewriteTo string `yaml:"rewriteTo"`
	Backend   string `yaml:"backend"`

	target  *url.URL
	pattern *regexp.Regexp
}

type routeFile struct {
	Routes []Route `yaml:"routes"`
}

// BreakerName is the name of the circuit breaker guarding the route
func (rt *Route) BreakerName() string {
	return rt.ID + "CircuitBreaker"
}

// Rewrite maps an external path onto the backend path. ok is false when
// path is outside the route.
func (rt *Route) Rewrite(path string) (string, bool) {
	m := rt.pattern.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return rt.RewriteTo + "/" + m[rt.pattern.SubexpIndex("segment")], true
}

func (rt *Route) compile() error {
	if rt.ID == "" {
		return fmt.Errorf("route id is required")
	}
	if !strings.HasPrefix(rt.Prefix, "/") || !strings.HasPrefix(rt.RewriteTo, "/") {
		return fmt.Errorf("route %s: prefix and rewriteTo must start with /", rt.ID)
	}
	rt.Prefix = strings.TrimSuffix(rt.Prefix, "/")
	rt.RewriteTo = strings.TrimSuffix(rt.RewriteTo, "/")

	target, err := url.Parse(rt.Backend)
	if err != nil || target.Scheme == "" || target.Host == "" {
		return fmt.Errorf("route %s: invalid backend %q", rt.ID, rt.Backend)
	}
	rt.target = target

	rt.pattern = regexp.MustCompile("^" + regexp.QuoteMeta(rt.Prefix) + "/(?P<segment>.*)$")
	return nil
}

// DefaultRoutes sends each service namespace to its configured base URL
func DefaultRoutes(services config.ServicesConfig) []Route {
	return []Route{
		{ID: "books", Prefix: PathPrefix + "/books", RewriteTo: "/books", Backend: services.BooksURL},
		{ID: "members", Prefix: PathPrefix + "/members", RewriteTo: "/members", Backend: services.MembersURL},
		{ID: "loans", Prefix: PathPrefix + "/loans", RewriteTo: "/loans", Backend: services.LoansURL},
	}
}

// LoadRoutes reads the route table from a YAML file. An empty path returns
// the defaults.
func LoadRoutes(path string, defaults []Route) ([]Route, error) {
	if path == "" {
		return defaults, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}

	var file routeFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("routes file %s declares no routes", path)
	}

	return file.Routes, nil
}
