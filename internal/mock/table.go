// Package mock holds the canned backend responses a scenario substitutes for
// real network calls.
package mock

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// ErrUnhandledRequest is returned by Match when no route covers a request.
var ErrUnhandledRequest = errors.New("unhandled request")

// Request is the part of an intercepted request that routes match on.
type Request struct {
	Method string
	URL    string
}

// Route is a stubbed backend response.
type Route struct {
	Method      string
	URLPattern  string
	Status      int
	ContentType string
	Body        []byte

	pattern *regexp.Regexp
}

// Matches reports whether the route covers req.
func (r *Route) Matches(req Request) bool {
	if r.Method != "*" && !strings.EqualFold(r.Method, req.Method) {
		return false
	}
	return r.pattern.MatchString(matchTarget(r.URLPattern, req.URL))
}

// Table is an ordered list of routes. The first matching route wins.
// A Table belongs to one scenario; it is read concurrently by the browser's
// interception callbacks once setup is done, and never mutated after that.
type Table struct {
	routes []*Route
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// AddRoute appends a route. Status defaults to 200.
func (t *Table) AddRoute(method, urlPattern string, status int, contentType string, body []byte) error {
	if urlPattern == "" {
		return fmt.Errorf("route url pattern is required")
	}
	if method == "" {
		return fmt.Errorf("route %s: method is required", urlPattern)
	}
	if status == 0 {
		status = http.StatusOK
	}
	if status < 100 || status > 599 {
		return fmt.Errorf("route %s %s: invalid status %d", method, urlPattern, status)
	}
	re, err := CompilePattern(urlPattern)
	if err != nil {
		return fmt.Errorf("route %s %s: %w", method, urlPattern, err)
	}
	m := strings.ToUpper(method)
	t.routes = append(t.routes, &Route{
		Method:      m,
		URLPattern:  urlPattern,
		Status:      status,
		ContentType: contentType,
		Body:        body,
		pattern:     re,
	})
	return nil
}

// Match returns the first route covering req, or ErrUnhandledRequest.
func (t *Table) Match(req Request) (*Route, error) {
	for _, r := range t.routes {
		if r.Matches(req) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnhandledRequest, req.Method, req.URL)
}

// Routes returns the routes in match order.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// CompilePattern turns a URL glob into an anchored regular expression.
// "**" matches anything, "*" matches anything except "/", the rest is literal.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString("[^/]*")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(c)))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// MatchPattern reports whether url matches the glob pattern.
func MatchPattern(pattern, url string) bool {
	re, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(matchTarget(pattern, url))
}

// matchTarget strips the query string unless the pattern asks for one.
func matchTarget(pattern, url string) string {
	if strings.Contains(pattern, "?") {
		return url
	}
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
