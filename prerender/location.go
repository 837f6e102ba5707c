package prerender

import (
	"fmt"
	"net/url"
	"strings"
)

// Location is the parsed path and query of the request being rendered.
type Location struct {
	// Query maps each query parameter to a string, or a []string if the key
	// was repeated.
	Query    map[string]any `json:"query"`
	Href     string         `json:"href"`
	Path     string         `json:"path"`
	Pathname string         `json:"pathname"`
	Search   string         `json:"search"`
	Hash     string         `json:"hash"`
}

// ParseLocation parses a path and query, e.g. "/products?page=2".
func ParseLocation(pathAndQuery string) (*Location, error) {
	u, err := url.Parse(pathAndQuery)
	if err != nil {
		return nil, fmt.Errorf(`prerender: invalid request path: %w`, err)
	}

	loc := Location{
		Href:     pathAndQuery,
		Pathname: u.EscapedPath(),
		Query:    make(map[string]any),
	}
	if u.RawQuery != `` || u.ForceQuery {
		loc.Search = `?` + u.RawQuery
	}
	if u.Fragment != `` {
		loc.Hash = `#` + u.EscapedFragment()
	}
	loc.Path = loc.Pathname + loc.Search

	// malformed pairs are skipped, the rest are kept
	values, _ := url.ParseQuery(u.RawQuery)
	for k, v := range values {
		if len(v) == 1 {
			loc.Query[k] = v[0]
		} else {
			loc.Query[k] = v
		}
	}

	return &loc, nil
}

// NormalizeBaseURL returns the virtual directory for requestPathBase, which
// always starts and ends with exactly one slash, e.g. "", "/app" and "/app/"
// yield "/", "/app/" and "/app/" respectively.
func NormalizeBaseURL(requestPathBase string) string {
	base := strings.TrimRight(requestPathBase, `/`)
	if base == `` {
		return `/`
	}
	if !strings.HasPrefix(base, `/`) {
		base = `/` + base
	}
	return base + `/`
}

// requestOrigin returns the scheme and host of an absolute URL.
func requestOrigin(absoluteURL string) (string, error) {
	u, err := url.Parse(absoluteURL)
	if err != nil {
		return ``, fmt.Errorf(`prerender: invalid absolute request url: %w`, err)
	}
	if !u.IsAbs() || u.Host == `` {
		return ``, fmt.Errorf(`prerender: request url is not absolute: %q`, absoluteURL)
	}
	return u.Scheme + `://` + u.Host, nil
}
