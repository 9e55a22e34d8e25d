package portal

import (
	"net/http"
	"sort"
	"strings"
)

// Jar is the Portal session: cookie name to value. It is passed by value
// between calls and never cached server side.
type Jar map[string]string

// Clone returns an independent copy.
func (j Jar) Clone() Jar {
	out := make(Jar, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}

// Merge folds Set-Cookie values into the jar. Same-named cookies are
// overwritten; nothing already present is dropped.
func (j Jar) Merge(cookies []*http.Cookie) {
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		j[c.Name] = c.Value
	}
}

// MergeHeader parses raw Set-Cookie header lines and merges them.
func (j Jar) MergeHeader(h http.Header) {
	resp := http.Response{Header: h}
	j.Merge(resp.Cookies())
}

// Header flattens the jar into one Cookie header value with names in sorted
// order.
func (j Jar) Header() string {
	if len(j) == 0 {
		return ""
	}
	names := make([]string, 0, len(j))
	for k := range j {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+"="+j[k])
	}
	return strings.Join(parts, "; ")
}
