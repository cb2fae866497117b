// Package request turns an operation description into a concrete HTTP
// request: server URL templating, parameter serialization, security
// artifacts and body encoding.
//
// Everything here is a pure transformation. Nothing is sent over the
// network, and identical inputs yield byte-identical requests.
package request

import (
	"net/url"
	"strings"
)

// Pair is an ordered name/value entry. Values are not encoded.
type Pair struct {
	Name  string
	Value string
}

// Request is a synthesized HTTP request. URL is absolute when the operation
// has a server and already carries the encoded query string; Query keeps
// the raw values in the same order.
type Request struct {
	Method  string
	URL     string
	Headers []Pair
	Query   []Pair
	Cookies []Pair
	Body    *Body
}

// Body is an encoded request body. Params lists the form fields for
// form-urlencoded and multipart bodies.
type Body struct {
	ContentType string
	Data        []byte
	Params      []Pair
}

// Header returns the first header value matching name case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// mergeHeaders concatenates groups and removes case-insensitive duplicates.
// The last value written for a name wins and takes the position of the
// first occurrence.
func mergeHeaders(groups ...[]Pair) []Pair {
	var out []Pair
	index := make(map[string]int)
	for _, group := range groups {
		for _, h := range group {
			key := strings.ToLower(h.Name)
			if i, ok := index[key]; ok {
				out[i].Value = h.Value
				continue
			}
			index[key] = len(out)
			out = append(out, h)
		}
	}
	return out
}

// overlay drops entries of base whose name appears in explicit and
// appends explicit.
func overlay(base, explicit []Pair) []Pair {
	if len(explicit) == 0 {
		return append([]Pair(nil), base...)
	}
	names := make(map[string]struct{}, len(explicit))
	for _, p := range explicit {
		names[p.Name] = struct{}{}
	}
	out := make([]Pair, 0, len(base)+len(explicit))
	for _, p := range base {
		if _, ok := names[p.Name]; !ok {
			out = append(out, p)
		}
	}
	return append(out, explicit...)
}

// encodeQuery encodes pairs in order. url.Values would sort them.
func encodeQuery(pairs []Pair) string {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

func cookieHeader(cookies []Pair) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
