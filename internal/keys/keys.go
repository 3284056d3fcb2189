// Package keys derives resource keys. A key is a pure function of the
// resource name and its parameters, so equal requests share one cache slot.
package keys

import (
	"net/url"
	"strings"
)

// Build returns "<name>" or "<name>?<k=v&...>" with parameters sorted by name.
// Parameters with an empty value are dropped.
func Build(name string, params map[string]string) string {
	q := url.Values{}
	for k, v := range params {
		if k == "" || v == "" {
			continue
		}
		q.Set(k, v)
	}
	if len(q) == 0 {
		return name
	}
	return name + "?" + q.Encode() // Encode sorts by key
}

// Name returns the resource name part of a key.
func Name(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		return key[:i]
	}
	return key
}

// Params returns the parameters encoded in key (nil when there are none).
func Params(key string) url.Values {
	i := strings.IndexByte(key, '?')
	if i < 0 {
		return nil
	}
	q, err := url.ParseQuery(key[i+1:])
	if err != nil {
		return nil
	}
	return q
}
