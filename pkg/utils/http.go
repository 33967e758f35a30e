// Package utils provides common utility functions.
package utils

import (
	"net/http"
	"net/url"
	"sort"
)

// HTTPHelper provides HTTP utility functions.
type HTTPHelper struct {
	defaults map[string]string
}

// NewHTTPHelper creates a helper whose BuildHeaders starts from defaults.
func NewHTTPHelper(defaults map[string]string) *HTTPHelper {
	return &HTTPHelper{defaults: defaults}
}

// IsValidURL reports whether raw is an absolute http or https URL with a host.
func (h *HTTPHelper) IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// BuildHeaders creates HTTP headers from the defaults, with customHeaders
// taking precedence. Empty values are skipped.
func (h *HTTPHelper) BuildHeaders(customHeaders map[string]string) http.Header {
	headers := http.Header{}

	for _, src := range []map[string]string{h.defaults, customHeaders} {
		keys := make([]string, 0, len(src))
		for k := range src {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, key := range keys {
			if value := src[key]; value != "" {
				headers.Set(key, value)
			}
		}
	}

	return headers
}
