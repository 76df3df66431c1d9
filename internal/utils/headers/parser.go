package headers

import (
	"fmt"
	"net/http"
	"strings"
)

// ParseHeaders converts "Key: Value" strings into a map. Entries without
// a colon are skipped.
func ParseHeaders(h []string) map[string]string {
	m := make(map[string]string)
	for _, hdr := range h {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) == 2 {
			m[http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
		}
	}
	return m
}

// ParseStrict is ParseHeaders but rejects malformed entries
func ParseStrict(h []string) (map[string]string, error) {
	for _, hdr := range h {
		name, _, ok := strings.Cut(hdr, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", hdr)
		}
	}
	return ParseHeaders(h), nil
}

// Apply sets every header in m on req, overriding existing values
func Apply(req *http.Request, m map[string]string) {
	for k, v := range m {
		req.Header.Set(k, v)
	}
}
