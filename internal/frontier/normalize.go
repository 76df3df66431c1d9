// Package frontier turns one seed into the bounded, deduplicated set of
// target URLs a job visits: detail links found on a listing page, or the
// pages reached by a breadth-first crawl.
package frontier

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	urlutil "github.com/law-makers/harvest/internal/utils/url"
)

var trackingParams = map[string]bool{
	"ref":    true,
	"ref_":   true,
	"source": true,
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
	"osq":    true,
}

var skippedExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".zip": true, ".rar": true, ".tar": true, ".gz": true, ".7z": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true, ".bmp": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true, ".webm": true,
	".css": true, ".js": true, ".xml": true, ".json": true, ".rss": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// Normalize canonicalizes an absolute http(s) URL: lowercase scheme and
// host, default port removed, fragment and tracking parameters dropped,
// remaining query sorted, empty path replaced by "/".
func Normalize(raw string) (string, error) {
	u, err := parseHTTP(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Key is the dedup identity of a URL. Two URLs with the same key are the
// same target: the comparison ignores scheme, case and a trailing slash,
// and ignores the query for site families whose detail pages are
// addressed by path alone.
func Key(raw string) string {
	u, err := parseHTTP(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}

	p := u.EscapedPath()
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	key := u.Host + p
	if u.RawQuery != "" && FamilyFor(u).KeepQuery {
		key += "?" + u.RawQuery
	}
	return strings.ToLower(key)
}

// Resolve makes href absolute against base and normalizes it. Non-page
// links (mailto:, javascript:, media files) are rejected.
func Resolve(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if !IsPageLink(href) {
		return "", false
	}
	n, err := Normalize(urlutil.ResolveURL(base, href))
	if err != nil {
		return "", false
	}
	return n, true
}

// IsPageLink reports whether href can point at an HTML page
func IsPageLink(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "javascript:", "tel:", "data:", "sms:", "whatsapp:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	if u, err := url.Parse(lower); err == nil {
		if skippedExtensions[path.Ext(u.Path)] {
			return false
		}
	}
	return true
}

// SameOrigin compares the hosts of two URLs, ignoring a leading "www."
func SameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return bareHost(ua.Hostname()) == bareHost(ub.Hostname())
}

func bareHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(h), "www.")
}

func parseHTTP(raw string) (*url.URL, error) {
	if err := urlutil.ValidateURL(strings.TrimSpace(raw)); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if u.Path == "" {
		u.Path = "/"
	}

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			lk := strings.ToLower(k)
			if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
				q.Del(k)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.ForceQuery = false
	return u, nil
}
