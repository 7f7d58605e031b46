package billing

import (
	"net/url"
	"regexp"
	"strings"
)

var originPrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://[^/?#]+`)

// SiteOrigin reduces raw (an Origin or Referer value) to scheme://host[:port].
// Malformed values fall back to the leading scheme+authority substring, and
// failing that to raw itself.
func SiteOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	if m := originPrefix.FindString(raw); m != "" {
		return m
	}
	return strings.TrimRight(raw, "/")
}

// ReturnURL picks where the hosted portal sends the customer back to.
// An explicit override wins; otherwise the first of origin and referer that
// carries a scheme and host (browsers send "null" from opaque origins), else
// defaultOrigin, is reduced to a site origin and path is appended.
func ReturnURL(override, origin, referer, defaultOrigin, path string) string {
	if override != "" {
		return override
	}
	source := defaultOrigin
	for _, candidate := range []string{origin, referer} {
		if hasSiteOrigin(candidate) {
			source = candidate
			break
		}
	}
	return SiteOrigin(source) + path
}

func hasSiteOrigin(raw string) bool {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return true
	}
	return originPrefix.MatchString(raw)
}
