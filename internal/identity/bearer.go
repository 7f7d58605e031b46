package identity

import (
	"net/http"
	"strings"

	"github.com/projectdesk/api-proxy/internal/errs"
)

// BearerToken extracts the token from an Authorization header.
// http.Header keys are canonical, so any casing of the header name matches;
// the scheme itself must be exactly "Bearer".
func BearerToken(h http.Header) (string, error) {
	authHeader := h.Get("Authorization")
	if authHeader == "" {
		return "", errs.New(errs.Auth, "Missing bearer token")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errs.New(errs.Auth, "Missing bearer token")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errs.New(errs.Auth, "Missing bearer token")
	}
	return token, nil
}

// CanonicalHeaders rebuilds h with every name in canonical form. Headers set
// directly on the map with non-canonical keys (as some gateways do) become
// visible to Get.
func CanonicalHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		key := http.CanonicalHeaderKey(name)
		out[key] = append(out[key], values...)
	}
	return out
}
