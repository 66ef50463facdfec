package core

import (
	"net"
	"strings"
)

// UnknownClient identifies requests with no usable address.
const UnknownClient = "unknown"

// ResolveClientID derives the rate-limit key for a request. The first
// X-Forwarded-For hop wins; otherwise the host of the connection address.
// Forwarded headers are trusted as-is, so deploy behind a proxy that sets them.
func ResolveClientID(forwarded, remoteAddr string) string {
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return UnknownClient
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	if host == "" {
		return UnknownClient
	}
	return host
}
