// Package httputil holds small helpers shared by HTTP handlers.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address that identifies a request's client for
// logging and per-client build limits.
//
// With trustProxy set, the leftmost X-Forwarded-For entry and then X-Real-IP
// are consulted first. Header values that do not parse as an address (with or
// without a port) are ignored. Only enable trustProxy behind a reverse proxy
// that sets these headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip, ok := parseAddr(first); ok {
				return ip
			}
		}
		if ip, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	if ip, ok := parseAddr(r.RemoteAddr); ok {
		return ip
	}
	return r.RemoteAddr
}

// parseAddr accepts "ip", "ip:port" and "[ipv6]:port" and returns the
// canonical address text.
func parseAddr(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
