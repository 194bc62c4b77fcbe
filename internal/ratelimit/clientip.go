package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// GetClientIP extracts the client IP from a request.
// With trustProxy the rightmost public hop of X-Forwarded-For wins, since that
// is the one the proxy appended. Without it forwarding headers are ignored.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			hops := strings.Split(xff, ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop != "" && !isPrivateIP(hop) {
					return hop
				}
			}
			return strings.TrimSpace(hops[len(hops)-1])
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	return remoteIP(r.RemoteAddr)
}

func remoteIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.String()
	}
	// Port without brackets on a bare address, e.g. "10.0.0.1:".
	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		if addr, err := netip.ParseAddr(remoteAddr[:idx]); err == nil {
			return addr.String()
		}
	}
	return remoteAddr
}

// isPrivateIP reports whether ip is loopback, link-local or in a private
// range. IPv4-mapped IPv6 addresses are judged by their IPv4 form.
func isPrivateIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
