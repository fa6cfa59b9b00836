package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds the parsed trusted proxy ranges used by ExtractClientIP
type IPConfig struct {
	trusted []*net.IPNet
}

// NewIPConfig parses CIDR ranges of trusted proxies. Invalid entries are
// skipped and returned so the caller can log them.
func NewIPConfig(cidrs []string) (*IPConfig, []string) {
	cfg := &IPConfig{}
	var invalid []string

	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			invalid = append(invalid, cidr)
			continue
		}
		cfg.trusted = append(cfg.trusted, ipNet)
	}

	return cfg, invalid
}

// ExtractClientIP returns the originating client address for r.
// X-Forwarded-For and X-Real-IP are honored only when the direct peer is a
// trusted proxy; otherwise RemoteAddr is used.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if !config.isTrusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, ip := range strings.Split(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	return remoteIP
}

// getRemoteAddr strips the port from RemoteAddr when present
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func (c *IPConfig) isTrusted(ip string) bool {
	if c == nil || len(c.trusted) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, ipNet := range c.trusted {
		if ipNet.Contains(clientIP) {
			return true
		}
	}
	return false
}
