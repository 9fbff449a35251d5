package http

import (
	"mime"
	"net"
	"net/http"
	"strings"
)

// unknownClient is reported when no address can be attributed to a request
const unknownClient = "unknown"

// IPConfig holds configuration for IP extraction and validation
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies

	networks []*net.IPNet
}

// NewIPConfig parses the trusted proxy CIDR ranges once. Invalid ranges are skipped.
func NewIPConfig(trustedProxies []string) *IPConfig {
	cfg := &IPConfig{TrustedProxies: trustedProxies}
	cfg.networks = parseNetworks(trustedProxies)
	return cfg
}

// ExtractClientIP returns the client address used as the principal for rate
// limiting, escalation tracking and security events.
//
// Forwarding headers are honoured only when the socket peer is a trusted proxy:
// the first valid entry of X-Forwarded-For wins, then X-Real-IP. Otherwise the
// peer address is used, or "unknown" when there is none.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && config.isTrusted(remoteIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, ip := range strings.Split(xff, ",") {
				ip = strings.TrimSpace(ip)
				if isValidIP(ip) {
					return ip
				}
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(xri) {
			return xri
		}
	}

	return remoteIP
}

// IsJSONContentType reports whether the request declares an application/json body
func IsJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return unknownClient
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func (c *IPConfig) isTrusted(ip string) bool {
	networks := c.networks
	if networks == nil && len(c.TrustedProxies) > 0 {
		// Literal IPConfig values are accepted as well as NewIPConfig ones
		networks = parseNetworks(c.TrustedProxies)
	}
	if len(networks) == 0 {
		return false
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, n := range networks {
		if n.Contains(clientIP) {
			return true
		}
	}
	return false
}

func parseNetworks(cidrs []string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		networks = append(networks, ipNet)
	}
	return networks
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
