package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the host part of the connection address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ProxyResolver finds the client address behind a chain of trusted
// reverse proxies. X-Forwarded-For is only consulted when the connection
// itself comes from a trusted proxy.
type ProxyResolver struct {
	trusted []netip.Prefix
}

// NewProxyResolver accepts addresses ("10.0.0.5") and CIDRs ("10.0.0.0/8").
// An empty list trusts nobody.
func NewProxyResolver(trusted []string) (*ProxyResolver, error) {
	p := &ProxyResolver{}
	for _, raw := range trusted {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			p.trusted = append(p.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		p.trusted = append(p.trusted, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return p, nil
}

func (p *ProxyResolver) isTrusted(raw string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP walks X-Forwarded-For from the right, skipping trusted hops,
// and returns the first untrusted one. A nil resolver uses the connection
// address only.
func (p *ProxyResolver) ClientIP(r *http.Request) string {
	remote := ClientIP(r)
	if p == nil || len(p.trusted) == 0 || !p.isTrusted(remote) {
		return remote
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			return remote
		}
		if !p.isTrusted(hop) {
			return hop
		}
		remote = hop
	}
	return remote
}
