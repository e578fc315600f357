// Package proto implements the protocol adapters that perform individual
// authentication attempts.
package proto

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

// Dialer establishes the TCP connections attempts run over, applying the
// operator's proxy configuration. A nil proxy means direct connections.
// Dialer is read-only after construction and safe for concurrent use.
type Dialer struct {
	socks   proxy.ContextDialer
	httpURL *url.URL
}

// NewDialer parses a proxy URL (socks5://host:port, optionally with
// credentials, or http://host:port) and returns a dialer that routes
// connections through it. An empty URL yields a direct dialer.
//
// HTTP proxies only carry HTTP traffic; callers attacking non-HTTP
// protocols through an HTTP proxy get an error up front rather than a
// run full of confusing connection failures.
func NewDialer(proxyURL string) (*Dialer, error) {
	d := &Dialer{}
	if proxyURL == "" {
		return d, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
	}

	switch u.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			pw, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pw}
		}
		fwd, err := proxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{})
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy %q: %w", u.Host, err)
		}
		cd, ok := fwd.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 proxy %q: dialer does not support context", u.Host)
		}
		d.socks = cd
	case "http", "https":
		d.httpURL = u
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return d, nil
}

// DialContext opens a connection to addr, through the SOCKS5 proxy when one
// is configured.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if d.socks != nil {
		return d.socks.DialContext(ctx, network, addr)
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, addr)
}

// HTTPProxy returns the configured HTTP proxy URL, or nil.
func (d *Dialer) HTTPProxy() *url.URL {
	return d.httpURL
}

// TCPOnly reports whether the dialer can carry raw TCP protocols. An HTTP
// proxy cannot.
func (d *Dialer) TCPOnly() bool {
	return d.httpURL == nil
}
