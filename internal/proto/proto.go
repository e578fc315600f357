package proto

import (
	"fmt"

	"github.com/vulnverified/pry/internal/engine"
)

// Options configures adapter construction.
type Options struct {
	ProxyURL  string
	UserAgent string
	// HTTPPath is the request path the HTTP adapter authenticates against.
	HTTPPath string
	// RDPDomain is the Windows domain for RDP logins; empty means local.
	RDPDomain string
}

// Adapters builds the full adapter set, one per supported protocol, sharing
// a single proxy-aware dialer. Every consumer gets the same capability set;
// adding a protocol means adding an adapter here, not touching the dispatch
// loop.
func Adapters(opts Options) (map[string]engine.Adapter, error) {
	dialer, err := NewDialer(opts.ProxyURL)
	if err != nil {
		return nil, err
	}

	adapters := map[string]engine.Adapter{
		"ssh":  NewSSH(dialer),
		"http": NewHTTPBasic(dialer, opts.UserAgent, opts.HTTPPath),
		"ftp":  NewFTP(dialer),
		"smtp": NewSMTP(dialer),
		"rdp":  NewRDP(opts.RDPDomain),
	}
	return adapters, nil
}

// Supported reports whether a protocol name has an adapter.
func Supported(protocol string) bool {
	switch protocol {
	case "ssh", "http", "ftp", "smtp", "rdp":
		return true
	}
	return false
}

// ValidateTransport rejects proxy/protocol combinations that cannot work,
// such as raw TCP protocols through an HTTP proxy.
func ValidateTransport(opts Options, protocols []string) error {
	dialer, err := NewDialer(opts.ProxyURL)
	if err != nil {
		return err
	}
	for _, p := range protocols {
		if opts.ProxyURL != "" && p == "rdp" {
			// The RDP client manages its own sockets and cannot be routed
			// through a proxy.
			return fmt.Errorf("rdp does not support proxied transport")
		}
		if !dialer.TCPOnly() && p != "http" {
			return fmt.Errorf("HTTP proxy cannot carry %s traffic, use a SOCKS5 proxy", p)
		}
	}
	return nil
}
