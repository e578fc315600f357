package targets

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/vulnverified/pry/internal/engine"
)

const resolveTimeout = 5 * time.Second

// Resolver answers A/AAAA lookups against a single DNS server.
type Resolver struct {
	server string
	client *dns.Client
}

// NewResolver returns a resolver against the given server ("host" or
// "host:port"). An empty server falls back to the system's configured
// nameserver, then to Cloudflare.
func NewResolver(server string) *Resolver {
	if server == "" {
		server = systemNameserver()
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &Resolver{
		server: server,
		client: &dns.Client{Timeout: resolveTimeout},
	}
}

func systemNameserver() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err == nil && len(conf.Servers) > 0 {
		return net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return "1.1.1.1:53"
}

// Resolve looks up A then AAAA records for a hostname. IP literals come
// back as-is without a query.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}, nil
	}

	var addrs []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)

		resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", r.server, err)
		}
		for _, rr := range resp.Answer {
			switch record := rr.(type) {
			case *dns.A:
				addrs = append(addrs, record.A.String())
			case *dns.AAAA:
				addrs = append(addrs, record.AAAA.String())
			}
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%s does not resolve", host)
	}
	return addrs, nil
}

// Preflight resolves every target hostname and fails fast on the first
// one that does not resolve. Attempting a run against a dead name only
// burns the connection-error budget.
func Preflight(ctx context.Context, r *Resolver, ts []engine.Target) error {
	for _, t := range ts {
		if _, err := r.Resolve(ctx, t.Host); err != nil {
			return fmt.Errorf("target %s: %w", t, err)
		}
	}
	return nil
}
