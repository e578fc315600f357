// Package targets parses target specifications and verifies that
// hostnames resolve before a run starts.
package targets

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/vulnverified/pry/internal/engine"
	"github.com/vulnverified/pry/pkg/ports"
)

// Parse turns a "host" or "host:port" specification into a Target,
// filling in the protocol's default port when none is given.
func Parse(raw, protocol string) (engine.Target, error) {
	defPort, ok := ports.Default(protocol)
	if !ok {
		return engine.Target{}, fmt.Errorf("unsupported protocol %q", protocol)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return engine.Target{}, fmt.Errorf("empty target")
	}

	host := raw
	port := defPort
	if h, p, err := net.SplitHostPort(raw); err == nil {
		host = h
		port, err = strconv.Atoi(p)
		if err != nil {
			return engine.Target{}, fmt.Errorf("target %q: bad port %q", raw, p)
		}
	}
	if host == "" {
		return engine.Target{}, fmt.Errorf("target %q: empty host", raw)
	}
	if port < 1 || port > 65535 {
		return engine.Target{}, fmt.Errorf("target %q: port %d out of range", raw, port)
	}

	return engine.Target{
		Host:     strings.ToLower(host),
		Port:     port,
		Protocol: protocol,
	}, nil
}

// ParseAll parses every specification, all against the same protocol.
func ParseAll(raws []string, protocol string) ([]engine.Target, error) {
	out := make([]engine.Target, 0, len(raws))
	for _, raw := range raws {
		t, err := Parse(raw, protocol)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
