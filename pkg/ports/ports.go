// Package ports provides default service port definitions for the
// supported authentication protocols.
package ports

// defaults maps a protocol name to its conventional service port.
// SMTP defaults to the submission port rather than 25, which is what
// credential-guarded mail endpoints actually listen on.
var defaults = map[string]int{
	"ssh":  22,
	"ftp":  21,
	"http": 80,
	"smtp": 587,
	"rdp":  3389,
}

// Default returns the conventional port for a protocol, and false when
// the protocol is unknown.
func Default(protocol string) (int, bool) {
	p, ok := defaults[protocol]
	return p, ok
}

// Protocols returns the set of protocol names with a known default port.
func Protocols() []string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	return names
}
