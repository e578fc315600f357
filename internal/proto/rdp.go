package proto

import (
	"context"
	"strings"

	"github.com/tomatome/grdp"
	"github.com/tomatome/grdp/glog"

	"github.com/vulnverified/pry/internal/engine"
)

// RDP performs authentication attempts against RDP services. The grdp
// client negotiates NLA (CredSSP/NTLMv2) or standard RDP security on its
// own; only the authentication result matters here.
type RDP struct {
	domain string
}

// NewRDP returns an RDP adapter. domain may be empty for local accounts.
func NewRDP(domain string) *RDP {
	if domain == "" {
		domain = "."
	}
	return &RDP{domain: domain}
}

func (r *RDP) Protocol() string { return "rdp" }

// Attempt runs the grdp login on its own goroutine because the client API
// blocks without taking a context; the select keeps the attempt bounded by
// the caller's deadline.
func (r *RDP) Attempt(ctx context.Context, target engine.Target, cred engine.Candidate) engine.Verdict {
	done := make(chan engine.Verdict, 1)
	go func() {
		defer func() {
			// grdp panics on some malformed server responses; a crashed
			// attempt is a protocol error, not a crashed run.
			if rec := recover(); rec != nil {
				done <- engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: "rdp client panic"}
			}
		}()
		client := grdp.NewClient(target.Addr(), glog.NONE)
		defer client.Close()
		if err := client.Login(r.domain, cred.Username, cred.Password); err != nil {
			done <- classifyRDPError(err)
			return
		}
		done <- engine.Verdict{Outcome: engine.OutcomeSuccess}
	}()

	select {
	case v := <-done:
		return v
	case <-ctx.Done():
		return engine.Verdict{Outcome: engine.OutcomeConnectionError, Detail: ctx.Err().Error()}
	}
}

func classifyRDPError(err error) engine.Verdict {
	msg := err.Error()
	if outcome, ok := classifyMessage(msg); ok {
		return engine.Verdict{Outcome: outcome, Detail: msg}
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "login failed"),
		strings.Contains(lower, "logon failure"),
		strings.Contains(lower, "authentication"):
		return engine.Verdict{Outcome: engine.OutcomeInvalidCredential, Detail: msg}
	case strings.Contains(lower, "dial err"), isConnError(err):
		return engine.Verdict{Outcome: engine.OutcomeConnectionError, Detail: msg}
	}
	return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: msg}
}
