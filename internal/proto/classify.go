package proto

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/vulnverified/pry/internal/engine"
)

// Phrase lists for recognizing hostile countermeasures in server messages.
// Throttling is checked before blocking: "too many attempts" usually means
// back off and retry, not banned for good.
var throttlePatterns = []string{
	"rate limit",
	"ratelimit",
	"throttl",
	"too many",
	"try again later",
	"slow down",
	"temporarily unavailable",
	"temporary block",
}

var blockPatterns = []string{
	"banned",
	"blocked",
	"blacklist",
	"lockout",
	"locked out",
	"account locked",
	"access denied",
	"permission denied by policy",
	"brute force",
	"abuse",
	"suspicious",
	"firewall",
	"captcha",
	"recaptcha",
}

var challengePatterns = []string{
	"two-factor",
	"two factor",
	"2fa",
	"second factor",
	"verification code",
	"security code",
	"authenticator",
	"one-time password",
	"one time password",
	"totp",
	"otp required",
}

// classifyMessage inspects a server message for hostile-signal phrasing.
// ok is false when the message matches nothing known.
func classifyMessage(msg string) (outcome engine.Outcome, ok bool) {
	lower := strings.ToLower(msg)
	for _, p := range throttlePatterns {
		if strings.Contains(lower, p) {
			return engine.OutcomeRateLimited, true
		}
	}
	for _, p := range blockPatterns {
		if strings.Contains(lower, p) {
			return engine.OutcomeBlocked, true
		}
	}
	for _, p := range challengePatterns {
		if strings.Contains(lower, p) {
			return engine.OutcomeChallengeRequired, true
		}
	}
	return 0, false
}

// connVerdict maps a transport-level error onto the outcome taxonomy.
// Timeouts, refusals, resets and DNS failures are all retryable connection
// errors; anything else falls through to a protocol error.
func connVerdict(err error) engine.Verdict {
	if err == nil {
		return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: "no error"}
	}
	if isConnError(err) {
		return engine.Verdict{Outcome: engine.OutcomeConnectionError, Detail: err.Error()}
	}
	if outcome, ok := classifyMessage(err.Error()); ok {
		return engine.Verdict{Outcome: outcome, Detail: err.Error()}
	}
	return engine.Verdict{Outcome: engine.OutcomeProtocolError, Detail: err.Error()}
}

func isConnError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"eof",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
