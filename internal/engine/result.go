// Package engine orchestrates concurrent credential testing runs.
package engine

import (
	"context"
	"fmt"
	"time"
)

// Outcome classifies the result of a single authentication attempt.
type Outcome int

const (
	// OutcomeSuccess means the service accepted the credential.
	OutcomeSuccess Outcome = iota
	// OutcomeInvalidCredential is a clean rejection: the service answered
	// and said no. A normal negative result, not an error.
	OutcomeInvalidCredential
	// OutcomeConnectionError is a transport-level failure (timeout, reset,
	// DNS failure). Retryable up to the configured cap.
	OutcomeConnectionError
	// OutcomeRateLimited is an explicit throttling signal from the service.
	OutcomeRateLimited
	// OutcomeBlocked is a lockout or ban signal. Terminal for the target.
	OutcomeBlocked
	// OutcomeChallengeRequired means the service demands an out-of-band
	// factor (OTP/MFA) that cannot be satisfied automatically.
	OutcomeChallengeRequired
	// OutcomeProtocolError is an unexpected protocol-level failure that is
	// neither a rejection nor a transport error.
	OutcomeProtocolError
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess:           "success",
	OutcomeInvalidCredential: "invalid_credential",
	OutcomeConnectionError:   "connection_error",
	OutcomeRateLimited:       "rate_limited",
	OutcomeBlocked:           "blocked",
	OutcomeChallengeRequired: "challenge_required",
	OutcomeProtocolError:     "protocol_error",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler so Outcome serializes as
// its name in JSON records.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Verdict is an adapter's classification of one attempt. Detail carries the
// server message or error text that drove the classification.
type Verdict struct {
	Outcome Outcome
	Detail  string
}

// Target is a single (host, port, protocol) endpoint. Immutable once a run
// starts.
type Target struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}

// Addr returns the host:port dial address.
func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

func (t Target) String() string {
	return fmt.Sprintf("%s://%s:%d", t.Protocol, t.Host, t.Port)
}

// Candidate is one username/password pair. Index is the position the source
// emitted it at; the engine treats the pair itself as opaque.
type Candidate struct {
	Username string
	Password string
	Index    int
}

// AttemptRecord is one entry in the streamed result sequence. Password is
// populated only for successful attempts.
type AttemptRecord struct {
	Target    Target    `json:"target"`
	Username  string    `json:"username"`
	Password  string    `json:"password,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Elapsed   float64   `json:"elapsed_secs"`
}

// FoundCredential is a credential a target accepted.
type FoundCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TargetReport is the terminal record for one target.
type TargetReport struct {
	Target    Target           `json:"target"`
	Phase     Phase            `json:"phase"`
	Attempts  int              `json:"attempts"`
	Found     *FoundCredential `json:"found,omitempty"`
	Errors    int              `json:"errors"`
	Throttles int              `json:"throttles"`
}

// RunResult is the aggregate output of a run.
type RunResult struct {
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
	DurationSecs float64        `json:"duration_secs"`
	Targets      []TargetReport `json:"targets"`
	Interrupted  bool           `json:"interrupted,omitempty"`
	Summary      Summary        `json:"summary"`
}

// Summary provides aggregate counts for the run.
type Summary struct {
	TargetCount int `json:"target_count"`
	Attempts    int `json:"attempts"`
	Found       int `json:"found"`
	Blocked     int `json:"blocked"`
}

// Adapter performs a single authentication attempt against a target and
// classifies the outcome. Implementations must be safe for concurrent use
// and must not retry internally; retry policy belongs to the dispatcher.
// The context carries the per-attempt deadline.
type Adapter interface {
	Protocol() string
	Attempt(ctx context.Context, target Target, cred Candidate) Verdict
}

// CandidateSource produces the credential pairs to try against one target.
// Next must be safe for concurrent calls and deliver each candidate at most
// once. ok is false once the source is drained.
type CandidateSource interface {
	Next() (cred Candidate, ok bool)
}

// Sink consumes the attempt record stream as the run progresses.
// Implementations must be safe for concurrent calls.
type Sink interface {
	Record(rec AttemptRecord)
}

// ProgressReporter is called by the engine to report per-target progress.
type ProgressReporter interface {
	Stage(num, total int, msg string)
	Detail(msg string)
	Warn(msg string)
}
