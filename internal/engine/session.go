package engine

import "time"

// Phase is the lifecycle state of a target within a run.
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseRunning   Phase = "running"
	PhaseThrottled Phase = "throttled"
	PhaseBlocked   Phase = "blocked"
	PhaseExhausted Phase = "exhausted"
	PhaseSucceeded Phase = "succeeded"
	PhaseDone      Phase = "done"
)

// Policy holds the tunables for a target session. The source material does
// not fix these thresholds, so they are configuration rather than constants.
type Policy struct {
	// ErrorThreshold is how many consecutive connection/protocol errors are
	// tolerated before the target is throttled.
	ErrorThreshold int
	// ChallengeLimit is how many MFA/OTP challenges are tolerated before the
	// target is treated as blocked. Zero disables the limit.
	ChallengeLimit int
	// BackoffBase and BackoffCap bound the exponential backoff applied while
	// throttled.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// KeepGoing keeps the target running after a successful credential.
	KeepGoing bool
}

// DefaultPolicy returns the policy used when the operator sets nothing.
func DefaultPolicy() Policy {
	return Policy{
		ErrorThreshold: 3,
		ChallengeLimit: 3,
		BackoffBase:    2 * time.Second,
		BackoffCap:     60 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.ErrorThreshold <= 0 {
		p.ErrorThreshold = d.ErrorThreshold
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = d.BackoffBase
	}
	if p.BackoffCap <= 0 {
		p.BackoffCap = d.BackoffCap
	}
	return p
}

// session tracks the blocking/throttling state of a single target. It is
// owned by that target's runner goroutine and never shared; all mutation
// goes through apply.
type session struct {
	target Target
	policy Policy

	phase        Phase
	consecErrors int
	challenges   int
	backoffLevel int
	deadline     time.Time
	found        *FoundCredential

	attempts  int
	errors    int
	throttles int
}

func newSession(target Target, policy Policy) *session {
	return &session{
		target: target,
		policy: policy.withDefaults(),
		phase:  PhaseInit,
	}
}

// start moves the session out of Init once the first dispatch is possible.
func (s *session) start() {
	if s.phase == PhaseInit {
		s.phase = PhaseRunning
	}
}

// terminal reports whether no further attempts may ever be dispatched.
func (s *session) terminal() bool {
	switch s.phase {
	case PhaseBlocked, PhaseExhausted, PhaseSucceeded, PhaseDone:
		return true
	}
	return false
}

// dispatchable reports whether a new attempt may start right now. A throttled
// session becomes dispatchable again once its backoff deadline has passed.
func (s *session) dispatchable(now time.Time) bool {
	switch s.phase {
	case PhaseRunning:
		return true
	case PhaseThrottled:
		if !now.Before(s.deadline) {
			s.phase = PhaseRunning
			return true
		}
	}
	return false
}

// apply feeds one attempt outcome into the state machine. It returns true if
// the candidate should be retried (transient failure below the retry cap is
// decided by the caller; apply only reports retryability of the outcome).
func (s *session) apply(cred Candidate, v Verdict) (retryable bool) {
	if s.terminal() {
		return false
	}
	s.attempts++

	switch v.Outcome {
	case OutcomeSuccess:
		s.consecErrors = 0
		s.backoffLevel = 0
		if s.found == nil {
			s.found = &FoundCredential{Username: cred.Username, Password: cred.Password}
		}
		if !s.policy.KeepGoing {
			s.phase = PhaseSucceeded
		}

	case OutcomeInvalidCredential:
		// A real answer from the service proves it is reachable and not
		// currently blocking, so the error streak and backoff reset.
		s.consecErrors = 0
		s.backoffLevel = 0

	case OutcomeConnectionError:
		s.errors++
		s.consecErrors++
		if s.consecErrors >= s.policy.ErrorThreshold {
			s.throttle()
		}
		return true

	case OutcomeRateLimited:
		s.errors++
		s.throttle()

	case OutcomeBlocked:
		s.errors++
		s.phase = PhaseBlocked

	case OutcomeChallengeRequired:
		// Skip this credential and move on. A target that keeps demanding a
		// second factor is effectively locked to us.
		s.challenges++
		if s.policy.ChallengeLimit > 0 && s.challenges >= s.policy.ChallengeLimit {
			s.phase = PhaseBlocked
		}

	case OutcomeProtocolError:
		s.errors++
		s.consecErrors++
		if s.consecErrors >= s.policy.ErrorThreshold {
			s.throttle()
		}
	}
	return false
}

// throttle enters (or extends) the Throttled phase with an exponential,
// capped backoff deadline. Deadlines never move backwards.
func (s *session) throttle() {
	if s.terminal() {
		return
	}
	s.phase = PhaseThrottled
	s.throttles++
	s.backoffLevel++

	backoff := s.policy.BackoffBase << (s.backoffLevel - 1)
	if backoff > s.policy.BackoffCap || backoff <= 0 {
		backoff = s.policy.BackoffCap
	}
	deadline := time.Now().Add(backoff)
	if deadline.After(s.deadline) {
		s.deadline = deadline
	}
}

// exhaust marks the source drained with no success.
func (s *session) exhaust() {
	if !s.terminal() {
		s.phase = PhaseExhausted
	}
}

// finalize closes out the session and returns its report. KeepGoing sessions
// that found a credential report Succeeded even though they kept probing.
func (s *session) finalize() TargetReport {
	phase := s.phase
	if s.found != nil {
		phase = PhaseSucceeded
	}
	if phase == PhaseInit || phase == PhaseRunning || phase == PhaseThrottled {
		phase = PhaseDone
	}
	s.phase = PhaseDone
	return TargetReport{
		Target:    s.target,
		Phase:     phase,
		Attempts:  s.attempts,
		Found:     s.found,
		Errors:    s.errors,
		Throttles: s.throttles,
	}
}
