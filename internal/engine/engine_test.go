package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Mock implementations for testing.

type mockSource struct {
	mu    sync.Mutex
	creds []Candidate
	pos   int
}

func sourceOf(pairs ...[2]string) *mockSource {
	s := &mockSource{}
	for i, p := range pairs {
		s.creds = append(s.creds, Candidate{Username: p[0], Password: p[1], Index: i})
	}
	return s
}

func (s *mockSource) Next() (Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.creds) {
		return Candidate{}, false
	}
	c := s.creds[s.pos]
	s.pos++
	return c, true
}

type mockAdapter struct {
	protocol string
	verdict  func(cred Candidate) Verdict
	delay    time.Duration
	gate     chan struct{} // when set, attempts block here until released

	mu        sync.Mutex
	attempted []Candidate
	inflight  int32
	peak      int32
}

func (a *mockAdapter) Protocol() string { return a.protocol }

func (a *mockAdapter) Attempt(ctx context.Context, target Target, cred Candidate) Verdict {
	cur := atomic.AddInt32(&a.inflight, 1)
	for {
		peak := atomic.LoadInt32(&a.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&a.peak, peak, cur) {
			break
		}
	}
	defer atomic.AddInt32(&a.inflight, -1)

	a.mu.Lock()
	a.attempted = append(a.attempted, cred)
	a.mu.Unlock()

	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return Verdict{Outcome: OutcomeConnectionError, Detail: ctx.Err().Error()}
		}
	}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return Verdict{Outcome: OutcomeConnectionError, Detail: ctx.Err().Error()}
		}
	}
	return a.verdict(cred)
}

func (a *mockAdapter) attempts() []Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Candidate(nil), a.attempted...)
}

type collectSink struct {
	mu   sync.Mutex
	recs []AttemptRecord
}

func (c *collectSink) Record(rec AttemptRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
}

func (c *collectSink) records() []AttemptRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]AttemptRecord(nil), c.recs...)
}

func fastConfig() Config {
	return Config{
		Concurrency:       4,
		TargetConcurrency: 1,
		Timeout:           time.Second,
		Policy: Policy{
			ErrorThreshold: 3,
			ChallengeLimit: 3,
			BackoffBase:    10 * time.Millisecond,
			BackoffCap:     80 * time.Millisecond,
		},
	}
}

func TestRun_StopsAfterFirstSuccess(t *testing.T) {
	target := Target{Host: "10.0.0.1", Port: 22, Protocol: "ssh"}
	adapter := &mockAdapter{
		protocol: "ssh",
		verdict: func(cred Candidate) Verdict {
			if cred.Password == "correct" {
				return Verdict{Outcome: OutcomeSuccess}
			}
			return Verdict{Outcome: OutcomeInvalidCredential}
		},
	}
	source := sourceOf([2]string{"admin", "123456"}, [2]string{"admin", "correct"}, [2]string{"admin", "nextone"})
	sink := &collectSink{}

	cfg := fastConfig()
	cfg.Concurrency = 1

	result, err := Run(context.Background(), cfg,
		[]TargetJob{{Target: target, Source: source}},
		map[string]Adapter{"ssh": adapter}, sink, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	attempts := adapter.attempts()
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}
	for _, c := range attempts {
		if c.Password == "nextone" {
			t.Error("candidate after success should never be attempted")
		}
	}

	report := result.Targets[0]
	if report.Phase != PhaseSucceeded {
		t.Errorf("phase = %q, want %q", report.Phase, PhaseSucceeded)
	}
	if report.Found == nil || report.Found.Password != "correct" {
		t.Errorf("found = %+v, want password %q", report.Found, "correct")
	}
	if result.Summary.Found != 1 {
		t.Errorf("summary found = %d, want 1", result.Summary.Found)
	}
}

func TestRun_RedactsPasswordsExceptOnSuccess(t *testing.T) {
	target := Target{Host: "h", Port: 22, Protocol: "ssh"}
	adapter := &mockAdapter{
		protocol: "ssh",
		verdict: func(cred Candidate) Verdict {
			if cred.Password == "winner" {
				return Verdict{Outcome: OutcomeSuccess}
			}
			return Verdict{Outcome: OutcomeInvalidCredential}
		},
	}
	sink := &collectSink{}
	cfg := fastConfig()
	cfg.Concurrency = 1

	_, err := Run(context.Background(), cfg,
		[]TargetJob{{Target: target, Source: sourceOf([2]string{"a", "loser"}, [2]string{"a", "winner"})}},
		map[string]Adapter{"ssh": adapter}, sink, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, rec := range sink.records() {
		if rec.Outcome == OutcomeSuccess && rec.Password != "winner" {
			t.Errorf("success record password = %q, want %q", rec.Password, "winner")
		}
		if rec.Outcome != OutcomeSuccess && rec.Password != "" {
			t.Errorf("non-success record leaked password %q", rec.Password)
		}
	}
}

func TestRun_PerTargetConcurrencyCap(t *testing.T) {
	target := Target{Host: "h", Port: 80, Protocol: "http"}
	adapter := &mockAdapter{
		protocol: "http",
		delay:    5 * time.Millisecond,
		verdict: func(Candidate) Verdict {
			return Verdict{Outcome: OutcomeInvalidCredential}
		},
	}

	var pairs [][2]string
	for i := 0; i < 20; i++ {
		pairs = append(pairs, [2]string{"user", "pw"})
	}
	cfg := fastConfig()
	cfg.Concurrency = 10
	cfg.TargetConcurrency = 3

	_, err := Run(context.Background(), cfg,
		[]TargetJob{{Target: target, Source: sourceOf(pairs...)}},
		map[string]Adapter{"http": adapter}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if peak := atomic.LoadInt32(&adapter.peak); peak > 3 {
		t.Errorf("peak in-flight = %d, want <= 3", peak)
	}
	if got := len(adapter.attempts()); got != 20 {
		t.Errorf("attempts = %d, want 20", got)
	}
}

func TestRun_NoDuplicateCandidates(t *testing.T) {
	target := Target{Host: "h", Port: 21, Protocol: "ftp"}
	adapter := &mockAdapter{
		protocol: "ftp",
		verdict: func(Candidate) Verdict {
			return Verdict{Outcome: OutcomeInvalidCredential}
		},
	}
	var pairs [][2]string
	for i := 0; i < 50; i++ {
		pairs = append(pairs, [2]string{"user", "pw"})
	}
	cfg := fastConfig()
	cfg.TargetConcurrency = 4

	result, err := Run(context.Background(), cfg,
		[]TargetJob{{Target: target, Source: sourceOf(pairs...)}},
		map[string]Adapter{"ftp": adapter}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[int]int)
	for _, c := range adapter.attempts() {
		seen[c.Index]++
	}
	if len(seen) != 50 {
		t.Errorf("distinct candidates attempted = %d, want 50", len(seen))
	}
	for idx, n := range seen {
		if n != 1 {
			t.Errorf("candidate %d attempted %d times, want 1", idx, n)
		}
	}
	if result.Targets[0].Phase != PhaseExhausted {
		t.Errorf("phase = %q, want %q", result.Targets[0].Phase, PhaseExhausted)
	}
}

func TestRun_RateLimitedBackoffDelaysDispatch(t *testing.T) {
	target := Target{Host: "h", Port: 80, Protocol: "http"}
	adapter := &mockAdapter{
		protocol: "http",
		verdict: func(Candidate) Verdict {
			return Verdict{Outcome: OutcomeRateLimited}
		},
	}
	sink := &collectSink{}
	cfg := fastConfig()
	cfg.Concurrency = 1

	start := time.Now()
	_, err := Run(context.Background(), cfg,
		[]TargetJob{{Target: target, Source: sourceOf(
			[2]string{"a", "1"}, [2]string{"a", "2"}, [2]string{"a", "3"}, [2]string{"a", "4"})}},
		map[string]Adapter{"http": adapter}, sink, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Three throttle transitions before the final attempt: 10 + 20 + 40 ms
	// of mandatory backoff at minimum.
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("run finished in %v, want at least 70ms of backoff", elapsed)
	}

	recs := sink.records()
	if len(recs) != 4 {
		t.Fatalf("records = %d, want 4", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].Timestamp.Before(recs[i-1].Timestamp) {
			t.Errorf("record %d dispatched before its predecessor", i)
		}
	}
}

func TestRun_BlockedTargetStops_OthersContinue(t *testing.T) {
	blocked := Target{Host: "bad", Port: 22, Protocol: "ssh"}
	open := Target{Host: "good", Port: 22, Protocol: "ssh"}
	adapter := &mockAdapter{
		protocol: "ssh",
		verdict: func(cred Candidate) Verdict {
			if cred.Username == "locked" {
				return Verdict{Outcome: OutcomeBlocked, Detail: "account locked"}
			}
			if cred.Password == "correct" {
				return Verdict{Outcome: OutcomeSuccess}
			}
			return Verdict{Outcome: OutcomeInvalidCredential}
		},
	}

	result, err := Run(context.Background(), fastConfig(),
		[]TargetJob{
			{Target: blocked, Source: sourceOf([2]string{"locked", "a"}, [2]string{"locked", "b"})},
			{Target: open, Source: sourceOf([2]string{"admin", "nope"}, [2]string{"admin", "correct"})},
		},
		map[string]Adapter{"ssh": adapter}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var blockedReport, openReport TargetReport
	for _, r := range result.Targets {
		if r.Target.Host == "bad" {
			blockedReport = r
		} else {
			openReport = r
		}
	}

	if blockedReport.Phase != PhaseBlocked {
		t.Errorf("blocked target phase = %q, want %q", blockedReport.Phase, PhaseBlocked)
	}
	if blockedReport.Attempts != 1 {
		t.Errorf("blocked target attempts = %d, want 1", blockedReport.Attempts)
	}
	if openReport.Phase != PhaseSucceeded {
		t.Errorf("open target phase = %q, want %q", openReport.Phase, PhaseSucceeded)
	}
	if result.Summary.Blocked != 1 {
		t.Errorf("summary blocked = %d, want 1", result.Summary.Blocked)
	}
}

func TestRun_ConnectionErrorRetriesUpToCap(t *testing.T) {
	target := Target{Host: "down", Port: 22, Protocol: "ssh"}
	adapter := &mockAdapter{
		protocol: "ssh",
		verdict: func(Candidate) Verdict {
			return Verdict{Outcome: OutcomeConnectionError, Detail: "connection refused"}
		},
	}
	cfg := fastConfig()
	cfg.MaxRetries = 1
	cfg.Policy.ErrorThreshold = 10 // keep throttling out of this test

	result, err := Run(context.Background(), cfg,
		[]TargetJob{{Target: target, Source: sourceOf([2]string{"a", "b"})}},
		map[string]Adapter{"ssh": adapter}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One original attempt plus one retry.
	if got := len(adapter.attempts()); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if result.Targets[0].Phase != PhaseExhausted {
		t.Errorf("phase = %q, want %q", result.Targets[0].Phase, PhaseExhausted)
	}
}

func TestRun_CancellationKeepsPartialResults(t *testing.T) {
	target := Target{Host: "h", Port: 22, Protocol: "ssh"}
	gate := make(chan struct{})
	adapter := &mockAdapter{
		protocol: "ssh",
		gate:     gate,
		verdict: func(Candidate) Verdict {
			return Verdict{Outcome: OutcomeInvalidCredential}
		},
	}
	var pairs [][2]string
	for i := 0; i < 30; i++ {
		pairs = append(pairs, [2]string{"user", "pw"})
	}
	sink := &collectSink{}
	cfg := fastConfig()
	cfg.Concurrency = 2
	cfg.TargetConcurrency = 2

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *RunResult, 1)
	go func() {
		result, err := Run(ctx, cfg,
			[]TargetJob{{Target: target, Source: sourceOf(pairs...)}},
			map[string]Adapter{"ssh": adapter}, sink, nil)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- result
	}()

	// Wait until both workers are mid-attempt, then abort the run.
	for atomic.LoadInt32(&adapter.inflight) < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	close(gate)

	result := <-done
	if !result.Interrupted {
		t.Error("result should be marked interrupted")
	}

	// The two in-flight attempts completed and were recorded; nothing new
	// was dispatched after the abort.
	recs := sink.records()
	if len(recs) != 2 {
		t.Errorf("records = %d, want 2", len(recs))
	}
	if got := len(adapter.attempts()); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestRun_ConfigurationErrors(t *testing.T) {
	adapter := &mockAdapter{protocol: "ssh", verdict: func(Candidate) Verdict {
		return Verdict{Outcome: OutcomeInvalidCredential}
	}}
	adapters := map[string]Adapter{"ssh": adapter}
	job := TargetJob{Target: Target{Host: "h", Port: 22, Protocol: "ssh"}, Source: sourceOf()}

	if _, err := Run(context.Background(), fastConfig(), nil, adapters, nil, nil); err == nil {
		t.Error("expected error for empty target list")
	}

	cfg := fastConfig()
	cfg.Concurrency = 0
	if _, err := Run(context.Background(), cfg, []TargetJob{job}, adapters, nil, nil); err == nil {
		t.Error("expected error for zero concurrency")
	}

	telnet := TargetJob{Target: Target{Host: "h", Port: 23, Protocol: "telnet"}, Source: sourceOf()}
	if _, err := Run(context.Background(), fastConfig(), []TargetJob{telnet}, adapters, nil, nil); err == nil {
		t.Error("expected error for unknown protocol")
	}

	nosource := TargetJob{Target: Target{Host: "h", Port: 22, Protocol: "ssh"}}
	if _, err := Run(context.Background(), fastConfig(), []TargetJob{nosource}, adapters, nil, nil); err == nil {
		t.Error("expected error for missing candidate source")
	}

	if got := len(adapter.attempts()); got != 0 {
		t.Errorf("configuration errors must not dispatch attempts, got %d", got)
	}
}

func TestRun_KeepGoingCollectsAllSuccesses(t *testing.T) {
	target := Target{Host: "h", Port: 21, Protocol: "ftp"}
	adapter := &mockAdapter{
		protocol: "ftp",
		verdict: func(Candidate) Verdict {
			return Verdict{Outcome: OutcomeSuccess}
		},
	}
	sink := &collectSink{}
	cfg := fastConfig()
	cfg.Policy.KeepGoing = true

	result, err := Run(context.Background(), cfg,
		[]TargetJob{{Target: target, Source: sourceOf([2]string{"a", "one"}, [2]string{"a", "two"})}},
		map[string]Adapter{"ftp": adapter}, sink, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(adapter.attempts()); got != 2 {
		t.Errorf("attempts = %d, want 2 (keep-going must not stop early)", got)
	}
	if result.Targets[0].Phase != PhaseSucceeded {
		t.Errorf("phase = %q, want %q", result.Targets[0].Phase, PhaseSucceeded)
	}
	if result.Targets[0].Found == nil || result.Targets[0].Found.Password != "one" {
		t.Errorf("found = %+v, want first success kept", result.Targets[0].Found)
	}
}
