package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the runtime configuration for a run.
type Config struct {
	// Concurrency bounds the total number of simultaneous attempts across
	// all targets.
	Concurrency int
	// TargetConcurrency bounds simultaneous attempts against a single
	// target. Defaults to 1 to avoid tripping lockouts faster than intended.
	TargetConcurrency int
	// Timeout is the hard per-attempt deadline. Expiry surfaces as a
	// connection error.
	Timeout time.Duration
	// MaxRetries caps how many times a candidate is re-dispatched after a
	// connection error.
	MaxRetries int
	// Rate throttles dispatch globally to this many attempts per second.
	// Zero means unlimited.
	Rate float64
	// Policy tunes the per-target session state machine.
	Policy Policy
}

// TargetJob pairs a target with the candidate source to drain against it.
type TargetJob struct {
	Target Target
	Source CandidateSource
}

const defaultTimeout = 10 * time.Second

// Run drives candidate streams against all targets concurrently and returns
// the aggregate result. Attempt records are streamed to sink as they happen.
// Configuration problems are reported before any attempt is dispatched; after
// that, per-attempt failures are outcomes, never errors.
func Run(ctx context.Context, cfg Config, jobs []TargetJob, adapters map[string]Adapter, sink Sink, progress ProgressReporter) (*RunResult, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("no targets to run")
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	if cfg.TargetConcurrency <= 0 {
		cfg.TargetConcurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	for _, job := range jobs {
		if _, ok := adapters[job.Target.Protocol]; !ok {
			return nil, fmt.Errorf("no adapter for protocol %q (target %s)", job.Target.Protocol, job.Target.Addr())
		}
		if job.Source == nil {
			return nil, fmt.Errorf("no candidate source for target %s", job.Target.Addr())
		}
	}
	if sink == nil {
		sink = noopSink{}
	}
	if progress == nil {
		progress = noopProgress{}
	}

	result := &RunResult{StartedAt: time.Now()}

	sem := make(chan struct{}, cfg.Concurrency)
	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	reports := make([]TargetReport, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job TargetJob) {
			defer wg.Done()
			progress.Stage(i+1, len(jobs), fmt.Sprintf("Testing %s", job.Target))
			r := targetRunner{
				job:      job,
				adapter:  adapters[job.Target.Protocol],
				cfg:      cfg,
				sem:      sem,
				limiter:  limiter,
				sink:     sink,
				progress: progress,
			}
			reports[i] = r.run(ctx)
		}(i, job)
	}
	wg.Wait()

	result.Targets = reports
	result.Interrupted = ctx.Err() != nil
	result.CompletedAt = time.Now()
	result.DurationSecs = result.CompletedAt.Sub(result.StartedAt).Seconds()
	result.Summary = buildSummary(reports)
	return result, nil
}

func buildSummary(reports []TargetReport) Summary {
	s := Summary{TargetCount: len(reports)}
	for _, r := range reports {
		s.Attempts += r.Attempts
		if r.Found != nil {
			s.Found++
		}
		if r.Phase == PhaseBlocked {
			s.Blocked++
		}
	}
	return s
}

// targetRunner owns one target's session for the duration of the run. All
// session mutation happens on the runner goroutine; workers only perform the
// network attempt and report back.
type targetRunner struct {
	job      TargetJob
	adapter  Adapter
	cfg      Config
	sem      chan struct{}
	limiter  *rate.Limiter
	sink     Sink
	progress ProgressReporter
}

type attemptResult struct {
	cred    Candidate
	verdict Verdict
	started time.Time
	elapsed time.Duration
}

func (r *targetRunner) run(ctx context.Context) TargetReport {
	s := newSession(r.job.Target, r.cfg.Policy)
	s.start()

	// Attempts run on a context detached from operator cancellation: an
	// abort stops new dispatch but lets in-flight attempts finish or hit
	// their own timeout. stopAttempts fires only when this target stops
	// early (first success), cancelling its in-flight work without touching
	// other targets.
	attemptCtx, stopAttempts := context.WithCancel(context.WithoutCancel(ctx))
	defer stopAttempts()

	results := make(chan attemptResult, r.cfg.TargetConcurrency)
	retries := make(map[int]int)
	var redo []Candidate
	inflight := 0
	drained := false

	next := func() (Candidate, bool) {
		if len(redo) > 0 {
			c := redo[0]
			redo = redo[1:]
			return c, true
		}
		if drained {
			return Candidate{}, false
		}
		c, ok := r.job.Source.Next()
		if !ok {
			drained = true
			return Candidate{}, false
		}
		return c, true
	}

	for {
		// Dispatch while the session allows it and budget remains.
		for ctx.Err() == nil && inflight < r.cfg.TargetConcurrency && s.dispatchable(time.Now()) {
			cred, ok := next()
			if !ok {
				break
			}
			inflight++
			go r.attempt(attemptCtx, cred, results)
		}

		if inflight == 0 {
			if s.terminal() || ctx.Err() != nil {
				break
			}
			if s.phase == PhaseThrottled {
				r.waitBackoff(ctx, s.deadline)
				continue
			}
			// Source drained, nothing left to retry.
			s.exhaust()
			continue
		}

		res := <-results
		inflight--
		if s.terminal() {
			// Straggler from an attempt cancelled after the target stopped.
			continue
		}

		prevPhase := s.phase
		retryable := s.apply(res.cred, res.verdict)
		r.record(res)

		if retryable && retries[res.cred.Index] < r.cfg.MaxRetries {
			retries[res.cred.Index]++
			redo = append(redo, res.cred)
		}

		switch {
		case s.phase == PhaseSucceeded:
			r.progress.Detail(fmt.Sprintf("%s: valid credential %s", r.job.Target, res.cred.Username))
			stopAttempts()
		case s.phase == PhaseBlocked:
			r.progress.Warn(fmt.Sprintf("%s: target blocked us, giving up", r.job.Target))
		case s.phase == PhaseThrottled && prevPhase != PhaseThrottled:
			r.progress.Warn(fmt.Sprintf("%s: throttled, backing off until %s",
				r.job.Target, s.deadline.Format(time.TimeOnly)))
		case res.verdict.Outcome == OutcomeSuccess && s.policy.KeepGoing:
			r.progress.Detail(fmt.Sprintf("%s: valid credential %s (continuing)", r.job.Target, res.cred.Username))
		}
	}

	return s.finalize()
}

// attempt performs one bounded authentication attempt on a worker goroutine.
// The global semaphore is held only around the network call itself.
func (r *targetRunner) attempt(ctx context.Context, cred Candidate, results chan<- attemptResult) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			results <- attemptResult{cred: cred, started: time.Now(),
				verdict: Verdict{Outcome: OutcomeConnectionError, Detail: "cancelled before dispatch"}}
			return
		}
	}
	r.sem <- struct{}{}
	started := time.Now()
	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	v := r.adapter.Attempt(actx, r.job.Target, cred)
	cancel()
	<-r.sem
	results <- attemptResult{cred: cred, verdict: v, started: started, elapsed: time.Since(started)}
}

func (r *targetRunner) record(res attemptResult) {
	rec := AttemptRecord{
		Target:    r.job.Target,
		Username:  res.cred.Username,
		Outcome:   res.verdict.Outcome,
		Detail:    res.verdict.Detail,
		Timestamp: res.started,
		Elapsed:   res.elapsed.Seconds(),
	}
	// Passwords are redacted from the stream except on success.
	if res.verdict.Outcome == OutcomeSuccess {
		rec.Password = res.cred.Password
	}
	r.sink.Record(rec)
}

func (r *targetRunner) waitBackoff(ctx context.Context, deadline time.Time) {
	t := time.NewTimer(time.Until(deadline))
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type noopSink struct{}

func (noopSink) Record(AttemptRecord) {}

type noopProgress struct{}

func (noopProgress) Stage(int, int, string) {}
func (noopProgress) Detail(string)          {}
func (noopProgress) Warn(string)            {}
