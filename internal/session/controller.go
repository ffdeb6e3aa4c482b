package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shieldscan/shieldscan/internal/store"
	"github.com/shieldscan/shieldscan/internal/types"
	"github.com/shieldscan/shieldscan/internal/validate"
)

// ErrScanInFlight rejects a submission while an attempt is underway.
var ErrScanInFlight = errors.New("a scan is already in progress")

// Validator normalizes a submitted domain.
type Validator func(domain string, authorized bool) (string, error)

// Scanner performs the remote scan. engine.Client satisfies it.
type Scanner interface {
	Scan(ctx context.Context, target string) (types.ScanResult, error)
}

// Opener hands a checkout site off to the payment flow.
type Opener func(site string) error

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeDiscarded Outcome = "discarded"
)

// Attempt summarizes one submission after it finished.
type Attempt struct {
	ID       string
	Domain   string
	Target   string
	Outcome  Outcome
	Started  time.Time
	Finished time.Time
	Result   *types.ScanResult
	Err      error
}

func (a Attempt) Duration() time.Duration { return a.Finished.Sub(a.Started) }

type Option func(*Controller)

func WithValidator(v Validator) Option { return func(c *Controller) { c.validate = v } }

// WithTimeout bounds each scan request. Zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(c *Controller) { c.timeout = d } }

func WithLogger(l zerolog.Logger) Option { return func(c *Controller) { c.log = l } }

func WithOpener(o Opener) Option { return func(c *Controller) { c.open = o } }

// WithAttemptHook registers fn to receive every finished attempt.
func WithAttemptHook(fn func(Attempt)) Option { return func(c *Controller) { c.onAttempt = fn } }

// Controller owns one session State and runs the commands Transition emits.
// It is safe for use from several goroutines, but only one attempt is ever
// in flight.
type Controller struct {
	mu      sync.Mutex
	state   State
	current *Job

	validate  Validator
	scanner   Scanner
	store     store.ResultStore
	timeout   time.Duration
	log       zerolog.Logger
	open      Opener
	onAttempt func(Attempt)
	now       func() time.Time
}

func NewController(scanner Scanner, st store.ResultStore, opts ...Option) *Controller {
	c := &Controller{
		validate: validate.Target,
		scanner:  scanner,
		store:    st,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Job is the single outstanding scan request of an attempt.
type Job struct {
	ID         string
	Domain     string
	Generation uint64
	URL        string
	Started    time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	scanner Scanner
}

// Run performs the request and returns the outcome event for Complete. It
// does not touch the session.
func (j *Job) Run() Event {
	r, err := j.scanner.Scan(j.ctx, j.URL)
	if err != nil {
		return ScanFailed{Generation: j.Generation, Err: err}
	}
	return ScanSucceeded{Generation: j.Generation, Result: r}
}

// Cancel aborts the request if it is still running.
func (j *Job) Cancel() { j.cancel() }

// Begin validates the submission and, when valid, moves the session to
// Scanning and returns the Job to run. A validation failure is returned as a
// *validate.ValidationError and leaves the session interactive.
func (c *Controller) Begin(ctx context.Context, domain string, authorized bool) (*Job, error) {
	c.mu.Lock()
	if c.state.Phase.InFlight() {
		c.mu.Unlock()
		return nil, ErrScanInFlight
	}
	started := c.now()
	id := uuid.NewString()

	next, cmd := Transition(c.state, Submit{Domain: domain, Authorized: authorized})
	vc, ok := cmd.(ValidateCommand)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("unexpected command %T for submit", cmd)
	}
	target, verr := c.validate(vc.Domain, vc.Authorized)
	if verr != nil {
		c.state, _ = Transition(next, ValidationFailed{Message: verr.Error()})
		c.mu.Unlock()
		c.log.Debug().Str("attempt_id", id).Str("domain", domain).Err(verr).Msg("submission rejected")
		c.emit(Attempt{ID: id, Domain: domain, Outcome: OutcomeInvalid, Started: started, Finished: c.now(), Err: verr})
		return nil, verr
	}

	next, cmd = Transition(next, Validated{URL: target})
	sc := cmd.(ScanCommand)
	c.state = next

	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	job := &Job{
		ID:         id,
		Domain:     domain,
		Generation: sc.Generation,
		URL:        sc.URL,
		Started:    started,
		ctx:        ctx,
		cancel:     cancel,
		scanner:    c.scanner,
	}
	c.current = job
	c.mu.Unlock()

	c.log.Info().Str("attempt_id", id).Str("target", sc.URL).Uint64("generation", sc.Generation).Msg("scan started")
	return job, nil
}

// Complete feeds a Job outcome back into the session. Outcomes of an
// abandoned attempt are discarded.
func (c *Controller) Complete(job *Job, ev Event) State {
	c.mu.Lock()
	next, cmd := Transition(c.state, ev)
	applied := next.Generation == job.Generation && next.Phase != Scanning && c.state.Phase == Scanning
	c.state = next
	if c.current == job {
		c.current = nil
	}
	c.mu.Unlock()
	job.cancel()

	a := Attempt{ID: job.ID, Domain: job.Domain, Target: job.URL, Started: job.Started, Finished: c.now()}
	logger := c.log.With().Str("attempt_id", job.ID).Str("target", job.URL).Logger()
	switch ev := ev.(type) {
	case ScanSucceeded:
		r := ev.Result
		a.Result = &r
		a.Outcome = OutcomeSucceeded
	case ScanFailed:
		a.Err = ev.Err
		a.Outcome = OutcomeFailed
	}
	if !applied {
		a.Outcome = OutcomeDiscarded
		logger.Debug().Msg("discarding stale scan outcome")
	} else if a.Outcome == OutcomeFailed {
		logger.Warn().Err(a.Err).Dur("elapsed", a.Duration()).Msg("scan failed")
	} else {
		logger.Info().Int("score", a.Result.Score).Int("issues", len(a.Result.Issues)).Dur("elapsed", a.Duration()).Msg("scan finished")
	}

	if pc, ok := cmd.(PersistCommand); ok && c.store != nil {
		if err := c.store.Set(pc.Result); err != nil {
			logger.Error().Err(err).Msg("persist scan result")
		}
	}
	c.emit(a)
	return next
}

// Submit runs a whole attempt synchronously. Scan failures are reported
// through the returned State, not the error.
func (c *Controller) Submit(ctx context.Context, domain string, authorized bool) (State, error) {
	job, err := c.Begin(ctx, domain, authorized)
	if err != nil {
		return c.State(), err
	}
	return c.Complete(job, job.Run()), nil
}

// Dispatch applies a UI event. Submissions go through Begin; scan outcomes
// through Complete.
func (c *Controller) Dispatch(ev Event) (State, error) {
	switch ev.(type) {
	case Submit, Validated, ValidationFailed, ScanSucceeded, ScanFailed:
		return c.State(), fmt.Errorf("event %T cannot be dispatched", ev)
	}

	c.mu.Lock()
	next, cmd := Transition(c.state, ev)
	c.state = next
	var abandoned *Job
	if _, ok := ev.(Reset); ok {
		abandoned, c.current = c.current, nil
	}
	c.mu.Unlock()

	if abandoned != nil {
		c.log.Info().Str("attempt_id", abandoned.ID).Msg("abandoning in-flight scan")
		abandoned.cancel()
	}
	if pr, ok := ev.(PaymentReturned); ok && pr.Paid {
		restored := pr.Stored != nil && pr.Stored.HasID() && next.Phase == Resulted
		c.log.Info().Bool("restored", restored).Msg("premium unlocked")
	}
	if co, ok := cmd.(CheckoutCommand); ok {
		if c.open == nil {
			return next, errors.New("no checkout opener configured")
		}
		if err := c.open(co.Site); err != nil {
			return next, fmt.Errorf("open checkout: %w", err)
		}
	}
	return next, nil
}

func (c *Controller) emit(a Attempt) {
	if c.onAttempt != nil {
		c.onAttempt(a)
	}
}
