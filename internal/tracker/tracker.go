// Package tracker polls the status endpoint for a remote job until it
// completes, fails, errors out or exhausts its attempt budget.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/metrics"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/retry"
)

// State of a tracking session
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateError     State = "error"
	StateTimeout   State = "timeout"
)

// IsTerminal reports whether the state is absorbing.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateError, StateTimeout:
		return true
	default:
		return false
	}
}

const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxAttempts  = 60

	MessageTimeout       = "Generation is taking longer than expected. It may still be running remotely."
	MessageGenerationErr = "Generation failed"
	MessageStatusErr     = "Failed to check status"
)

// ErrTimeout is wrapped by the Failure reported when the attempt budget runs out
var ErrTimeout = errors.New("polling timed out after maximum attempts")

// StatusChecker queries the status endpoint for one job.
type StatusChecker interface {
	CheckStatus(ctx context.Context, jobID string, provider model.Provider) (*model.StatusResponse, error)
}

// Options configures one tracking session
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
}

func (o Options) withDefaults(d Options) Options {
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	return o
}

// Callbacks are invoked from the session goroutine. At most one of
// OnComplete and OnError fires, exactly once, and never after Stop returns.
// A callback that wants to end its own session calls Cancel, not Stop.
type Callbacks struct {
	OnComplete func(resp model.StatusResponse)
	OnError    func(f *Failure)
	OnUpdate   func(s Status)
}

// Failure describes why a session ended without completing.
type Failure struct {
	State     State
	Message   string
	Retryable bool
	Response  *model.StatusResponse
	Err       error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.State, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.State, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Status is a snapshot of a session
type Status struct {
	JobID    string                `json:"jobId"`
	Provider model.Provider        `json:"provider"`
	State    State                 `json:"state"`
	Attempts int                   `json:"attempts"`
	Progress int                   `json:"progress"`
	Response *model.StatusResponse `json:"response,omitempty"`
	Failure  *Failure              `json:"-"`
}

// Tracker starts polling sessions.
type Tracker struct {
	checker  StatusChecker
	defaults Options
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Tracker)

func WithDefaults(o Options) Option {
	return func(t *Tracker) { t.defaults = o.withDefaults(t.defaults) }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func New(checker StatusChecker, opts ...Option) *Tracker {
	t := &Tracker{
		checker:  checker,
		defaults: Options{PollInterval: DefaultPollInterval, MaxAttempts: DefaultMaxAttempts},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logging.WithComponent(t.logger, "tracker")
	return t
}

// Track starts a session and issues the first request immediately.
func (t *Tracker) Track(ctx context.Context, jobID string, provider model.Provider, opts Options, cb Callbacks) *Session {
	opts = opts.withDefaults(t.defaults)
	runCtx, cancel := context.WithCancel(ctx)

	s := &Session{
		tracker: t,
		opts:    opts,
		cb:      cb,
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		updates: make(chan Status, 1),
		logger:  logging.WithJobID(t.logger, jobID),
		status: Status{
			JobID:    jobID,
			Provider: provider,
			State:    StateIdle,
		},
	}

	s.status.State = StatePolling
	s.publish(s.status)
	go s.run()
	return s
}

// Session is one polling state machine.
type Session struct {
	tracker *Tracker
	opts    Options
	cb      Callbacks
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	status  Status
	updates chan Status
	closed  bool

	stopOnce sync.Once
}

// JobID returns the tracked job id
func (s *Session) JobID() string { return s.status.JobID }

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.State
}

// Status returns a snapshot of the session
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Updates streams status snapshots; a slow reader only sees the newest one.
// The stream closes when the session ends.
func (s *Session) Updates() <-chan Status { return s.updates }

// Done is closed when the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop cancels the pending request and the scheduled timer, then waits for
// the session goroutine, including a callback in flight, to exit. Once Stop
// returns no callback fires. Stop must not be called from a callback.
func (s *Session) Stop() {
	s.Cancel()
	<-s.done
}

// Cancel ends the session without waiting for it. It is the way for a
// callback to stop its own session.
func (s *Session) Cancel() {
	s.stopOnce.Do(s.cancel)
}

func (s *Session) run() {
	defer close(s.done)
	defer s.closeUpdates()

	t := s.tracker
	t.metrics.ObserverStarted("poll")
	defer t.metrics.ObserverStopped("poll")

	if s.cb.OnUpdate != nil {
		initial := s.Status()
		s.fire(func() { s.cb.OnUpdate(initial) })
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	attempts := 0
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("tracking stopped", "attempts", attempts)
			return
		case <-timer.C:
		}
		if s.ctx.Err() != nil {
			return
		}

		resp, err := t.checker.CheckStatus(s.ctx, s.status.JobID, s.status.Provider)
		if s.ctx.Err() != nil {
			return
		}
		attempts++

		if err != nil {
			t.metrics.RecordPoll("request_error")
			c := retry.Classify(err)
			if f := retry.AsFailure(err); f != nil && f.UserMessage != "" {
				c.Message = f.UserMessage
				c.Retryable = f.Retryable
			}
			if c.Retryable && attempts < s.opts.MaxAttempts {
				s.logger.Warn("status request failed, retrying", "attempt", attempts, "error", err)
				s.setState(func(st *Status) { st.Attempts = attempts })
				timer.Reset(s.opts.PollInterval)
				continue
			}
			msg := c.Message
			if msg == "" {
				msg = MessageStatusErr
			}
			s.finish(attempts, nil, &Failure{State: StateError, Message: msg, Retryable: c.Retryable, Err: err})
			return
		}

		t.metrics.RecordPoll(string(resp.Status))
		switch resp.Status {
		case model.PollStatusCompleted:
			s.finish(attempts, resp, nil)
			return

		case model.PollStatusFailed, model.PollStatusError:
			state := StateFailed
			if resp.Status == model.PollStatusError {
				state = StateError
			}
			s.finish(attempts, resp, &Failure{
				State:     state,
				Message:   failureMessage(resp),
				Retryable: true,
				Response:  resp,
			})
			return

		case model.PollStatusTimeout:
			s.finish(attempts, resp, &Failure{
				State:     StateTimeout,
				Message:   MessageTimeout,
				Retryable: true,
				Response:  resp,
				Err:       ErrTimeout,
			})
			return

		default:
			if attempts >= s.opts.MaxAttempts {
				s.finish(attempts, resp, &Failure{
					State:     StateTimeout,
					Message:   MessageTimeout,
					Retryable: true,
					Response:  resp,
					Err:       ErrTimeout,
				})
				return
			}
			s.setState(func(st *Status) {
				st.Attempts = attempts
				st.Response = resp
				if resp.Progress != nil {
					st.Progress = *resp.Progress
				}
			})
			timer.Reset(s.opts.PollInterval)
		}
	}
}

func (s *Session) finish(attempts int, resp *model.StatusResponse, f *Failure) {
	state := StateCompleted
	if f != nil {
		state = f.State
	}

	s.setState(func(st *Status) {
		st.State = state
		st.Attempts = attempts
		st.Failure = f
		if resp != nil {
			st.Response = resp
		}
		if state == StateCompleted {
			st.Progress = 100
		}
	})
	s.tracker.metrics.RecordOutcome(string(state))

	if f != nil {
		s.logger.Warn("tracking ended", "state", state, "attempts", attempts, "message", f.Message)
		if s.cb.OnError != nil {
			s.fire(func() { s.cb.OnError(f) })
		}
		return
	}

	s.logger.Info("generation completed", "attempts", attempts)
	if s.cb.OnComplete != nil {
		s.fire(func() { s.cb.OnComplete(*resp) })
	}
}

// fire runs fn on the session goroutine unless the session was cancelled.
// Stop waits for the goroutine, so a callback that passed this check has
// returned before Stop does.
func (s *Session) fire(fn func()) {
	if s.ctx.Err() != nil {
		return
	}
	fn()
}

func (s *Session) setState(mutate func(st *Status)) {
	s.mu.Lock()
	mutate(&s.status)
	snapshot := s.status
	s.mu.Unlock()

	s.publish(snapshot)
	if s.cb.OnUpdate != nil {
		s.fire(func() { s.cb.OnUpdate(snapshot) })
	}
}

func (s *Session) publish(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- st:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- st:
	default:
	}
}

func (s *Session) closeUpdates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
}

func failureMessage(resp *model.StatusResponse) string {
	if resp.Error != "" {
		return resp.Error
	}
	if resp.Message != "" {
		return resp.Message
	}
	return MessageGenerationErr
}
