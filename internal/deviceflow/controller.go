package deviceflow

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
)

const (
	// MinPollInterval is the floor for the provider poll interval, in seconds.
	MinPollInterval = 5
	// SlowDownStep is added to the interval on every slow_down (RFC 8628 §3.5).
	SlowDownStep = 5

	// minBuffer bounds the update channel from below. reliableSends slots are kept
	// free for state transitions so they never block on a slow reader.
	minBuffer     = 8
	reliableSends = 4
)

// Client is the part of the linking collaborator a controller talks to.
//
// PollGrant returns protocol outcomes (pending, slow_down, denied, expired) as
// values. A non-nil error is a transport failure and is retried.
type Client interface {
	StartGrant(ctx context.Context, provider string) (*models.DeviceGrant, error)
	PollGrant(ctx context.Context, provider, deviceCode string) (models.PollResult, error)
}

// Update is one emission on the stream returned by [Controller.Start].
//
// Tick updates carry only the remaining countdown and do not change State.
type Update struct {
	Provider  string
	State     models.FlowState
	Grant     *models.DeviceGrant
	Remaining int
	Tick      bool
	Token     *models.TokenBundle
	Reason    models.FailureReason
	Err       error
}

// Terminal reports whether u ends the stream.
func (u Update) Terminal() bool {
	return !u.Tick && u.State.Terminal()
}

type attempt struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller drives device authorization flows for a single provider slot.
//
// Only one attempt is active at a time. Starting a new attempt cancels the
// previous one and waits for it to exit.
type Controller struct {
	client       Client
	logger       *log.Logger
	second       time.Duration
	minInterval  int
	slowDownStep int
	bufferSize   int

	startMu sync.Mutex
	mu      sync.Mutex
	state   models.FlowState
	active  *attempt
}

// New creates a [Controller] backed by the given client.
func New(client Client, opts ...Option) *Controller {
	c := &Controller{
		client:       client,
		logger:       log.New(io.Discard),
		second:       time.Second,
		minInterval:  MinPollInterval,
		slowDownStep: SlowDownStep,
		bufferSize:   64,
		state:        models.FlowIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the state of the most recent attempt.
func (c *Controller) State() models.FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a new flow for provider and returns its update stream.
//
// The stream carries every state transition and ends with exactly one terminal
// update (succeeded, failed or cancelled) before it is closed. Cancelling ctx
// has the same effect as [Controller.Cancel].
func (c *Controller) Start(ctx context.Context, provider string) <-chan Update {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.Cancel()

	actx, cancel := context.WithCancel(ctx)
	a := &attempt{cancel: cancel, done: make(chan struct{})}
	out := make(chan Update, c.bufferSize)

	c.mu.Lock()
	c.active = a
	c.mu.Unlock()

	go c.run(actx, a, provider, out)
	return out
}

// Cancel stops the active attempt, if any, and waits for it to finish.
//
// It is safe to call at any time, any number of times.
func (c *Controller) Cancel() {
	c.mu.Lock()
	a := c.active
	c.mu.Unlock()
	if a == nil {
		return
	}
	a.cancel()
	<-a.done
}

type pollOutcome struct {
	result models.PollResult
	err    error
}

type flow struct {
	c        *Controller
	provider string
	out      chan Update
	logger   *log.Logger
}

func (c *Controller) run(ctx context.Context, a *attempt, provider string, out chan Update) {
	f := &flow{c: c, provider: provider, out: out, logger: shared.WithLogger(c.logger, "provider", provider)}
	defer func() {
		a.cancel()
		close(out)
		c.mu.Lock()
		if c.active == a {
			c.active = nil
		}
		c.mu.Unlock()
		close(a.done)
	}()

	f.emit(Update{State: models.FlowIssuing})

	grant, err := f.issue(ctx)
	if ctx.Err() != nil {
		f.emit(Update{State: models.FlowCancelled})
		return
	}
	if err != nil {
		f.logger.Warn("device grant failed", "error", err)
		f.emit(Update{
			State:  models.FlowFailed,
			Reason: models.ReasonGrantIssue,
			Err:    fmt.Errorf("%w: %v", shared.ErrGrantIssue, err),
		})
		return
	}

	f.poll(ctx, grant)
}

// issue requests a grant. A cancelled attempt returns immediately and the
// late result is dropped.
func (f *flow) issue(ctx context.Context) (models.DeviceGrant, error) {
	type issued struct {
		grant *models.DeviceGrant
		err   error
	}
	ch := make(chan issued, 1)
	go func() {
		g, err := f.c.client.StartGrant(ctx, f.provider)
		ch <- issued{g, err}
	}()

	select {
	case <-ctx.Done():
		return models.DeviceGrant{}, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return models.DeviceGrant{}, res.err
		}
		if res.grant == nil {
			return models.DeviceGrant{}, fmt.Errorf("empty grant response")
		}
		if err := res.grant.Validate(); err != nil {
			return models.DeviceGrant{}, err
		}
		return res.grant.Normalize(), nil
	}
}

func (f *flow) poll(ctx context.Context, grant models.DeviceGrant) {
	interval := max(grant.Interval, f.c.minInterval)
	remaining := grant.ExpiresIn

	f.emit(Update{State: models.FlowAwaitingUserAction, Grant: &grant, Remaining: remaining})
	f.emit(Update{State: models.FlowPolling, Grant: &grant, Remaining: remaining})
	f.logger.Debug("polling", "interval", interval, "expires_in", remaining)

	t := newTimers(f.c.second, interval)
	defer t.stop()

	var inflight chan pollOutcome

	for {
		if ctx.Err() != nil {
			f.emit(Update{State: models.FlowCancelled, Grant: &grant, Remaining: remaining})
			return
		}

		select {
		case <-ctx.Done():
			continue

		case <-t.countdownC():
			remaining--
			if remaining <= 0 {
				f.emit(Update{
					State:  models.FlowFailed,
					Grant:  &grant,
					Reason: models.ReasonExpired,
					Err:    shared.ErrExpired,
				})
				return
			}
			f.emit(Update{State: models.FlowPolling, Grant: &grant, Remaining: remaining, Tick: true})

		case <-t.pollC():
			inflight = f.startPoll(ctx, grant.DeviceCode)

		case res := <-inflight:
			inflight = nil
			if res.err != nil {
				f.logger.Debug("poll failed, retrying", "error", res.err)
				t.arm(interval)
				continue
			}

			switch res.result.Kind {
			case models.PollPending:
				t.arm(interval)
			case models.PollSlowDown:
				interval += f.c.slowDownStep
				f.logger.Debug("slow down", "interval", interval)
				t.arm(interval)
			case models.PollSuccess:
				f.emit(Update{State: models.FlowSucceeded, Grant: &grant, Remaining: remaining, Token: res.result.Token})
				return
			case models.PollDenied:
				f.emit(Update{State: models.FlowFailed, Grant: &grant, Remaining: remaining, Reason: models.ReasonDenied, Err: shared.ErrDenied})
				return
			case models.PollExpired:
				f.emit(Update{State: models.FlowFailed, Grant: &grant, Remaining: remaining, Reason: models.ReasonExpired, Err: shared.ErrExpired})
				return
			default:
				f.logger.Warn("unknown poll result", "kind", res.result.Kind)
				t.arm(interval)
			}
		}
	}
}

// startPoll issues one poll in the background. The loop receives its outcome
// unless the attempt ends first.
func (f *flow) startPoll(ctx context.Context, deviceCode string) chan pollOutcome {
	ch := make(chan pollOutcome, 1)
	go func() {
		res, err := f.c.client.PollGrant(ctx, f.provider, deviceCode)
		ch <- pollOutcome{result: res, err: err}
	}()
	return ch
}

// emit publishes an update. Ticks are dropped when the reader falls behind;
// state transitions always fit in the reserved slots.
func (f *flow) emit(u Update) {
	u.Provider = f.provider
	if u.Tick {
		if len(f.out) < cap(f.out)-reliableSends {
			f.out <- u
		}
		return
	}

	f.c.mu.Lock()
	f.c.state = u.State
	f.c.mu.Unlock()

	f.logger.Debug("flow transition", "state", u.State, "reason", u.Reason)
	f.out <- u
}
