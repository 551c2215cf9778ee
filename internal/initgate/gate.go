// Package initgate runs the post-linking model initialization and classifies its result.
//
// The gate drives a paced progress program around a single backend call and
// retries once when the backend reports that only the base model was copied.
package initgate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
)

// MaxAttempts bounds the number of backend calls in one run.
const MaxAttempts = 2

// Progress program bounds.
const (
	analyzeEnd   = 20
	trainCap     = 45
	evaluateFrom = 50
	persistFrom  = 80
	persistEnd   = 95
	progressStep = 2
)

// Initializer performs the backend initialization for an identity.
type Initializer interface {
	RunInitialization(ctx context.Context, identity models.Identity) (models.InitResult, error)
}

// Pacing sets the delay between progress steps and before the retry attempt.
type Pacing struct {
	AnalyzeStep time.Duration
	TrainStep   time.Duration
	FinishStep  time.Duration
	RetryDelay  time.Duration
}

// DefaultPacing returns the pacing used outside of tests.
func DefaultPacing() Pacing {
	return Pacing{
		AnalyzeStep: 100 * time.Millisecond,
		TrainStep:   200 * time.Millisecond,
		FinishStep:  50 * time.Millisecond,
		RetryDelay:  5 * time.Second,
	}
}

// Outcome is the classified result of a gate run.
//
// A failed run still returns an Outcome with Kind failed and the attempt count.
type Outcome struct {
	Kind     models.InitClass  `json:"kind"`
	Attempts int               `json:"attempts"`
	Result   models.InitResult `json:"result"`
}

// Fallback reports whether the user ended up on the base model.
func (o *Outcome) Fallback() bool { return o.Kind == models.InitFallback }

// Option configures a [Gate].
type Option func(*Gate)

// WithLogger sets the gate logger. Nil keeps the discard logger.
func WithLogger(l *log.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithPacing overrides the progress step delays and the retry delay.
func WithPacing(p Pacing) Option {
	return func(g *Gate) { g.pacing = p }
}

// WithTimeout bounds each backend call. Zero waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

// Gate runs initialization for one identity at a time.
type Gate struct {
	backend Initializer
	logger  *log.Logger
	pacing  Pacing
	timeout time.Duration
}

// New creates a [Gate] calling backend for every attempt.
func New(backend Initializer, opts ...Option) *Gate {
	g := &Gate{backend: backend, logger: log.New(io.Discard), pacing: DefaultPacing()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run initializes the model for identity and reports progress on snapshots.
//
// Snapshots are sent without blocking and may be nil. A failed classification,
// a transport error or a timeout returns [shared.ErrInitBackend] together with
// a failed Outcome. Cancelling ctx returns ctx.Err() and no Outcome.
func (g *Gate) Run(ctx context.Context, identity models.Identity, snapshots chan<- models.InitRun) (*Outcome, error) {
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	logger := shared.WithLogger(g.logger, "user", identity.UserID)

	for attempt := 1; ; attempt++ {
		p := &program{attempt: attempt, out: snapshots}

		res, err := g.attempt(ctx, identity, p)
		if err != nil {
			p.fail()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Error("initialization call failed", "attempt", attempt, "error", err)
			return &Outcome{Kind: models.InitFailed, Attempts: attempt}, err
		}

		class := res.Classify()
		logger.Info("initialization result", "attempt", attempt, "class", class, "status", res.Status, "items", res.ItemCount)

		switch class {
		case models.InitTrained:
		case models.InitFallback:
			if res.Status == models.InitStatusBaseModelCopied && attempt < MaxAttempts {
				logger.Warn("base model copied, retrying", "delay", g.pacing.RetryDelay)
				if err := sleep(ctx, g.pacing.RetryDelay); err != nil {
					p.fail()
					return nil, err
				}
				continue
			}
		default:
			p.fail()
			return &Outcome{Kind: models.InitFailed, Attempts: attempt, Result: res},
				fmt.Errorf("%w: success=%t status=%q", shared.ErrInitBackend, res.Success, res.Status)
		}

		if err := g.finish(ctx, p); err != nil {
			p.fail()
			return nil, err
		}
		return &Outcome{Kind: class, Attempts: attempt, Result: res}, nil
	}
}

func (g *Gate) attempt(ctx context.Context, identity models.Identity, p *program) (models.InitResult, error) {
	for v := 0; v <= analyzeEnd; v += progressStep {
		p.set(models.StageAnalyzing, v)
		if err := sleep(ctx, g.pacing.AnalyzeStep); err != nil {
			return models.InitResult{}, err
		}
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if g.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	defer cancel()

	type called struct {
		res models.InitResult
		err error
	}
	ch := make(chan called, 1)
	go func() {
		res, err := g.backend.RunInitialization(callCtx, identity)
		ch <- called{res, err}
	}()

	step := g.pacing.TrainStep
	if step <= 0 {
		step = time.Millisecond
	}
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	progress := analyzeEnd
	p.set(models.StageTraining, progress)

	for {
		select {
		case <-ctx.Done():
			return models.InitResult{}, ctx.Err()
		case <-callCtx.Done():
			return models.InitResult{}, fmt.Errorf("%w: %w", shared.ErrInitBackend, callCtx.Err())
		case <-ticker.C:
			progress = min(progress+1, trainCap)
			p.set(models.StageTraining, progress)
		case c := <-ch:
			if c.err != nil {
				return models.InitResult{}, fmt.Errorf("%w: %w", shared.ErrInitBackend, c.err)
			}
			return c.res, nil
		}
	}
}

func (g *Gate) finish(ctx context.Context, p *program) error {
	for v := evaluateFrom; v < persistFrom; v += progressStep {
		p.set(models.StageEvaluating, v)
		if err := sleep(ctx, g.pacing.FinishStep); err != nil {
			return err
		}
	}
	for v := persistFrom; v <= persistEnd; v += progressStep {
		p.set(models.StagePersisting, v)
		if err := sleep(ctx, g.pacing.FinishStep); err != nil {
			return err
		}
	}
	p.set(models.StageDone, 100)
	return nil
}

// program publishes the snapshots of one attempt.
type program struct {
	attempt  int
	progress int
	out      chan<- models.InitRun
}

func (p *program) set(stage models.InitStage, progress int) {
	p.progress = max(p.progress, progress)
	p.publish(stage)
}

func (p *program) fail() { p.publish(models.StageFailed) }

func (p *program) publish(stage models.InitStage) {
	if p.out == nil {
		return
	}
	select {
	case p.out <- models.InitRun{Stage: stage, Progress: p.progress, Attempt: p.attempt}:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
