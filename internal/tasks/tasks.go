package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
)

// OnboardingResult contains the outcome of linking and initialization.
type OnboardingResult struct {
	SessionID string            `json:"sessionId"`
	Links     *linking.Summary  `json:"links"`
	Init      *initgate.Outcome `json:"init,omitempty"`
	InitErr   error             `json:"-"`
}

// Linked returns the providers that linked successfully.
func (r *OnboardingResult) Linked() []string {
	if r.Links == nil {
		return nil
	}
	return r.Links.Linked()
}

// Onboarder defines the onboarding operations.
type Onboarder interface {
	// LinkAndInitialize links every provider in order, then runs initialization once.
	LinkAndInitialize(ctx context.Context, progress chan<- ProgressUpdate, providers []models.Provider, identity models.Identity) (*OnboardingResult, error)

	// RetryInitialization runs initialization again after a failure.
	RetryInitialization(ctx context.Context, progress chan<- ProgressUpdate, identity models.Identity) (*initgate.Outcome, error)

	// CancelActive cancels the device flow currently awaiting the user.
	CancelActive()
}

// Recorder persists onboarding outcomes.
//
// Recording is best effort: errors are logged and never fail onboarding.
type Recorder interface {
	RecordLink(ctx context.Context, sessionID string, res linking.Result) error
	RecordInit(ctx context.Context, identity models.Identity, outcome *initgate.Outcome, cause error) error
}

// EngineOption configures an [OnboardingEngine].
type EngineOption func(*OnboardingEngine)

// WithLogger sets the engine logger. Nil keeps the default.
func WithLogger(l *log.Logger) EngineOption {
	return func(e *OnboardingEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSyncer enables the post-link sync of device providers.
func WithSyncer(s linking.Syncer) EngineOption {
	return func(e *OnboardingEngine) { e.syncer = s }
}

// WithRecorder persists every link result and initialization outcome.
func WithRecorder(r Recorder) EngineOption {
	return func(e *OnboardingEngine) { e.recorder = r }
}

// WithLinkOptions passes opts to the sequencer of every link run.
func WithLinkOptions(opts ...linking.Option) EngineOption {
	return func(e *OnboardingEngine) { e.linkOpts = append(e.linkOpts, opts...) }
}

// WithGateOptions passes opts to the initialization gate.
func WithGateOptions(opts ...initgate.Option) EngineOption {
	return func(e *OnboardingEngine) { e.gateOpts = append(e.gateOpts, opts...) }
}

// OnboardingEngine implements [Onboarder].
// Contains dependencies on the linking collaborator and the initialization backend.
type OnboardingEngine struct {
	client      linking.Client
	initializer initgate.Initializer
	syncer      linking.Syncer
	recorder    Recorder
	logger      *log.Logger
	linkOpts    []linking.Option
	gateOpts    []initgate.Option

	mu  sync.Mutex
	seq *linking.Sequencer
}

// NewOnboardingEngine creates a new OnboardingEngine with the provided collaborators.
func NewOnboardingEngine(client linking.Client, initializer initgate.Initializer, opts ...EngineOption) *OnboardingEngine {
	e := &OnboardingEngine{
		client:      client,
		initializer: initializer,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
func (e *OnboardingEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// CancelActive cancels the device flow of the provider currently being linked.
func (e *OnboardingEngine) CancelActive() {
	e.mu.Lock()
	seq := e.seq
	e.mu.Unlock()
	if seq != nil {
		seq.CancelActive()
	}
}

// LinkAndInitialize links providers in order and then initializes the model once.
//
// Per-provider failures are reported in the result and never returned as errors.
// An initialization failure returns the result with [shared.ErrInitBackend] so
// the caller can offer [OnboardingEngine.RetryInitialization].
func (e *OnboardingEngine) LinkAndInitialize(ctx context.Context, progress chan<- ProgressUpdate, providers []models.Provider, identity models.Identity) (*OnboardingResult, error) {
	if e.client == nil || e.initializer == nil {
		return nil, fmt.Errorf("%w: onboarding collaborators not initialized", shared.ErrServiceUnavailable)
	}
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	logger := shared.WithLogger(e.logger, "session", identity.SessionID)
	result := &OnboardingResult{SessionID: identity.SessionID}

	summary, err := e.link(ctx, progress, providers, logger)
	result.Links = summary
	if err != nil {
		return result, err
	}

	if e.recorder != nil {
		for _, r := range summary.Results {
			if err := e.recorder.RecordLink(ctx, identity.SessionID, r); err != nil {
				logger.Warn("failed to record link", "provider", r.ProviderID, "error", err)
			}
		}
	}

	outcome, err := e.initialize(ctx, progress, identity, logger)
	result.Init = outcome
	result.InitErr = err
	return result, err
}

// RetryInitialization runs the initialization gate again for identity.
func (e *OnboardingEngine) RetryInitialization(ctx context.Context, progress chan<- ProgressUpdate, identity models.Identity) (*initgate.Outcome, error) {
	if e.initializer == nil {
		return nil, fmt.Errorf("%w: initializer not initialized", shared.ErrServiceUnavailable)
	}
	return e.initialize(ctx, progress, identity, shared.WithLogger(e.logger, "session", identity.SessionID))
}

func (e *OnboardingEngine) link(ctx context.Context, progress chan<- ProgressUpdate, providers []models.Provider, logger *log.Logger) (*linking.Summary, error) {
	total := len(providers)
	events := make(chan linking.Event, total+1)
	activity := make(chan linking.Activity, 64)

	opts := append([]linking.Option{
		linking.WithLogger(logger),
		linking.WithActivity(activity),
	}, e.linkOpts...)
	if e.syncer != nil {
		opts = append(opts, linking.WithSyncer(e.syncer))
	}

	seq := linking.New(e.client, opts...)
	e.mu.Lock()
	e.seq = seq
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.seq = nil
		e.mu.Unlock()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.forwardLinking(progress, events, activity, total)
	}()

	summary, err := seq.Run(ctx, providers, events)
	close(events)
	close(activity)
	wg.Wait()

	if err != nil {
		logger.Warn("linking interrupted", "error", err)
		if summary == nil {
			return nil, err
		}
		return summary, err
	}
	logger.Info("linking finished", "linked", len(summary.Linked()), "total", total)
	return summary, nil
}

// forwardLinking turns sequencer events and activity into progress updates
// until both channels are closed.
func (e *OnboardingEngine) forwardLinking(progress chan<- ProgressUpdate, events <-chan linking.Event, activity <-chan linking.Activity, total int) {
	for events != nil || activity != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Kind {
			case linking.EntryResolved:
				e.sendProgress(progress, linkResolvedUpdate(ev.Index+1, total, ev.Result))
			case linking.AllLinked:
				e.sendProgress(progress, allLinkedUpdate(ev.Results))
			}
		case a, ok := <-activity:
			if !ok {
				activity = nil
				continue
			}
			if u, ok := activityUpdate(a, total); ok {
				e.sendProgress(progress, u)
			}
		}
	}
}

func activityUpdate(a linking.Activity, total int) (ProgressUpdate, bool) {
	step := a.Index + 1
	if a.Flow == nil {
		if a.Status == models.EntryActive {
			return linkProviderUpdate(step, total, a.ProviderID), true
		}
		return ProgressUpdate{}, false
	}

	switch a.Flow.State {
	case models.FlowIssuing:
		return requestingCodeUpdate(step, total, a.ProviderID), true
	case models.FlowAwaitingUserAction, models.FlowPolling:
		if a.Flow.Grant == nil {
			return ProgressUpdate{}, false
		}
		return deviceCodeUpdate(step, total, *a.Flow), true
	default:
		return ProgressUpdate{}, false
	}
}

func (e *OnboardingEngine) initialize(ctx context.Context, progress chan<- ProgressUpdate, identity models.Identity, logger *log.Logger) (*initgate.Outcome, error) {
	snapshots := make(chan models.InitRun, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for run := range snapshots {
			e.sendProgress(progress, initRunUpdate(run))
		}
	}()

	gate := initgate.New(e.initializer, append([]initgate.Option{initgate.WithLogger(logger)}, e.gateOpts...)...)
	outcome, err := gate.Run(ctx, identity, snapshots)
	close(snapshots)
	wg.Wait()

	if e.recorder != nil && outcome != nil {
		if rerr := e.recorder.RecordInit(ctx, identity, outcome, err); rerr != nil {
			logger.Warn("failed to record initialization", "error", rerr)
		}
	}

	if err != nil {
		e.sendProgress(progress, initFailedUpdate(err))
		return outcome, err
	}

	if outcome.Fallback() {
		logger.Warn("initialization fell back to the base model", "attempts", outcome.Attempts)
	}
	e.sendProgress(progress, initDoneUpdate(outcome))
	return outcome, nil
}
