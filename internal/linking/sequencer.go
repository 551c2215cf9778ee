package linking

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundlink/internal/deviceflow"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
)

// Client links providers either through a device grant or a single direct call.
type Client interface {
	deviceflow.Client
	LinkDirect(ctx context.Context, provider string) (models.LinkResult, error)
}

// Syncer imports data for a freshly linked device provider.
type Syncer interface {
	SyncLinked(ctx context.Context, provider string, token *models.TokenBundle) error
}

// Option configures a [Sequencer].
type Option func(*Sequencer)

// WithLogger sets the sequencer logger. Device flows get a child logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSyncer enables the post-link sync of device providers.
func WithSyncer(syncer Syncer) Option {
	return func(s *Sequencer) { s.syncer = syncer }
}

// WithActivity publishes entry activity and device flow updates on ch.
func WithActivity(ch chan<- Activity) Option {
	return func(s *Sequencer) { s.activity = ch }
}

// WithFlowOptions passes options to every device flow controller the sequencer creates.
func WithFlowOptions(opts ...deviceflow.Option) Option {
	return func(s *Sequencer) { s.flowOpts = append(s.flowOpts, opts...) }
}

// Sequencer links an ordered list of providers one at a time.
type Sequencer struct {
	client   Client
	syncer   Syncer
	logger   *log.Logger
	activity chan<- Activity
	flowOpts []deviceflow.Option

	mu      sync.Mutex
	running bool
	entries []models.SequenceEntry
	cancel  context.CancelFunc
}

// New creates a [Sequencer] using client for every provider.
func New(client Client, opts ...Option) *Sequencer {
	s := &Sequencer{client: client, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entries returns a snapshot of the sequence entries.
func (s *Sequencer) Entries() []models.SequenceEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SequenceEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// CancelActive cancels the device flow of the active entry. The entry is
// skipped and the sequence moves on.
func (s *Sequencer) CancelActive() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run links providers in order and reports each resolution on events.
//
// A failed, cancelled or denied provider is skipped without aborting the run.
// Events are delivered with blocking sends; events may be nil. Run returns
// ctx.Err() with the partial summary when ctx is cancelled.
func (s *Sequencer) Run(ctx context.Context, providers []models.Provider, events chan<- Event) (*Summary, error) {
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: sequence already running", shared.ErrInvalidInput)
	}
	s.running = true
	s.entries = make([]models.SequenceEntry, len(providers))
	for i, p := range providers {
		s.entries[i] = models.SequenceEntry{ProviderID: p.ID, Status: models.EntryPending}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	summary := &Summary{Results: make([]Result, 0, len(providers))}

	for i, p := range providers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		// The entry is cancellable from the moment it is reported active.
		flowCtx, stop := context.WithCancel(ctx)
		if p.Kind == models.KindDevice {
			s.setCancel(stop)
		}
		s.setStatus(i, models.EntryActive)
		s.publish(Activity{Index: i, ProviderID: p.ID, Status: models.EntryActive})
		s.logger.Info("linking provider", "provider", p.ID, "kind", p.Kind, "position", i+1, "total", len(providers))

		var res Result
		switch p.Kind {
		case models.KindDevice:
			res = s.linkDevice(ctx, flowCtx, i, p)
		default:
			res = s.linkDirect(ctx, p)
		}
		s.setCancel(nil)
		stop()

		s.setStatus(i, res.Status)
		summary.Results = append(summary.Results, res)
		s.publish(Activity{Index: i, ProviderID: p.ID, Status: res.Status})

		if res.Success {
			s.logger.Info("provider linked", "provider", p.ID)
		} else {
			s.logger.Warn("provider not linked", "provider", p.ID, "status", res.Status, "reason", res.Reason)
		}

		if err := send(ctx, events, Event{Kind: EntryResolved, Index: i, Result: res}); err != nil {
			return summary, err
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	results := make([]Result, len(summary.Results))
	copy(results, summary.Results)
	if err := send(ctx, events, Event{Kind: AllLinked, Index: len(providers), Results: results}); err != nil {
		return summary, err
	}

	return summary, nil
}

// linkDevice runs the device flow under flowCtx. The post-link sync uses ctx so
// a late CancelActive cannot abort it.
func (s *Sequencer) linkDevice(ctx, flowCtx context.Context, index int, p models.Provider) Result {
	res := Result{ProviderID: p.ID, Kind: p.Kind, Status: models.EntrySkipped}

	opts := append([]deviceflow.Option{deviceflow.WithLogger(shared.WithLogger(s.logger, "provider", p.ID))}, s.flowOpts...)
	ctrl := deviceflow.New(s.client, opts...)
	updates := ctrl.Start(flowCtx, p.ID)

	var final deviceflow.Update
	for u := range updates {
		s.publish(Activity{Index: index, ProviderID: p.ID, Status: models.EntryActive, Flow: &u})
		if u.Terminal() {
			final = u
		}
	}

	switch final.State {
	case models.FlowSucceeded:
		res.Status = models.EntryCompleted
		res.Success = true
		res.Token = final.Token
	case models.FlowFailed:
		res.Reason = final.Reason
		res.Err = final.Err
		return res
	default:
		res.Reason = models.ReasonCancelled
		res.Err = shared.ErrCancelled
		return res
	}

	if s.syncer != nil {
		if err := s.syncer.SyncLinked(ctx, p.ID, res.Token); err != nil {
			s.logger.Warn("sync after link failed", "provider", p.ID, "error", err)
			res.Success = false
			res.Reason = models.ReasonSyncFailed
			res.Err = fmt.Errorf("%w: %v", shared.ErrSyncFailed, err)
		}
	}
	return res
}

func (s *Sequencer) linkDirect(ctx context.Context, p models.Provider) Result {
	res := Result{ProviderID: p.ID, Kind: p.Kind, Status: models.EntrySkipped}

	lr, err := s.client.LinkDirect(ctx, p.ID)
	switch {
	case err != nil:
		res.Reason = models.ReasonLinkFailed
		res.Err = fmt.Errorf("%w: %v", shared.ErrLinkFailed, err)
	case !lr.Success:
		res.Reason = models.ReasonLinkFailed
		res.Err = fmt.Errorf("%w: provider rejected link", shared.ErrLinkFailed)
	default:
		res.Status = models.EntryCompleted
		res.Success = true
		res.Token = lr.Identity
	}
	return res
}

func (s *Sequencer) setStatus(i int, status models.EntryStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[i].Status = status
}

func (s *Sequencer) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

func (s *Sequencer) publish(a Activity) {
	if s.activity == nil {
		return
	}
	select {
	case s.activity <- a:
	default:
	}
}

func send(ctx context.Context, events chan<- Event, e Event) error {
	if events == nil {
		return nil
	}
	select {
	case events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
