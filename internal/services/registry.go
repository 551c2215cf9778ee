package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
)

// Registry routes each provider id to the collaborator that links it.
//
// Providers without a dedicated collaborator fall back to the backend client
// when one is configured.
type Registry struct {
	mu       sync.RWMutex
	device   map[string]DeviceAuthorizer
	direct   map[string]DirectLinker
	fallback LinkingClient
	syncer   Syncer
}

// NewRegistry creates a registry. fallback may be nil.
func NewRegistry(fallback LinkingClient) *Registry {
	r := &Registry{
		device:   make(map[string]DeviceAuthorizer),
		direct:   make(map[string]DirectLinker),
		fallback: fallback,
	}
	if s, ok := fallback.(Syncer); ok {
		r.syncer = s
	}
	return r
}

// RegisterDevice routes device grants for provider to d.
func (r *Registry) RegisterDevice(provider string, d DeviceAuthorizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.device[provider] = d
}

// RegisterDirect routes direct links for provider to l.
func (r *Registry) RegisterDirect(provider string, l DirectLinker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[provider] = l
}

func (r *Registry) deviceFor(provider string) (DeviceAuthorizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.device[provider]; ok {
		return d, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, provider)
}

func (r *Registry) directFor(provider string) (DirectLinker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.direct[provider]; ok {
		return l, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, provider)
}

func (r *Registry) StartGrant(ctx context.Context, provider string) (*models.DeviceGrant, error) {
	d, err := r.deviceFor(provider)
	if err != nil {
		return nil, err
	}
	return d.StartGrant(ctx, provider)
}

func (r *Registry) PollGrant(ctx context.Context, provider, deviceCode string) (models.PollResult, error) {
	d, err := r.deviceFor(provider)
	if err != nil {
		return models.PollResult{}, fmt.Errorf("%w: %v", shared.ErrPollTransport, err)
	}
	return d.PollGrant(ctx, provider, deviceCode)
}

func (r *Registry) LinkDirect(ctx context.Context, provider string) (models.LinkResult, error) {
	l, err := r.directFor(provider)
	if err != nil {
		return models.LinkResult{}, err
	}
	return l.LinkDirect(ctx, provider)
}

// SyncLinked delegates to the fallback backend client when it can sync.
func (r *Registry) SyncLinked(ctx context.Context, provider string, token *models.TokenBundle) error {
	if r.syncer == nil {
		return nil
	}
	return r.syncer.SyncLinked(ctx, provider, token)
}

// Providers lists the providers with a dedicated collaborator, sorted by id.
func (r *Registry) Providers() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Provider, 0, len(r.device)+len(r.direct))
	for id := range r.device {
		out = append(out, models.Provider{ID: id, Kind: models.KindDevice})
	}
	for id := range r.direct {
		out = append(out, models.Provider{ID: id, Kind: models.KindDirect})
	}
	slices.SortFunc(out, func(a, b models.Provider) int { return strings.Compare(a.ID, b.ID) })
	return out
}
