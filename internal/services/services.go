// package services implements the external collaborators used during onboarding
//
// Backend HTTP client, RFC 8628 device authorization, Spotify direct link
package services

import (
	"context"

	"github.com/desertthunder/soundlink/internal/models"
)

// DeviceAuthorizer issues device grants and polls for their tokens.
//
// PollGrant returns protocol outcomes as values. A non-nil error is a transport
// failure wrapping [shared.ErrPollTransport].
type DeviceAuthorizer interface {
	StartGrant(ctx context.Context, provider string) (*models.DeviceGrant, error)
	PollGrant(ctx context.Context, provider, deviceCode string) (models.PollResult, error)
}

// DirectLinker links a provider with a single call.
type DirectLinker interface {
	LinkDirect(ctx context.Context, provider string) (models.LinkResult, error)
}

// LinkingClient is the full linking collaborator seen by the sequencer.
type LinkingClient interface {
	DeviceAuthorizer
	DirectLinker
}

// Initializer runs the backend model initialization.
type Initializer interface {
	RunInitialization(ctx context.Context, identity models.Identity) (models.InitResult, error)
}

// Syncer imports the library of a freshly linked provider.
type Syncer interface {
	SyncLinked(ctx context.Context, provider string, token *models.TokenBundle) error
}
