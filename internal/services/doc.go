// Package services implements the external collaborators of onboarding: provider linking,
// post-link sync, and model initialization.
//
// # Backend Client
//
// [BackendClient] implements every collaborator against the onboarding backend.
// Device grants and token polls go through provider-scoped routes
// (/{provider}/auth/device, /{provider}/auth/token). The session id of the bound
// identity travels as visitorId. Requests are paced by a [rate.Limiter].
//
// # Device Authorization
//
// [DeviceAuthClient] speaks RFC 8628 directly to a provider's OAuth endpoints.
// Grants are issued with [oauth2.Config.DeviceAuth]; each PollGrant call performs
// exactly one token request so the caller keeps control of the cadence.
//
// # Spotify
//
// [SpotifyLinker] links Spotify directly. It runs the authorization code flow
// through an injected [Authorizer] and resolves the account with [SpotifyService.Profile].
//
// # Routing
//
// [Registry] maps provider ids to collaborators so the sequencer sees a single
// [LinkingClient].
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrPollTransport] : token poll failed at the transport level, safe to retry
//   - [shared.ErrAPIRequest] : backend or provider request failed
//   - [shared.ErrUnknownProvider] : no collaborator registered for a provider
//   - [shared.ErrNotAuthenticated] : Spotify call before a token was installed
package services
