package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultInitModel is the model trained when the identity does not name one.
const DefaultInitModel = "M1"

type account struct {
	UserID      any    `json:"userId"`
	Username    string `json:"username"`
	CountryCode string `json:"countryCode"`
}

func (a account) toModel() models.Account {
	var id string
	switch v := a.UserID.(type) {
	case string:
		id = v
	case float64:
		id = fmt.Sprintf("%.0f", v)
	case nil:
	default:
		id = fmt.Sprint(v)
	}
	return models.Account{UserID: id, Username: a.Username, CountryCode: a.CountryCode}
}

type tokenPollResponse struct {
	Success          bool    `json:"success"`
	Error            string  `json:"error"`
	ErrorDescription string  `json:"error_description"`
	AccessToken      string  `json:"access_token"`
	RefreshToken     string  `json:"refresh_token"`
	TokenType        string  `json:"token_type"`
	ExpiresIn        int     `json:"expires_in"`
	User             account `json:"user"`
}

type linkResponse struct {
	Success bool    `json:"success"`
	Error   string  `json:"error"`
	User    account `json:"user"`
}

type initModelsResponse struct {
	Success    bool                      `json:"success"`
	TrackCount int                       `json:"track_count"`
	Models     map[string]modelInitState `json:"models"`
	Message    string                    `json:"message"`
}

type modelInitState struct {
	Status     string `json:"status"`
	TrackCount int    `json:"track_count"`
}

type syncAuthData struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresIn    int            `json:"expires_in,omitempty"`
	User         map[string]any `json:"user,omitempty"`
}

// BackendOption configures a [BackendClient].
type BackendOption func(*BackendClient)

// WithRateLimit paces backend requests to rps requests per second. Zero disables pacing.
func WithRateLimit(rps float64) BackendOption {
	return func(b *BackendClient) {
		if rps > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			b.limiter = nil
		}
	}
}

// WithAuthToken sets the bearer token sent to authenticated routes.
func WithAuthToken(token string) BackendOption {
	return func(b *BackendClient) { b.authToken = token }
}

// WithBackendLogger sets the client logger.
func WithBackendLogger(l *log.Logger) BackendOption {
	return func(b *BackendClient) {
		if l != nil {
			b.logger = l
		}
	}
}

// BackendClient implements every onboarding collaborator against the backend.
//
// Provider routes are namespaced by provider id. The session id of the bound
// identity is sent as the visitor id so concurrent sessions do not collide.
type BackendClient struct {
	api       *APIService
	identity  models.Identity
	limiter   *rate.Limiter
	authToken string
	logger    *log.Logger
}

// NewBackendClient creates a backend client bound to a session identity.
func NewBackendClient(api *APIService, identity models.Identity, opts ...BackendOption) *BackendClient {
	b := &BackendClient{
		api:      api,
		identity: identity,
		limiter:  rate.NewLimiter(rate.Limit(5), 1),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BackendClient) wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	return b.limiter.Wait(ctx)
}

func providerPath(provider, suffix string) string {
	return "/" + url.PathEscape(provider) + suffix
}

// StartGrant requests a device grant for provider.
func (b *BackendClient) StartGrant(ctx context.Context, provider string) (*models.DeviceGrant, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := b.api.PostJSON(ctx, providerPath(provider, "/auth/device"), map[string]string{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return nil, resp.Err("device authorization")
	}

	var grant models.DeviceGrant
	if err := resp.Decode(&grant); err != nil {
		return nil, err
	}
	b.logger.Debug("device grant issued", "provider", provider, "expires_in", grant.ExpiresIn, "interval", grant.Interval)
	return &grant, nil
}

// PollGrant performs a single token poll for deviceCode.
func (b *BackendClient) PollGrant(ctx context.Context, provider, deviceCode string) (models.PollResult, error) {
	if err := b.wait(ctx); err != nil {
		return models.PollResult{}, fmt.Errorf("%w: %v", shared.ErrPollTransport, err)
	}

	payload := map[string]string{"deviceCode": deviceCode, "visitorId": b.identity.SessionID}
	resp, err := b.api.PostJSON(ctx, providerPath(provider, "/auth/token"), payload)
	if err != nil {
		return models.PollResult{}, fmt.Errorf("%w: %v", shared.ErrPollTransport, err)
	}

	var body tokenPollResponse
	if resp.JSON() {
		if err := resp.Decode(&body); err != nil {
			return models.PollResult{}, fmt.Errorf("%w: %v", shared.ErrPollTransport, err)
		}
	}

	if body.Error != "" {
		if res, ok := models.PollResultFromCode(body.Error); ok {
			return res, nil
		}
		return models.PollResult{}, fmt.Errorf("%w: status %d: %s", shared.ErrPollTransport, resp.StatusCode, body.Error)
	}
	if !resp.OK() || body.AccessToken == "" {
		return models.PollResult{}, fmt.Errorf("%w: status %d", shared.ErrPollTransport, resp.StatusCode)
	}

	return models.Succeeded(body.bundle()), nil
}

func (r tokenPollResponse) bundle() *models.TokenBundle {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return &models.TokenBundle{Token: tok, Account: r.User.toModel()}
}

// LinkDirect links provider for the bound session with a single call.
func (b *BackendClient) LinkDirect(ctx context.Context, provider string) (models.LinkResult, error) {
	if err := b.wait(ctx); err != nil {
		return models.LinkResult{}, err
	}

	resp, err := b.api.PostJSON(ctx, providerPath(provider, "/link"), map[string]string{"visitorId": b.identity.SessionID})
	if err != nil {
		return models.LinkResult{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	var body linkResponse
	if resp.JSON() {
		if err := resp.Decode(&body); err != nil {
			return models.LinkResult{}, err
		}
	}
	if !resp.OK() {
		return models.LinkResult{}, resp.Err("link")
	}
	if !body.Success {
		return models.LinkResult{Success: false}, nil
	}

	account := body.User.toModel()
	return models.LinkResult{Success: true, Identity: &models.TokenBundle{Account: account}}, nil
}

// SyncLinked imports the playlists of a freshly linked provider into the user's library.
func (b *BackendClient) SyncLinked(ctx context.Context, provider string, token *models.TokenBundle) error {
	if token == nil || token.Token == nil {
		return fmt.Errorf("%w: missing token", shared.ErrInvalidArgument)
	}
	if err := b.wait(ctx); err != nil {
		return err
	}

	data := syncAuthData{AccessToken: token.Token.AccessToken, RefreshToken: token.Token.RefreshToken}
	if !token.Token.Expiry.IsZero() {
		data.ExpiresIn = int(time.Until(token.Token.Expiry).Seconds())
	}
	if token.Account.UserID != "" {
		data.User = map[string]any{"userId": token.Account.UserID}
	}

	resp, err := b.api.PostJSON(ctx, "/auth/sync/"+url.PathEscape(provider), map[string]any{"tidalAuthData": data}, WithBearer(b.authToken))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return resp.Err("sync")
	}
	b.logger.Info("provider synced", "provider", provider)
	return nil
}

// RunInitialization trains the model for identity.
//
// The call can take minutes; it is bounded only by ctx.
func (b *BackendClient) RunInitialization(ctx context.Context, identity models.Identity) (models.InitResult, error) {
	if err := b.wait(ctx); err != nil {
		return models.InitResult{}, err
	}

	model := identity.Model
	if model == "" {
		model = DefaultInitModel
	}
	payload := map[string]string{"email": identity.Email, "userId": identity.UserID, "model": model}

	resp, err := b.api.PostJSON(ctx, "/fastapi/init-models", payload)
	if err != nil {
		return models.InitResult{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if !resp.OK() {
		return models.InitResult{}, resp.Err("init-models")
	}

	var body initModelsResponse
	if err := resp.Decode(&body); err != nil {
		return models.InitResult{}, err
	}

	res := models.InitResult{
		Success:   body.Success,
		ItemCount: body.TrackCount,
		Status:    body.Models[model].Status,
		Details:   map[string]any{},
	}
	for name, m := range body.Models {
		if name != model {
			res.Details[name] = m.TrackCount
		}
	}
	if body.Message != "" {
		res.Details["message"] = body.Message
	}
	b.logger.Debug("init-models response", "model", model, "status", res.Status, "tracks", res.ItemCount)
	return res, nil
}
