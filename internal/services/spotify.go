package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/spotify"
)

const (
	spotifyBaseURL         = "https://api.spotify.com/v1"
	spotifyDefaultRedirect = "http://127.0.0.1:8080/callback"
)

// spotifyScopes cover what the backend reads when it imports the library.
var spotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"user-library-read",
}

// SpotifyProfile is the subset of GET /me used to identify the linked account.
type SpotifyProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
}

// SpotifyService calls the Spotify Web API with a user token.
type SpotifyService struct {
	config  *oauth2.Config
	baseURL string
	base    *http.Client

	mu    sync.Mutex
	token *oauth2.Token
	api   *APIService
}

// NewSpotifyService creates a service for the configured app credentials.
// client is used for token exchange and refresh; nil means [http.DefaultClient].
func NewSpotifyService(cfg shared.SpotifyConfig, client *http.Client) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_secret", shared.ErrMissingCredentials)
	}
	redirect := cfg.RedirectURI
	if redirect == "" {
		redirect = spotifyDefaultRedirect
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &SpotifyService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirect,
			Scopes:       spotifyScopes,
			Endpoint:     spotify.Endpoint,
		},
		baseURL: spotifyBaseURL,
		base:    client,
	}, nil
}

// Config returns the OAuth2 configuration used for the authorization code flow.
func (s *SpotifyService) Config() *oauth2.Config {
	return s.config
}

// SetToken installs a user token. Requests refresh it through the token endpoint when it expires.
func (s *SpotifyService) SetToken(ctx context.Context, token *oauth2.Token) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.api = NewAPIService(s.baseURL, s.config.Client(ctx, token))
}

// Profile returns the profile of the token owner.
func (s *SpotifyService) Profile(ctx context.Context) (*SpotifyProfile, error) {
	s.mu.Lock()
	api := s.api
	s.mu.Unlock()
	if api == nil {
		return nil, fmt.Errorf("%w: spotify token not set", shared.ErrNotAuthenticated)
	}

	resp, err := api.Get(ctx, "/me")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, shared.ErrTokenExpired
	case !resp.OK():
		return nil, resp.Err("spotify profile")
	}

	var profile SpotifyProfile
	if err := resp.Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Authorizer obtains a user token for config, typically through a browser and
// a local callback server.
type Authorizer func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)

// SpotifyLinker links Spotify directly with the authorization code flow.
type SpotifyLinker struct {
	service   *SpotifyService
	authorize Authorizer
}

// NewSpotifyLinker creates a [DirectLinker] for Spotify.
func NewSpotifyLinker(service *SpotifyService, authorize Authorizer) *SpotifyLinker {
	return &SpotifyLinker{service: service, authorize: authorize}
}

// LinkDirect authorizes the user and resolves their Spotify account.
func (l *SpotifyLinker) LinkDirect(ctx context.Context, provider string) (models.LinkResult, error) {
	token, err := l.authorize(ctx, l.service.Config())
	if err != nil {
		return models.LinkResult{}, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	l.service.SetToken(ctx, token)

	profile, err := l.service.Profile(ctx)
	if err != nil {
		return models.LinkResult{}, err
	}

	return models.LinkResult{
		Success: true,
		Identity: &models.TokenBundle{
			Token:   token,
			Account: models.Account{UserID: profile.ID, Username: profile.DisplayName, CountryCode: profile.Country},
		},
	}, nil
}
