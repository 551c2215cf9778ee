package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
	"golang.org/x/oauth2"
)

const deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

type deviceTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        int    `json:"expires_in"`
	Scope            string `json:"scope,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// DeviceAuthClient talks RFC 8628 directly to a provider's OAuth endpoints.
//
// The config must carry Endpoint.DeviceAuthURL and Endpoint.TokenURL.
type DeviceAuthClient struct {
	config     *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger
}

// NewDeviceAuthClient creates a device authorization client. A nil client uses http.DefaultClient.
func NewDeviceAuthClient(config *oauth2.Config, client *http.Client, logger *log.Logger) (*DeviceAuthClient, error) {
	if config == nil || config.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", shared.ErrMissingCredentials)
	}
	if config.Endpoint.DeviceAuthURL == "" || config.Endpoint.TokenURL == "" {
		return nil, fmt.Errorf("%w: device and token endpoints are required", shared.ErrInvalidConfig)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &DeviceAuthClient{config: config, httpClient: client, logger: logger}, nil
}

// StartGrant requests a device code from the provider's device authorization endpoint.
func (d *DeviceAuthClient) StartGrant(ctx context.Context, provider string) (*models.DeviceGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.httpClient)
	resp, err := d.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	grant := &models.DeviceGrant{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		Interval:                int(resp.Interval),
	}
	if !resp.Expiry.IsZero() {
		grant.ExpiresIn = int(time.Until(resp.Expiry).Round(time.Second).Seconds())
	}
	d.logger.Debug("device grant issued", "provider", provider, "expires_in", grant.ExpiresIn)
	return grant, nil
}

// PollGrant exchanges deviceCode at the token endpoint once.
func (d *DeviceAuthClient) PollGrant(ctx context.Context, provider, deviceCode string) (models.PollResult, error) {
	form := url.Values{
		"grant_type":  {deviceGrantType},
		"device_code": {deviceCode},
		"client_id":   {d.config.ClientID},
	}
	if d.config.ClientSecret != "" {
		form.Set("client_secret", d.config.ClientSecret)
	}
	if len(d.config.Scopes) > 0 {
		form.Set("scope", strings.Join(d.config.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.PollResult{}, fmt.Errorf("%w: %v", shared.ErrPollTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return models.PollResult{}, fmt.Errorf("%w: %v", shared.ErrPollTransport, err)
	}
	defer resp.Body.Close()

	var body deviceTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.PollResult{}, fmt.Errorf("%w: status %d: %v", shared.ErrPollTransport, resp.StatusCode, err)
	}

	if body.Error != "" {
		if res, ok := models.PollResultFromCode(body.Error); ok {
			return res, nil
		}
		d.logger.Debug("unexpected token error", "provider", provider, "error", body.Error, "description", body.ErrorDescription)
		return models.PollResult{}, fmt.Errorf("%w: %s", shared.ErrPollTransport, body.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || body.AccessToken == "" {
		return models.PollResult{}, fmt.Errorf("%w: status %d", shared.ErrPollTransport, resp.StatusCode)
	}

	tok := &oauth2.Token{
		AccessToken:  body.AccessToken,
		TokenType:    body.TokenType,
		RefreshToken: body.RefreshToken,
	}
	if body.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return models.Succeeded(&models.TokenBundle{Token: tok}), nil
}
