package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundlink/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultAuthorizeTimeout bounds how long [Authorize] waits for the callback.
const DefaultAuthorizeTimeout = 2 * time.Minute

// AuthorizeOptions configures [Authorize]. The zero value is usable.
type AuthorizeOptions struct {
	// Timeout defaults to [DefaultAuthorizeTimeout].
	Timeout time.Duration
	// Open presents the authorization URL to the user. Defaults to [shared.OpenBrowser].
	Open func(url string) error
	// Notify receives user-facing status lines. May be nil.
	Notify func(msg string)
	Logger *log.Logger
}

func (o AuthorizeOptions) notify(format string, args ...any) {
	if o.Notify != nil {
		o.Notify(fmt.Sprintf(format, args...))
	}
}

// Authorize runs the authorization code flow for config.
//
// It serves the callback on the host and port of config.RedirectURL, opens the
// authorization URL, and waits for the callback, the timeout or ctx. The server is
// shut down before returning.
func Authorize(ctx context.Context, config *oauth2.Config, opts AuthorizeOptions) (*oauth2.Token, error) {
	if config == nil || config.RedirectURL == "" {
		return nil, fmt.Errorf("%w: redirect url is required", shared.ErrInvalidConfig)
	}
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect url %q", shared.ErrInvalidConfig, config.RedirectURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAuthorizeTimeout
	}
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	state := shared.GenerateState()
	verifier := oauth2.GenerateVerifier()
	handler := NewOAuthHandler(config, state, verifier)
	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(handler)

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to listen on %s: %v", shared.ErrServiceUnavailable, redirect.Host, err)
	}

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting callback server", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	opts.notify("Opening browser for authorization...")
	if err := opts.Open(authURL); err != nil {
		logger.Warn("failed to open browser automatically", "error", err)
		opts.notify("Could not open browser automatically. Please open this URL:\n%s", authURL)
	}
	opts.notify("Waiting for authorization (%s timeout)...", opts.Timeout)

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("%w: callback server: %v", shared.ErrServiceUnavailable, err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, opts.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Err != nil {
		return nil, result.Err
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// Authorizer adapts [Authorize] to a func(ctx, config) signature with fixed options.
func Authorizer(opts AuthorizeOptions) func(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	return func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
		return Authorize(ctx, config, opts)
	}
}
