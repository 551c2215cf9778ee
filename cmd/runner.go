package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundlink/internal/deviceflow"
	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/repositories"
	"github.com/desertthunder/soundlink/internal/server"
	"github.com/desertthunder/soundlink/internal/services"
	"github.com/desertthunder/soundlink/internal/shared"
	"github.com/desertthunder/soundlink/internal/tasks"
	"github.com/urfave/cli/v3"
)

// EngineFactory builds an onboarder bound to one session identity.
type EngineFactory func(identity models.Identity) (tasks.Onboarder, func(), error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	newEngine  EngineFactory
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// Engine replaces the backend-wired onboarding engine. Used by tests.
	Engine EngineFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		newEngine:  opts.Engine,
	}
	if r.newEngine == nil {
		r.newEngine = r.buildEngine
	}
	return r
}

// SetLogger replaces the runner logger, e.g. with a file logger while the TUI is running.
func (r *Runner) SetLogger(l *log.Logger) {
	if l != nil {
		r.logger = l
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, linkCommand, initCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by the global --config flag.
//
// A missing file is not an error: defaults and SOUNDLINK_* variables still apply.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path != "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		config := shared.DefaultConfig()
		if err := shared.ApplyEnv(config); err != nil {
			return ctx, err
		}
		r.config = config
	}

	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// identity builds the session identity from flags, falling back to the configured user.
func (r *Runner) identity(cmd *cli.Command) models.Identity {
	id := models.Identity{
		SessionID: shared.GenerateID(),
		UserID:    r.config.User.ID,
		Email:     r.config.User.Email,
		Model:     r.config.Init.Model,
	}
	if v := cmd.String("user"); v != "" {
		id.UserID = v
	}
	if v := cmd.String("email"); v != "" {
		id.Email = v
	}
	return id
}

// providers resolves --provider flags against the configured providers.
// Without flags every configured provider is linked, in declaration order.
func (r *Runner) providers(ids []string) ([]models.Provider, error) {
	if len(ids) == 0 {
		providers := make([]models.Provider, 0, len(r.config.Providers))
		for _, p := range r.config.Providers {
			providers = append(providers, p.Provider())
		}
		if len(providers) == 0 {
			return nil, fmt.Errorf("%w: no providers configured", shared.ErrMissingArgument)
		}
		return providers, nil
	}

	providers := make([]models.Provider, 0, len(ids))
	for _, id := range ids {
		p, ok := r.config.Provider(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
		}
		providers = append(providers, p.Provider())
	}
	return providers, nil
}

// openDatabase opens and migrates the configured database.
func (r *Runner) openDatabase(ctx context.Context) (*sql.DB, error) {
	return shared.OpenDatabase(ctx, r.config.Database, shared.WithLogger(r.logger, "component", "database"))
}

// backend creates the backend client bound to identity.
func (r *Runner) backend(identity models.Identity) *services.BackendClient {
	api := services.NewAPIService(r.config.Backend.URL, r.httpClient)
	return services.NewBackendClient(api, identity,
		services.WithRateLimit(r.config.Backend.RequestsPerSecond),
		services.WithAuthToken(r.config.Backend.Token),
		services.WithBackendLogger(shared.WithLogger(r.logger, "component", "backend")),
	)
}

// registry routes each configured provider to its collaborator.
//
// Device providers with their own OAuth endpoints talk RFC 8628 directly.
// Spotify links through a local authorization code flow when credentials are set.
// Everything else goes through the backend.
func (r *Runner) registry(backend *services.BackendClient) (*services.Registry, error) {
	registry := services.NewRegistry(backend)

	for _, p := range r.config.Providers {
		switch {
		case p.DirectOAuth():
			client, err := services.NewDeviceAuthClient(p.OAuth2Config(), r.httpClient, shared.WithLogger(r.logger, "provider", p.ID))
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", p.ID, err)
			}
			registry.RegisterDevice(p.ID, client)

		case p.ID == "spotify" && p.Kind == models.KindDirect && r.config.Spotify.Configured():
			svc, err := services.NewSpotifyService(r.config.Spotify, r.httpClient)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", p.ID, err)
			}
			authorize := server.Authorizer(server.AuthorizeOptions{
				Notify: func(msg string) { r.writePlain("%s\n", msg) },
				Logger: shared.WithLogger(r.logger, "provider", p.ID),
			})
			registry.RegisterDirect(p.ID, services.NewSpotifyLinker(svc, authorize))
		}
	}
	return registry, nil
}

// buildEngine wires the onboarding engine for identity.
//
// Recording is skipped with a warning when the database cannot be opened.
func (r *Runner) buildEngine(identity models.Identity) (tasks.Onboarder, func(), error) {
	backend := r.backend(identity)
	registry, err := r.registry(backend)
	if err != nil {
		return nil, nil, err
	}

	pacing := initgate.DefaultPacing()
	if r.config.Init.RetryDelay > 0 {
		pacing.RetryDelay = r.config.Init.RetryDelay
	}

	opts := []tasks.EngineOption{
		tasks.WithLogger(r.logger),
		tasks.WithSyncer(registry),
		tasks.WithLinkOptions(linking.WithFlowOptions(
			deviceflow.WithMinInterval(r.config.Device.MinInterval),
			deviceflow.WithLogger(r.logger),
		)),
		tasks.WithGateOptions(initgate.WithPacing(pacing), initgate.WithTimeout(r.config.Init.Timeout)),
	}

	cleanup := func() {}
	if db, err := r.openDatabase(context.Background()); err != nil {
		r.logger.Warn("link records will not be saved", "error", err)
	} else {
		opts = append(opts, tasks.WithRecorder(repositories.NewRecorder(db)))
		cleanup = func() { db.Close() }
	}

	return tasks.NewOnboardingEngine(registry, backend, opts...), cleanup, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// initHint tells the user how to retry a failed initialization.
func (r *Runner) initHint(err error) {
	if errors.Is(err, shared.ErrInitBackend) {
		r.writePlain("\nYour providers are linked. Run 'soundlink init run' to retry initialization.\n")
	}
}
