package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/soundlink/internal/deviceflow"
	"github.com/desertthunder/soundlink/internal/formatter"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/repositories"
	"github.com/desertthunder/soundlink/internal/shared"
	"github.com/desertthunder/soundlink/internal/tasks"
	"github.com/urfave/cli/v3"
)

func (r *Runner) format(cmd *cli.Command) (formatter.Format, error) {
	if cmd.Bool("json") {
		return formatter.FormatJSON, nil
	}
	return formatter.ParseFormat(cmd.String("format"))
}

// LinkRun links the requested providers in order and then initializes the model once.
func (r *Runner) LinkRun(ctx context.Context, cmd *cli.Command) error {
	providers, err := r.providers(cmd.StringSlice("provider"))
	if err != nil {
		return err
	}
	format, err := r.format(cmd)
	if err != nil {
		return err
	}

	identity := r.identity(cmd)
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v (set --user and --email, or [user] in the config file)", shared.ErrMissingArgument, err)
	}

	if cmd.Bool("tui") {
		restore, err := r.useFileLogger()
		if err != nil {
			return err
		}
		defer restore()
	}

	engine, cleanup, err := r.newEngine(identity)
	if err != nil {
		return err
	}
	defer cleanup()

	r.logger.Info("starting onboarding", "session", identity.SessionID, "providers", len(providers))

	var result *tasks.OnboardingResult
	if cmd.Bool("tui") {
		result, err = r.runTUI(ctx, engine, providers, identity)
	} else {
		result, err = r.runLinking(ctx, engine, providers, identity, format == formatter.FormatText)
	}
	if result == nil {
		return err
	}

	if werr := r.writeResult(result, format, cmd.String("output")); werr != nil {
		return werr
	}
	if result.Init != nil && result.Init.Fallback() {
		r.logger.Warn("initialization fell back to the base model")
	}
	r.initHint(err)
	return err
}

// runLinking runs onboarding while printing progress. Progress lines are only
// printed when verbose is set so structured output stays parseable.
func (r *Runner) runLinking(ctx context.Context, engine tasks.Onboarder, providers []models.Provider, identity models.Identity, verbose bool) (*tasks.OnboardingResult, error) {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.printProgress(progress, verbose)
	}()

	result, err := engine.LinkAndInitialize(ctx, progress, providers, identity)
	close(progress)
	<-done
	return result, err
}

// printProgress drains updates. Device codes are always shown since the user
// has to act on them.
func (r *Runner) printProgress(updates <-chan tasks.ProgressUpdate, verbose bool) {
	var shown string
	last := tasks.Phase(-1)

	for u := range updates {
		switch u.Phase {
		case tasks.DeviceCode:
			fu, ok := u.Data.(deviceflow.Update)
			if !ok || fu.Grant == nil || fu.Grant.UserCode == shown {
				continue
			}
			shown = fu.Grant.UserCode
			r.printCode(fu)
		case tasks.Analyzing, tasks.Training, tasks.Evaluating, tasks.Persisting:
			if verbose && u.Phase != last {
				r.writePlain("   %s\n", u.Message)
			}
		default:
			if verbose {
				r.writePlain("%s\n", u.Message)
			}
		}
		last = u.Phase
	}
}

func (r *Runner) printCode(u deviceflow.Update) {
	r.writePlain("\n  Visit  %s\n  Enter  %s\n  (code expires in %s)\n\n",
		u.Grant.VerificationURL(), u.Grant.UserCode, tasks.Countdown(u.Remaining))
}

func (r *Runner) writeResult(result *tasks.OnboardingResult, format formatter.Format, path string) error {
	if path != "" {
		if err := formatter.WriteResult(result, format, path); err != nil {
			return err
		}
		r.logger.Info("result written", "path", path, "format", format)
		return nil
	}

	if format == formatter.FormatText {
		r.writePlain("\n")
		r.writePlainHeader("Onboarding Summary")
	}
	data, err := formatter.Render(result, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// LinkDevice runs a single device authorization flow for one provider.
func (r *Runner) LinkDevice(ctx context.Context, cmd *cli.Command) error {
	providerID := cmd.StringArg("provider")
	if providerID == "" {
		return fmt.Errorf("%w: provider", shared.ErrMissingArgument)
	}
	pc, ok := r.config.Provider(providerID)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnknownProvider, providerID)
	}
	if pc.Kind != models.KindDevice {
		return fmt.Errorf("%w: %s is not a device provider", shared.ErrInvalidArgument, providerID)
	}

	identity := r.identity(cmd)
	registry, err := r.registry(r.backend(identity))
	if err != nil {
		return err
	}

	logger := shared.WithLogger(r.logger, "provider", providerID)
	ctrl := deviceflow.New(registry,
		deviceflow.WithMinInterval(r.config.Device.MinInterval),
		deviceflow.WithLogger(logger),
	)

	var shown string
	var final deviceflow.Update
	for u := range ctrl.Start(ctx, providerID) {
		if u.Grant != nil && u.Grant.UserCode != shown {
			shown = u.Grant.UserCode
			r.printCode(u)
			if cmd.Bool("open") {
				if err := shared.OpenBrowser(u.Grant.VerificationURL()); err != nil {
					logger.Warn("failed to open browser", "error", err)
				}
			}
		}
		if u.Terminal() {
			final = u
		}
	}

	res := linking.Result{ProviderID: providerID, Kind: models.KindDevice, Status: models.EntrySkipped, Reason: final.Reason, Err: final.Err}
	if final.State == models.FlowSucceeded {
		res = linking.Result{ProviderID: providerID, Kind: models.KindDevice, Status: models.EntryCompleted, Success: true, Token: final.Token}
		if !cmd.Bool("no-sync") {
			if err := registry.SyncLinked(ctx, providerID, final.Token); err != nil {
				logger.Warn("sync failed", "error", err)
				res.Success = false
				res.Reason = models.ReasonSyncFailed
				res.Err = fmt.Errorf("%w: %v", shared.ErrSyncFailed, err)
			}
		}
	}

	r.recordLink(ctx, identity.SessionID, res)

	line := fmt.Sprintf("%s %s", formatter.Glyph(res), providerID)
	if res.Reason != "" {
		line += fmt.Sprintf(" (%s)", res.Reason)
	}
	r.writePlain("%s\n", line)

	if !res.Success {
		if res.Err != nil {
			return res.Err
		}
		return fmt.Errorf("%w: %s %s", shared.ErrLinkFailed, providerID, res.Reason)
	}
	return nil
}

// recordLink stores res when the database is available.
func (r *Runner) recordLink(ctx context.Context, sessionID string, res linking.Result) {
	db, err := r.openDatabase(ctx)
	if err != nil {
		r.logger.Warn("link record not saved", "error", err)
		return
	}
	defer db.Close()

	if err := repositories.NewRecorder(db).RecordLink(ctx, sessionID, res); err != nil {
		r.logger.Warn("link record not saved", "error", err)
	}
}

// LinkList prints stored link records.
func (r *Runner) LinkList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewLinkRepository(db)

	var records []*models.LinkRecord
	if cmd.Bool("latest") {
		records, err = repo.LatestByProvider()
	} else {
		records, err = repo.List(map[string]any{
			"session_id":  cmd.String("session"),
			"provider_id": cmd.String("provider"),
		})
	}
	if err != nil {
		return err
	}

	if provider := cmd.String("provider"); provider != "" && cmd.Bool("latest") {
		filtered := records[:0]
		for _, rec := range records {
			if strings.EqualFold(rec.ProviderID(), provider) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	switch format {
	case formatter.FormatJSON:
		return r.writeJSON(records, true)
	case formatter.FormatCSV:
		data, err := formatter.RecordsToCSV(records)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return r.writePlain("%s", formatter.RecordsToText(records))
	}
}
