package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/soundlink/internal/formatter"
	"github.com/desertthunder/soundlink/internal/repositories"
	"github.com/desertthunder/soundlink/internal/shared"
	"github.com/desertthunder/soundlink/internal/tasks"
	"github.com/urfave/cli/v3"
)

// InitRun runs the initialization gate on its own, e.g. after a backend failure.
func (r *Runner) InitRun(ctx context.Context, cmd *cli.Command) error {
	identity := r.identity(cmd)
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMissingArgument, err)
	}

	engine, cleanup, err := r.newEngine(identity)
	if err != nil {
		return err
	}
	defer cleanup()

	verbose := !cmd.Bool("json")
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.printProgress(progress, verbose)
	}()

	outcome, err := engine.RetryInitialization(ctx, progress, identity)
	close(progress)
	<-done

	if cmd.Bool("json") && outcome != nil {
		if jerr := r.writeJSON(outcome, true); jerr != nil {
			return jerr
		}
	} else {
		r.writePlain("Initialization: %s\n", formatter.InitSummary(outcome, err))
	}
	return err
}

// InitStatus prints the most recent initialization recorded for the user.
func (r *Runner) InitStatus(ctx context.Context, cmd *cli.Command) error {
	identity := r.identity(cmd)
	if identity.UserID == "" {
		return fmt.Errorf("%w: user", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := repositories.NewInitRunRepository(db).Latest(identity.UserID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(rec, true)
	}

	r.writePlain("%s  %s after %d attempt(s)", rec.CreatedAt().Format("2006-01-02 15:04:05"), rec.Class(), rec.Attempts())
	if rec.ItemCount() > 0 {
		r.writePlain(", %d items", rec.ItemCount())
	}
	if rec.ErrorMessage() != "" {
		r.writePlain("\n  error: %s", rec.ErrorMessage())
	}
	return r.writePlain("\n")
}
