package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
)

// Recorder persists onboarding outcomes into the link and init tables.
type Recorder struct {
	Links *LinkRepository
	Inits *InitRunRepository
}

// NewRecorder creates a [Recorder] over db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{Links: NewLinkRepository(db), Inits: NewInitRunRepository(db)}
}

// RecordLink stores one resolved linking entry.
func (r *Recorder) RecordLink(_ context.Context, sessionID string, res linking.Result) error {
	rec := models.NewLinkRecord(0, sessionID, res.ProviderID, res.Kind)
	rec.SetStatus(res.Status)
	rec.SetSuccess(res.Success)
	rec.SetReason(res.Reason)
	rec.SetAccount(res.Token)

	if err := r.Links.Create(rec); err != nil {
		return fmt.Errorf("record link %s: %w", res.ProviderID, err)
	}
	return nil
}

// RecordInit stores an initialization outcome. cause is the run error, if any.
func (r *Recorder) RecordInit(_ context.Context, identity models.Identity, outcome *initgate.Outcome, cause error) error {
	if outcome == nil {
		return nil
	}

	rec := models.NewInitRecord(0, identity)
	rec.SetClass(outcome.Kind)
	rec.SetAttempts(outcome.Attempts)
	rec.SetItemCount(outcome.Result.ItemCount)
	rec.SetStatus(outcome.Result.Status)
	if cause != nil {
		rec.SetErrorMessage(cause.Error())
	}

	if err := r.Inits.Create(rec); err != nil {
		return fmt.Errorf("record init: %w", err)
	}
	return nil
}
