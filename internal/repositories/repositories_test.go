package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/soundlink/internal/initgate"
	"github.com/desertthunder/soundlink/internal/linking"
	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
	"golang.org/x/oauth2"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenDatabase(context.Background(), shared.DatabaseConfig{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func completedLink(sessionID, provider string) *models.LinkRecord {
	rec := models.NewLinkRecord(0, sessionID, provider, models.KindDevice)
	rec.SetStatus(models.EntryCompleted)
	rec.SetSuccess(true)
	return rec
}

func TestLinkRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		repo := NewLinkRepository(setupTestDB(t))
		rec := completedLink("s1", "tidal")
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		rec.SetAccountID("12345")
		rec.SetUsername("neo")
		rec.SetExpiresAt(&exp)

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create link record: %v", err)
		}
		if rec.ID() == "" || rec.Sequence() != 1 {
			t.Fatalf("expected id and sequence 1, got %q/%d", rec.ID(), rec.Sequence())
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get link record: %v", err)
		}
		if got.ProviderID() != "tidal" || !got.Success() || got.Status() != models.EntryCompleted {
			t.Errorf("unexpected record: %+v", got)
		}
		if got.AccountID() != "12345" || got.Username() != "neo" {
			t.Errorf("expected account fields to round trip, got %q/%q", got.AccountID(), got.Username())
		}
		if got.ExpiresAt() == nil || !got.ExpiresAt().Equal(exp) {
			t.Errorf("expected expiry %v, got %v", exp, got.ExpiresAt())
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewLinkRepository(setupTestDB(t))
		rec := models.NewLinkRecord(0, "s1", "deezer", models.KindDevice)

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create link record: %v", err)
		}

		rec.SetStatus(models.EntrySkipped)
		rec.SetReason(models.ReasonDenied)
		if err := repo.Update(rec); err != nil {
			t.Fatalf("failed to update link record: %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get link record: %v", err)
		}
		if got.Status() != models.EntrySkipped || got.Reason() != models.ReasonDenied {
			t.Errorf("expected skipped/denied, got %s/%s", got.Status(), got.Reason())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewLinkRepository(setupTestDB(t))
		rec := completedLink("s1", "tidal")

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create link record: %v", err)
		}
		if err := repo.Delete(rec.ID()); err != nil {
			t.Fatalf("failed to delete link record: %v", err)
		}
		if _, err := repo.Get(rec.ID()); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound after delete, got %v", err)
		}
		if err := repo.Delete(rec.ID()); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound on second delete, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewLinkRepository(setupTestDB(t))
		for _, rec := range []*models.LinkRecord{
			completedLink("s1", "tidal"),
			models.NewLinkRecord(0, "s1", "deezer", models.KindDevice),
			completedLink("s2", "tidal"),
		} {
			if err := repo.Create(rec); err != nil {
				t.Fatalf("failed to create link record: %v", err)
			}
		}

		tests := []struct {
			name     string
			criteria map[string]any
			want     int
		}{
			{name: "All", criteria: map[string]any{}, want: 3},
			{name: "By Session", criteria: map[string]any{"session_id": "s1"}, want: 2},
			{name: "By Provider", criteria: map[string]any{"provider_id": "tidal"}, want: 2},
			{name: "Successful", criteria: map[string]any{"success": true}, want: 2},
			{name: "Failed", criteria: map[string]any{"success": false}, want: 1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				records, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list link records: %v", err)
				}
				if len(records) != tt.want {
					t.Errorf("expected %d records, got %d", tt.want, len(records))
				}
				for i := 1; i < len(records); i++ {
					if records[i].Sequence() <= records[i-1].Sequence() {
						t.Error("records not ordered by sequence")
					}
				}
			})
		}
	})

	t.Run("LatestByProvider", func(t *testing.T) {
		repo := NewLinkRepository(setupTestDB(t))
		first := models.NewLinkRecord(0, "s1", "tidal", models.KindDevice)
		second := completedLink("s2", "tidal")
		other := completedLink("s2", "deezer")
		for _, rec := range []*models.LinkRecord{first, second, other} {
			if err := repo.Create(rec); err != nil {
				t.Fatalf("failed to create link record: %v", err)
			}
		}

		latest, err := repo.LatestByProvider()
		if err != nil {
			t.Fatalf("failed to list latest records: %v", err)
		}
		if len(latest) != 2 {
			t.Fatalf("expected 2 providers, got %d", len(latest))
		}
		if latest[0].ProviderID() != "deezer" || latest[1].ID() != second.ID() {
			t.Errorf("unexpected latest records: %s, %s", latest[0].ProviderID(), latest[1].ID())
		}
	})
}

func TestInitRunRepository(t *testing.T) {
	identity := models.Identity{SessionID: "s1", UserID: "u1", Email: "u1@example.com"}

	t.Run("Create And Latest", func(t *testing.T) {
		repo := NewInitRunRepository(setupTestDB(t))

		first := models.NewInitRecord(0, identity)
		first.SetClass(models.InitFallback)
		first.SetAttempts(2)
		second := models.NewInitRecord(0, identity)
		second.SetClass(models.InitTrained)
		second.SetAttempts(1)
		second.SetItemCount(42)
		second.SetStatus(models.InitStatusTrained)

		for _, rec := range []*models.InitRecord{first, second} {
			if err := repo.Create(rec); err != nil {
				t.Fatalf("failed to create init record: %v", err)
			}
		}

		latest, err := repo.Latest("u1")
		if err != nil {
			t.Fatalf("failed to get latest init record: %v", err)
		}
		if latest.ID() != second.ID() || latest.ItemCount() != 42 || latest.Class() != models.InitTrained {
			t.Errorf("unexpected latest record: %+v", latest)
		}

		records, err := repo.List(map[string]any{"class": models.InitFallback})
		if err != nil {
			t.Fatalf("failed to list init records: %v", err)
		}
		if len(records) != 1 || records[0].Attempts() != 2 {
			t.Errorf("expected one fallback record with 2 attempts, got %d", len(records))
		}
	})

	t.Run("Update And Delete", func(t *testing.T) {
		repo := NewInitRunRepository(setupTestDB(t))
		rec := models.NewInitRecord(0, identity)
		rec.SetClass(models.InitFailed)
		rec.SetAttempts(1)

		if err := repo.Create(rec); err != nil {
			t.Fatalf("failed to create init record: %v", err)
		}
		rec.SetErrorMessage("backend unreachable")
		if err := repo.Update(rec); err != nil {
			t.Fatalf("failed to update init record: %v", err)
		}

		got, err := repo.Get(rec.ID())
		if err != nil {
			t.Fatalf("failed to get init record: %v", err)
		}
		if got.ErrorMessage() != "backend unreachable" {
			t.Errorf("expected error message to persist, got %q", got.ErrorMessage())
		}

		if err := repo.Delete(rec.ID()); err != nil {
			t.Fatalf("failed to delete init record: %v", err)
		}
		if _, err := repo.Latest("u1"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordLink", func(t *testing.T) {
		rec := NewRecorder(setupTestDB(t))
		res := linking.Result{
			ProviderID: "tidal",
			Kind:       models.KindDevice,
			Status:     models.EntryCompleted,
			Success:    true,
			Token: &models.TokenBundle{
				Token:   &oauth2.Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)},
				Account: models.Account{UserID: "12345", Username: "neo"},
			},
		}

		if err := rec.RecordLink(ctx, "s1", res); err != nil {
			t.Fatalf("failed to record link: %v", err)
		}

		records, err := rec.Links.List(map[string]any{"session_id": "s1"})
		if err != nil {
			t.Fatalf("failed to list link records: %v", err)
		}
		if len(records) != 1 || records[0].AccountID() != "12345" || records[0].ExpiresAt() == nil {
			t.Errorf("unexpected records: %+v", records)
		}
	})

	t.Run("RecordInit", func(t *testing.T) {
		rec := NewRecorder(setupTestDB(t))
		identity := models.Identity{SessionID: "s1", UserID: "u1", Email: "u1@example.com"}
		outcome := &initgate.Outcome{
			Kind:     models.InitFailed,
			Attempts: 2,
			Result:   models.InitResult{Status: models.InitStatusBaseModelCopied},
		}

		if err := rec.RecordInit(ctx, identity, outcome, shared.ErrInitBackend); err != nil {
			t.Fatalf("failed to record init: %v", err)
		}
		if err := rec.RecordInit(ctx, identity, nil, context.Canceled); err != nil {
			t.Fatalf("expected nil outcome to be ignored, got %v", err)
		}

		latest, err := rec.Inits.Latest("u1")
		if err != nil {
			t.Fatalf("failed to get latest init record: %v", err)
		}
		if latest.Attempts() != 2 || latest.ErrorMessage() != shared.ErrInitBackend.Error() {
			t.Errorf("unexpected init record: attempts=%d msg=%q", latest.Attempts(), latest.ErrorMessage())
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "link_records")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if got, err := NextSequence(db, "init_records"); err != nil || got != 1 {
		t.Errorf("expected independent counter starting at 1, got %d (%v)", got, err)
	}

	if _, err := NextSequence(db, "users; DROP TABLE link_records"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
