package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
)

const linkColumns = `id, sequence, session_id, provider_id, kind, status, success, reason,
	account_id, username, expires_at, created_at, updated_at, deleted_at`

// LinkRepository implements [models.Repository] for [models.LinkRecord].
type LinkRepository struct {
	db *sql.DB
}

// NewLinkRepository creates a new [LinkRepository] with the given database connection.
func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a record with a generated ID and sequence.
func (r *LinkRepository) Create(rec *models.LinkRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "link_records")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	rec.SetID(shared.GenerateID())
	rec.SetSequence(sequence)

	query := `
		INSERT INTO link_records (` + linkColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err = r.db.Exec(query,
		rec.ID(), rec.Sequence(), rec.SessionID(), rec.ProviderID(), string(rec.Kind()),
		string(rec.Status()), rec.Success(), string(rec.Reason()), rec.AccountID(), rec.Username(),
		nullTime(rec.ExpiresAt()), rec.CreatedAt(), rec.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert link record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID, excluding soft-deleted records.
func (r *LinkRepository) Get(id string) (*models.LinkRecord, error) {
	query := `SELECT ` + linkColumns + ` FROM link_records WHERE id = ? AND deleted_at IS NULL`

	rec, err := scanLink(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: link record %s", shared.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query link record: %w", err)
	}
	return rec, nil
}

// Update persists status, outcome and account fields.
func (r *LinkRepository) Update(rec *models.LinkRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	rec.SetUpdatedAt(now)

	query := `
		UPDATE link_records
		SET status = ?, success = ?, reason = ?, account_id = ?, username = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.Exec(query,
		string(rec.Status()), rec.Success(), string(rec.Reason()), rec.AccountID(), rec.Username(),
		nullTime(rec.ExpiresAt()), now, rec.ID())
	if err != nil {
		return fmt.Errorf("failed to update link record: %w", err)
	}
	return expectOne(result, "link record", rec.ID())
}

// Delete soft-deletes a record by ID.
func (r *LinkRepository) Delete(id string) error {
	result, err := r.db.Exec(
		`UPDATE link_records SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete link record: %w", err)
	}
	return expectOne(result, "link record", id)
}

// List retrieves records ordered by sequence.
//
// Supported criteria: "session_id", "provider_id" and "success" (bool).
func (r *LinkRepository) List(criteria map[string]any) ([]*models.LinkRecord, error) {
	query := `SELECT ` + linkColumns + ` FROM link_records WHERE deleted_at IS NULL`
	args := []any{}

	if v, ok := criteria["session_id"].(string); ok && v != "" {
		query += " AND session_id = ?"
		args = append(args, v)
	}
	if v, ok := criteria["provider_id"].(string); ok && v != "" {
		query += " AND provider_id = ?"
		args = append(args, v)
	}
	if v, ok := criteria["success"].(bool); ok {
		query += " AND success = ?"
		args = append(args, v)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query link records: %w", err)
	}
	defer rows.Close()

	var records []*models.LinkRecord
	for rows.Next() {
		rec, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// LatestByProvider returns the most recent record for each provider, ordered by provider id.
func (r *LinkRepository) LatestByProvider() ([]*models.LinkRecord, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM link_records l
		WHERE deleted_at IS NULL AND sequence = (
			SELECT MAX(sequence) FROM link_records
			WHERE provider_id = l.provider_id AND deleted_at IS NULL
		)
		ORDER BY provider_id ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest link records: %w", err)
	}
	defer rows.Close()

	var records []*models.LinkRecord
	for rows.Next() {
		rec, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*models.LinkRecord, error) {
	var (
		id, sessionID, providerID, kind, status, reason, accountID, username string
		sequence                                                             int
		success                                                              bool
		expiresAt, deletedAt                                                 sql.NullTime
		createdAt, updatedAt                                                 time.Time
	)
	err := s.Scan(&id, &sequence, &sessionID, &providerID, &kind, &status, &success, &reason,
		&accountID, &username, &expiresAt, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	rec := models.NewLinkRecord(sequence, sessionID, providerID, models.ProviderKind(kind))
	rec.SetID(id)
	rec.SetStatus(models.EntryStatus(status))
	rec.SetSuccess(success)
	rec.SetReason(models.FailureReason(reason))
	rec.SetAccountID(accountID)
	rec.SetUsername(username)
	rec.SetCreatedAt(createdAt)
	rec.SetUpdatedAt(updatedAt)
	if expiresAt.Valid {
		rec.SetExpiresAt(&expiresAt.Time)
	}
	if deletedAt.Valid {
		rec.SetDeletedAt(&deletedAt.Time)
	}
	return rec, nil
}
