package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/soundlink/internal/models"
	"github.com/desertthunder/soundlink/internal/shared"
)

const initColumns = `id, sequence, session_id, user_id, class, attempts, item_count, status,
	error_message, created_at, updated_at, deleted_at`

// InitRunRepository implements [models.Repository] for [models.InitRecord].
type InitRunRepository struct {
	db *sql.DB
}

func NewInitRunRepository(db *sql.DB) *InitRunRepository {
	return &InitRunRepository{db: db}
}

func (r *InitRunRepository) Create(rec *models.InitRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "init_records")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	rec.SetID(shared.GenerateID())
	rec.SetSequence(sequence)

	query := `
		INSERT INTO init_records (` + initColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err = r.db.Exec(query,
		rec.ID(), rec.Sequence(), rec.SessionID(), rec.UserID(), string(rec.Class()), rec.Attempts(),
		rec.ItemCount(), rec.Status(), rec.ErrorMessage(), rec.CreatedAt(), rec.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert init record: %w", err)
	}
	return nil
}

func (r *InitRunRepository) Get(id string) (*models.InitRecord, error) {
	query := `SELECT ` + initColumns + ` FROM init_records WHERE id = ? AND deleted_at IS NULL`

	rec, err := scanInit(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: init record %s", shared.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query init record: %w", err)
	}
	return rec, nil
}

func (r *InitRunRepository) Update(rec *models.InitRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	rec.SetUpdatedAt(now)

	query := `
		UPDATE init_records
		SET class = ?, attempts = ?, item_count = ?, status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.Exec(query,
		string(rec.Class()), rec.Attempts(), rec.ItemCount(), rec.Status(), rec.ErrorMessage(), now, rec.ID())
	if err != nil {
		return fmt.Errorf("failed to update init record: %w", err)
	}
	return expectOne(result, "init record", rec.ID())
}

func (r *InitRunRepository) Delete(id string) error {
	result, err := r.db.Exec(
		`UPDATE init_records SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete init record: %w", err)
	}
	return expectOne(result, "init record", id)
}

// List supports "user_id", "session_id" and "class" criteria.
func (r *InitRunRepository) List(criteria map[string]any) ([]*models.InitRecord, error) {
	query := `SELECT ` + initColumns + ` FROM init_records WHERE deleted_at IS NULL`
	args := []any{}

	if v, ok := criteria["user_id"].(string); ok && v != "" {
		query += " AND user_id = ?"
		args = append(args, v)
	}
	if v, ok := criteria["session_id"].(string); ok && v != "" {
		query += " AND session_id = ?"
		args = append(args, v)
	}
	if v, ok := criteria["class"].(models.InitClass); ok && v != "" {
		query += " AND class = ?"
		args = append(args, string(v))
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query init records: %w", err)
	}
	defer rows.Close()

	var records []*models.InitRecord
	for rows.Next() {
		rec, err := scanInit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan init record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Latest returns the most recent record for userID.
func (r *InitRunRepository) Latest(userID string) (*models.InitRecord, error) {
	query := `
		SELECT ` + initColumns + ` FROM init_records
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC LIMIT 1
	`
	rec, err := scanInit(r.db.QueryRow(query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no init record for user %s", shared.ErrRecordNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query init record: %w", err)
	}
	return rec, nil
}

func scanInit(s scanner) (*models.InitRecord, error) {
	var (
		id, sessionID, userID, class, status, errorMessage string
		sequence, attempts, itemCount                      int
		createdAt, updatedAt                               time.Time
		deletedAt                                          sql.NullTime
	)
	err := s.Scan(&id, &sequence, &sessionID, &userID, &class, &attempts, &itemCount, &status,
		&errorMessage, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	rec := models.NewInitRecord(sequence, models.Identity{SessionID: sessionID, UserID: userID})
	rec.SetID(id)
	rec.SetClass(models.InitClass(class))
	rec.SetAttempts(attempts)
	rec.SetItemCount(itemCount)
	rec.SetStatus(status)
	rec.SetErrorMessage(errorMessage)
	rec.SetCreatedAt(createdAt)
	rec.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		rec.SetDeletedAt(&deletedAt.Time)
	}
	return rec, nil
}
