package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/soundlink/internal/shared"
)

// sequenced lists the tables that own a <table>_sequence counter.
var sequenced = map[string]string{
	"link_records": "UPDATE link_records_sequence SET value = value + 1 WHERE id = 1 RETURNING value",
	"init_records": "UPDATE init_records_sequence SET value = value + 1 WHERE id = 1 RETURNING value",
}

// NextSequence bumps and returns the insertion counter of table.
func NextSequence(db *sql.DB, table string) (int, error) {
	query, ok := sequenced[table]
	if !ok {
		return 0, fmt.Errorf("%w: no sequence for table %q", shared.ErrInvalidArgument, table)
	}

	var sequence int
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: sequence row for %s is missing", shared.ErrRecordNotFound, table)
		}
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// expectOne turns a zero-row update into ErrRecordNotFound.
func expectOne(result sql.Result, what, id string) error {
	n, err := result.RowsAffected()
	switch {
	case err != nil:
		return fmt.Errorf("failed to get affected rows: %w", err)
	case n == 0:
		return fmt.Errorf("%w: %s %s", shared.ErrRecordNotFound, what, id)
	default:
		return nil
	}
}
