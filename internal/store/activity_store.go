package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/shelfshot/internal/domain"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func (s *ActivityStore) Append(ctx context.Context, e domain.ActivityEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (at, severity, message) VALUES (?, ?, ?)
	`, e.At.UTC(), string(e.Severity), e.Message)
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, oldest first.
func (s *ActivityStore) Recent(ctx context.Context, limit int) ([]domain.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT at, severity, message FROM (
			SELECT id, at, severity, message FROM activity ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	var entries []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var sev string
		if err := rows.Scan(&e.At, &sev, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		e.Severity = domain.Severity(sev)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}

	return entries, nil
}
