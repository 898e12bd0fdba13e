package store

import (
	"context"
	"fmt"
	"time"
)

// DismissalStore is the persistent "don't show again" latch. It satisfies
// visibility.Latch.
type DismissalStore struct {
	db *DB
}

func NewDismissalStore(db *DB) *DismissalStore {
	return &DismissalStore{db: db}
}

func (s *DismissalStore) IsSet(ctx context.Context, key string) (bool, error) {
	var count int
	if err := s.db.sql.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM widget_dismissals WHERE user_key = ?", key,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("reading dismissal: %w", err)
	}
	return count > 0, nil
}

func (s *DismissalStore) Set(ctx context.Context, key string) error {
	_, err := s.db.sql.ExecContext(ctx,
		`INSERT INTO widget_dismissals (user_key, dismissed_at) VALUES (?, ?)
		 ON CONFLICT(user_key) DO NOTHING`,
		key, time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("recording dismissal: %w", err)
	}
	return nil
}

func (s *DismissalStore) Reset(ctx context.Context, key string) error {
	if _, err := s.db.sql.ExecContext(ctx, "DELETE FROM widget_dismissals WHERE user_key = ?", key); err != nil {
		return fmt.Errorf("clearing dismissal: %w", err)
	}
	return nil
}
