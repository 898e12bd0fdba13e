package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/supportline/internal/hooks"
)

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// EventRecord is one journaled support event.
type EventRecord struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Journal keeps a history of widget lifecycle events, fed from the hook bus.
type Journal struct {
	db  *DB
	now func() time.Time
}

func NewJournal(db *DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record appends an event.
func (j *Journal) Record(ctx context.Context, event string, data map[string]any) (EventRecord, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return EventRecord{}, err
	}
	rec := EventRecord{ID: id.String(), Event: event, Data: data, CreatedAt: j.now().UTC()}

	var raw sql.NullString
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err != nil {
			return EventRecord{}, fmt.Errorf("encoding event data: %w", err)
		}
		raw = sql.NullString{String: string(b), Valid: true}
	}

	if _, err := j.db.sql.ExecContext(ctx,
		"INSERT INTO support_events (id, event, data, created_at) VALUES (?, ?, ?, ?)",
		rec.ID, rec.Event, raw, rec.CreatedAt.Format(timeLayout),
	); err != nil {
		return EventRecord{}, fmt.Errorf("recording event: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit events, newest first. An empty event name
// matches every event.
func (j *Journal) Recent(ctx context.Context, event string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT id, event, data, created_at FROM support_events"
	args := []any{}
	if event != "" {
		query += " WHERE event = ?"
		args = append(args, event)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var (
			rec     EventRecord
			raw     sql.NullString
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.Event, &raw, &created); err != nil {
			return nil, err
		}
		if raw.Valid {
			if err := json.Unmarshal([]byte(raw.String), &rec.Data); err != nil {
				return nil, fmt.Errorf("decoding event %s: %w", rec.ID, err)
			}
		}
		rec.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of journaled events with the given name.
func (j *Journal) Count(ctx context.Context, event string) (int, error) {
	var n int
	err := j.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM support_events WHERE event = ?", event).Scan(&n)
	return n, err
}

// Attach journals every named event emitted on hm.
func (j *Journal) Attach(hm *hooks.Manager, events ...string) {
	for _, ev := range events {
		hm.On(ev, "journal", func(ctx context.Context, p hooks.Payload) error {
			_, err := j.Record(ctx, p.Event, p.Data)
			return err
		})
	}
}
