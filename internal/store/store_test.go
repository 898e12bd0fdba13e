package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/supportline/internal/hooks"
	"github.com/soyeahso/supportline/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	require.NoError(t, db.SQL().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate(context.Background()))

	var count int
	require.NoError(t, db.SQL().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"widget_dismissals", "support_events"} {
		var name string
		err := db.SQL().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "supportline.db")
	db, err := Open(path, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, NewDismissalStore(db).Set(context.Background(), "u-1"))
	require.NoError(t, db.Close())

	// Reopening keeps the data and does not re-run migrations.
	db, err = Open(path, logging.Nop())
	require.NoError(t, err)
	defer db.Close()
	set, err := NewDismissalStore(db).IsSet(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, set)
}

// --- Dismissal tests ---

func TestDismissalStore(t *testing.T) {
	ctx := context.Background()
	s := NewDismissalStore(testDB(t))

	set, err := s.IsSet(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.Set(ctx, "u-1"))
	require.NoError(t, s.Set(ctx, "u-1"))

	set, err = s.IsSet(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, set)

	set, err = s.IsSet(ctx, "u-2")
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.Reset(ctx, "u-1"))
	set, err = s.IsSet(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.Reset(ctx, "never-set"))
}

// --- Journal tests ---

func TestJournal_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	j.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 100 * time.Millisecond)
	}

	_, err := j.Record(ctx, hooks.EventChatStarted, map[string]any{"page": "/dashboard"})
	require.NoError(t, err)
	_, err = j.Record(ctx, hooks.EventFallbackTriggered, map[string]any{"attempts": 3, "channel": "widget"})
	require.NoError(t, err)
	_, err = j.Record(ctx, hooks.EventChatEnded, nil)
	require.NoError(t, err)

	all, err := j.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, hooks.EventChatEnded, all[0].Event)
	assert.Nil(t, all[0].Data)
	assert.Equal(t, hooks.EventChatStarted, all[2].Event)
	assert.Equal(t, "/dashboard", all[2].Data["page"])
	assert.Equal(t, base.Add(100*time.Millisecond), all[2].CreatedAt)

	failovers, err := j.Recent(ctx, hooks.EventFallbackTriggered, 0)
	require.NoError(t, err)
	require.Len(t, failovers, 1)
	assert.Equal(t, float64(3), failovers[0].Data["attempts"])

	limited, err := j.Recent(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestJournal_Attach(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t))
	hm := hooks.NewManager(logging.Nop())
	j.Attach(hm, hooks.EventFallbackTriggered, hooks.EventDeepLinkOpened)

	hm.Emit(ctx, hooks.EventFallbackTriggered, map[string]any{"channel": "deeplink"})
	hm.Emit(ctx, hooks.EventDeepLinkOpened, map[string]any{"url": "https://wa.me/1"})
	hm.Emit(ctx, hooks.EventChatStarted, nil)

	n, err := j.Count(ctx, hooks.EventFallbackTriggered)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = j.Count(ctx, hooks.EventChatStarted)
	require.NoError(t, err)
	assert.Zero(t, n)
}
