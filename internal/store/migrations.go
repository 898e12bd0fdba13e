package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create widget dismissals",
		SQL: `
			CREATE TABLE widget_dismissals (
				user_key      TEXT PRIMARY KEY,
				dismissed_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 2,
		Name:    "create support event journal",
		SQL: `
			CREATE TABLE support_events (
				id          TEXT PRIMARY KEY,
				event       TEXT NOT NULL,
				data        TEXT,
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_support_events_created ON support_events (created_at, id);
			CREATE INDEX idx_support_events_event ON support_events (event);
		`,
	},
}
