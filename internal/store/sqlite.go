// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Separate writer/reader pools, schema creation, migrations and tx helpers

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeFormat is fixed-width so that TEXT comparison matches chronological order
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// conversationKeyIndex enforces one conversation per (pair, item)
const conversationKeyIndex = "idx_conversations_pair_item"

const defaultBusyTimeout = 5 * time.Second

// SQLiteStore implements the Store interface using SQLite.
//
// Writes go through db, whose connections open every transaction with
// BEGIN IMMEDIATE so that concurrent writers are serialized by SQLite itself.
// Reads go through reader, a query_only pool whose deferred transactions see
// a WAL snapshot without taking the write lock.
type SQLiteStore struct {
	db     *sql.DB
	reader *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a SQLiteStore
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// WithBusyTimeout sets how long a connection waits on a locked database
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithClock replaces time.Now for created_at/sent_at stamping
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the store's logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := options{
		busyTimeout: defaultBusyTimeout,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "store")

	memory := path == ":memory:"
	if !memory {
		// Ensure parent directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", writerDSN(path, o.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	reader := db
	if memory {
		// Every connection to :memory: is its own database
		db.SetMaxOpenConns(1)
	} else {
		reader, err = sql.Open("sqlite", readerDSN(path, o.busyTimeout))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("opening reader pool: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		reader: reader,
		logger: logger,
		now:    o.now,
	}

	ctx := context.Background()
	if err := s.createSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// writerDSN builds the DSN for the write pool. Pragmas are passed through the
// DSN so they apply to every pooled connection, not just the first one.
func writerDSN(path string, busyTimeout time.Duration) string {
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_pragma=foreign_keys(1)",
		"_txlock=immediate",
	}
	if path != ":memory:" {
		params = append(params, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

func readerDSN(path string, busyTimeout time.Duration) string {
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
		"_pragma=query_only(1)",
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS participants (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			username     TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS items (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id    INTEGER NOT NULL,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL,
			status      TEXT NOT NULL,
			location    TEXT NOT NULL DEFAULT '',
			reported_at TEXT NOT NULL,
			created_at  TEXT NOT NULL,

			CHECK (category IN ('ELECTRONICS', 'BOOKS', 'APPAREL', 'ACCESSORIES', 'DOCUMENTS', 'OTHER')),
			CHECK (status IN ('LOST', 'FOUND', 'RETURNED'))
		);

		CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id);

		CREATE TABLE IF NOT EXISTS conversations (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			participant_low  INTEGER NOT NULL,
			participant_high INTEGER NOT NULL,
			item_id          INTEGER NOT NULL,
			created_at       TEXT NOT NULL,
			last_message_at  TEXT NOT NULL,

			CHECK (participant_low < participant_high)
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_low
			ON conversations(participant_low, last_message_at);
		CREATE INDEX IF NOT EXISTS idx_conversations_high
			ON conversations(participant_high, last_message_at);

		CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			sender_id       INTEGER NOT NULL,
			content         TEXT NOT NULL,
			sent_at         TEXT NOT NULL,
			sequence        INTEGER NOT NULL,
			is_read         INTEGER NOT NULL DEFAULT 0,

			CHECK (length(content) BETWEEN 1 AND 1000),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_conversation_sequence
			ON messages(conversation_id, sequence);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation_sent
			ON messages(conversation_id, sent_at, sequence);
		CREATE INDEX IF NOT EXISTS idx_messages_unread
			ON messages(conversation_id, is_read, sender_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	normalized, err := s.normalizeTimestamps(ctx)
	if err != nil {
		return fmt.Errorf("normalizing timestamps: %w", err)
	}
	if normalized > 0 {
		s.logger.Info("applied migration", "normalized_timestamps", normalized)
	}

	// The conversation identity index is created here rather than in the
	// schema: databases carried over from the old service can contain
	// duplicate threads, and those have to be merged before the index fits.
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type = 'index' AND name = ?`,
		conversationKeyIndex,
	).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking %s: %w", conversationKeyIndex, err)
	}

	merged, err := s.RepairDuplicateConversations(ctx)
	if err != nil {
		return fmt.Errorf("repairing duplicate conversations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS `+conversationKeyIndex+`
			ON conversations(participant_low, participant_high, item_id)
	`)
	if err != nil {
		return fmt.Errorf("creating %s: %w", conversationKeyIndex, err)
	}

	s.logger.Info("applied migration", "index", conversationKeyIndex, "merged_duplicates", merged)
	return nil
}

// Ping checks both connection pools
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging writer: %w", err)
	}
	if err := s.reader.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging reader: %w", err)
	}
	return nil
}

// Close closes the database connections
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	var errs []error
	if s.reader != s.db {
		errs = append(errs, s.reader.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// withTx runs fn inside a write transaction. The transaction is rolled back
// if fn fails or ctx is canceled before commit.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// timestampColumns lists every TEXT time column
var timestampColumns = []struct{ table, column string }{
	{"participants", "created_at"},
	{"items", "reported_at"},
	{"items", "created_at"},
	{"conversations", "created_at"},
	{"conversations", "last_message_at"},
	{"messages", "sent_at"},
}

// normalizeTimestamps rewrites RFC3339 values left by the old service into
// timeFormat, so ORDER BY on the TEXT columns stays chronological. It must
// run before duplicate repair, which orders messages by sent_at.
func (s *SQLiteStore) normalizeTimestamps(ctx context.Context) (int, error) {
	var total int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range timestampColumns {
			n, err := normalizeColumn(ctx, tx, c.table, c.column)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	return total, err
}

func normalizeColumn(ctx context.Context, tx *sql.Tx, table, column string) (int, error) {
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, %s FROM %s WHERE length(%s) != ?`, column, table, column),
		len(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("scanning %s.%s: %w", table, column, err)
	}

	type legacy struct {
		id  int64
		raw string
	}
	var pending []legacy
	for rows.Next() {
		var l legacy
		if err := rows.Scan(&l.id, &l.raw); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning %s.%s: %w", table, column, err)
		}
		pending = append(pending, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("scanning %s.%s: %w", table, column, err)
	}
	rows.Close()

	for _, l := range pending {
		t, err := time.Parse(time.RFC3339Nano, l.raw)
		if err != nil {
			return 0, fmt.Errorf("%s.%s of row %d: unrecognized time %q", table, column, l.id, l.raw)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, table, column),
			formatTime(t), l.id,
		); err != nil {
			return 0, fmt.Errorf("rewriting %s.%s: %w", table, column, err)
		}
	}
	return len(pending), nil
}

// withReadTx runs fn inside a deferred transaction on the reader pool so that
// multi-statement reads see a single snapshot.
func (s *SQLiteStore) withReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.reader.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isUniqueViolation checks if the error is a SQLite UNIQUE constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
