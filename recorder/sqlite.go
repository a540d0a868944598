package recorder

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/amirmolavi/llamabot/chat"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var gooseInitMu sync.Mutex

// MessageStore persists full message logs to a local SQLite database
// for later analysis.
type MessageStore struct {
	db *sql.DB
}

// LoggedConversation is one row read back from the message log.
type LoggedConversation struct {
	ID        int64
	Label     string
	Timestamp time.Time
	Messages  []chat.Message
}

// DefaultMessageStorePath returns ~/.llamabot/message_log.db.
func DefaultMessageStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("recorder: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".llamabot", "message_log.db"), nil
}

// OpenMessageStore opens the message log database at path, creating
// it and applying pending schema migrations as needed. Pass ":memory:"
// for an ephemeral store.
func OpenMessageStore(ctx context.Context, path string) (*MessageStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(filepath.Clean(path))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("recorder: ensure directory %q: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("recorder: open database %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: ping database %q: %w", path, err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &MessageStore{db: db}, nil
}

// LogMessages appends one row carrying the full message log for label,
// serialized as JSON and stamped with the current UTC time.
func (s *MessageStore) LogMessages(ctx context.Context, label string, messages []chat.Message) error {
	if strings.TrimSpace(label) == "" {
		return errors.New("recorder: label is required")
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("recorder: encode message log: %w", err)
	}
	const q = `INSERT INTO message_log (object_name, timestamp, message_log) VALUES (?, ?, ?)`
	timestamp := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, q, label, timestamp, string(payload)); err != nil {
		return fmt.Errorf("recorder: log messages: %w", err)
	}
	return nil
}

// Conversations returns every row logged for label in insertion order.
func (s *MessageStore) Conversations(ctx context.Context, label string) ([]LoggedConversation, error) {
	const q = `SELECT id, object_name, timestamp, message_log FROM message_log WHERE object_name = ? ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q, label)
	if err != nil {
		return nil, fmt.Errorf("recorder: query message log: %w", err)
	}
	defer rows.Close()
	var out []LoggedConversation
	for rows.Next() {
		var (
			conv    LoggedConversation
			stamp   string
			payload string
		)
		if err := rows.Scan(&conv.ID, &conv.Label, &stamp, &payload); err != nil {
			return nil, fmt.Errorf("recorder: scan message log row: %w", err)
		}
		conv.Timestamp, err = time.Parse(time.RFC3339, stamp)
		if err != nil {
			return nil, fmt.Errorf("recorder: parse timestamp %q: %w", stamp, err)
		}
		if err := json.Unmarshal([]byte(payload), &conv.Messages); err != nil {
			return nil, fmt.Errorf("recorder: decode message log row %d: %w", conv.ID, err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recorder: iter message log rows: %w", err)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *MessageStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("recorder: close database: %w", err)
	}
	return nil
}

func buildDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared"
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	gooseInitMu.Lock()
	defer func() {
		goose.SetBaseFS(nil)
		gooseInitMu.Unlock()
	}()
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("recorder: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("recorder: apply migrations: %w", err)
	}
	return nil
}
