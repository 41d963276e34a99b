package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT    NOT NULL REFERENCES conversations(id),
	sequence        INTEGER NOT NULL,
	id              TEXT    NOT NULL UNIQUE,
	role            TEXT    NOT NULL,
	content         TEXT    NOT NULL,
	ts_unix_nano    INTEGER NOT NULL,
	tool_calls      TEXT,
	tool_call_id    TEXT,
	tool_name       TEXT,
	incomplete      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (conversation_id, sequence)
);
`

// SQLiteStore persists conversations in a SQLite database file
type SQLiteStore struct {
	db    *sql.DB
	now   func() time.Time
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// OpenSQLite opens (and migrates) the database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLiteStore{
		db:    db,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// lockFor returns the per-conversation append mutex
func (s *SQLiteStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[id] = lock
	return lock
}

func (s *SQLiteStore) Append(ctx context.Context, conversationID string, msgs ...Message) ([]Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, ErrInvalidMessage
	}

	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.wrap(err, "begin append")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := s.now()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, created_at) VALUES (?, ?)`,
		conversationID, now.UnixNano()); err != nil {
		return nil, s.wrap(err, "create conversation")
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM messages WHERE conversation_id = ?`,
		conversationID).Scan(&maxSeq); err != nil {
		return nil, s.wrap(err, "read sequence")
	}

	stored, err := prepare(conversationID, maxSeq.Int64+1, now, msgs)
	if err != nil {
		return nil, err
	}

	for _, msg := range stored {
		var toolCalls sql.NullString
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return nil, fmt.Errorf("encode tool calls: %w", err)
			}
			toolCalls = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, sequence, id, role, content, ts_unix_nano, tool_calls, tool_call_id, tool_name, incomplete)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ConversationID, msg.Sequence, msg.ID, string(msg.Role), msg.Content,
			msg.Timestamp.UnixNano(), toolCalls, msg.ToolCallID, msg.ToolName, msg.Incomplete,
		); err != nil {
			return nil, s.wrap(err, "insert message")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, s.wrap(err, "commit append")
	}
	return stored, nil
}

func (s *SQLiteStore) List(ctx context.Context, conversationID string, page Page) (*History, error) {
	exists, err := s.Exists(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	// fetch one extra row to learn whether a next page exists
	query := `SELECT id, sequence, role, content, ts_unix_nano, tool_calls, tool_call_id, tool_name, incomplete
		FROM messages WHERE conversation_id = ? AND sequence > ? ORDER BY sequence`
	args := []interface{}{conversationID, page.AfterSequence}
	if page.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, page.Limit+1)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap(err, "query messages")
	}
	defer rows.Close()

	h := &History{ConversationID: conversationID, Messages: []Message{}}
	for rows.Next() {
		var (
			msg        Message
			role       string
			tsNano     int64
			toolCalls  sql.NullString
			toolCallID sql.NullString
			toolName   sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.Sequence, &role, &msg.Content, &tsNano,
			&toolCalls, &toolCallID, &toolName, &msg.Incomplete); err != nil {
			return nil, s.wrap(err, "scan message")
		}
		msg.ConversationID = conversationID
		msg.Role = Role(role)
		msg.Timestamp = time.Unix(0, tsNano).UTC()
		msg.ToolCallID = toolCallID.String
		msg.ToolName = toolName.String
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls of %s: %w", msg.ID, err)
			}
		}
		h.Messages = append(h.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err, "rows iteration")
	}

	if page.Limit > 0 && len(h.Messages) > page.Limit {
		h.Messages = h.Messages[:page.Limit]
		h.NextCursor = FormatCursor(h.Messages[len(h.Messages)-1].Sequence)
	}
	return h, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, conversationID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.wrap(err, "lookup conversation")
	}
	return true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) wrap(err error, op string) error {
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, err)
}
