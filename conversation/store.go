package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Page bounds a history query. AfterSequence is exclusive; Limit <= 0 means no limit.
type Page struct {
	Limit         int
	AfterSequence int64
}

// History is one page of a conversation's messages in sequence order
type History struct {
	ConversationID string
	Messages       []Message
	// NextCursor is empty when no messages remain after this page
	NextCursor string
}

// Store is the append-only conversation log
type Store interface {
	// Append stores msgs at the end of the conversation, creating it if needed,
	// and returns the stored copies with ID, Sequence and Timestamp filled in.
	// Either all messages are stored or none are.
	Append(ctx context.Context, conversationID string, msgs ...Message) ([]Message, error)

	// List returns messages of an existing conversation, or ErrNotFound
	List(ctx context.Context, conversationID string, page Page) (*History, error)

	// Exists reports whether the conversation has been created
	Exists(ctx context.Context, conversationID string) (bool, error)

	Close() error
}

// ParseCursor converts a NextCursor value back into a Page.AfterSequence
func ParseCursor(cursor string) (int64, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	return seq, nil
}

// FormatCursor is the inverse of ParseCursor
func FormatCursor(sequence int64) string {
	return strconv.FormatInt(sequence, 10)
}

// prepare validates msgs and assigns identity fields starting at nextSeq
func prepare(conversationID string, nextSeq int64, now time.Time, msgs []Message) ([]Message, error) {
	out := make([]Message, len(msgs))
	for i, msg := range msgs {
		if err := validate(msg); err != nil {
			return nil, err
		}
		msg = msg.clone()
		msg.ConversationID = conversationID
		msg.Sequence = nextSeq + int64(i)
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		msg.Timestamp = msg.Timestamp.UTC()
		out[i] = msg
	}
	return out, nil
}

// paginate applies page to an ordered log
func paginate(conversationID string, log []Message, page Page) *History {
	start := 0
	for start < len(log) && log[start].Sequence <= page.AfterSequence {
		start++
	}
	end := len(log)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}

	h := &History{
		ConversationID: conversationID,
		Messages:       make([]Message, 0, end-start),
	}
	for _, msg := range log[start:end] {
		h.Messages = append(h.Messages, msg.clone())
	}
	if end < len(log) && end > start {
		h.NextCursor = FormatCursor(log[end-1].Sequence)
	}
	return h
}

// Open builds a Store for the configured driver: "memory" or "sqlite"
func Open(driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite store requires a dsn")
		}
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
