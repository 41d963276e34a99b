package conversation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// storeFactories runs each test against every backend
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "conversations.db"))
			if err != nil {
				t.Fatalf("OpenSQLite() error = %v", err)
			}
			return s
		},
	}
}

func TestAppendAssignsIdentity(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			stored, err := s.Append(ctx, "conv-1",
				Message{Role: RoleUser, Content: "hi"},
				Message{Role: RoleAssistant, Content: "hello"},
			)
			if err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			if len(stored) != 2 {
				t.Fatalf("Append() returned %d messages, want 2", len(stored))
			}
			for i, msg := range stored {
				if msg.ID == "" {
					t.Errorf("message %d has empty ID", i)
				}
				if msg.Sequence != int64(i+1) {
					t.Errorf("message %d sequence = %d, want %d", i, msg.Sequence, i+1)
				}
				if msg.Timestamp.IsZero() || msg.Timestamp.Location() != time.UTC {
					t.Errorf("message %d timestamp = %v, want non-zero UTC", i, msg.Timestamp)
				}
				if msg.ConversationID != "conv-1" {
					t.Errorf("message %d conversation = %q", i, msg.ConversationID)
				}
			}

			more, err := s.Append(ctx, "conv-1", Message{Role: RoleUser, Content: "again"})
			if err != nil {
				t.Fatalf("second Append() error = %v", err)
			}
			if more[0].Sequence != 3 {
				t.Errorf("sequence after second append = %d, want 3", more[0].Sequence)
			}
		})
	}
}

func TestRoundTripPreservesFields(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			ts := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)
			in := []Message{
				{Role: RoleAssistant, Content: "", Timestamp: ts, ToolCalls: []ToolCall{{ID: "c1", Name: "calculator", Arguments: `{"a":1}`}}},
				{Role: RoleTool, Content: "1", Timestamp: ts, ToolCallID: "c1", ToolName: "calculator"},
				{Role: RoleAssistant, Content: "partial", Timestamp: ts, Incomplete: true},
			}
			if _, err := s.Append(ctx, "conv-rt", in...); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			h, err := s.List(ctx, "conv-rt", Page{})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(h.Messages) != len(in) {
				t.Fatalf("List() returned %d messages, want %d", len(h.Messages), len(in))
			}
			for i, got := range h.Messages {
				want := in[i]
				if got.Role != want.Role || got.Content != want.Content || !got.Timestamp.Equal(want.Timestamp) {
					t.Errorf("message %d = {%s %q %v}, want {%s %q %v}", i,
						got.Role, got.Content, got.Timestamp, want.Role, want.Content, want.Timestamp)
				}
				if got.Incomplete != want.Incomplete || got.ToolCallID != want.ToolCallID || got.ToolName != want.ToolName {
					t.Errorf("message %d metadata mismatch: %+v", i, got)
				}
				if len(got.ToolCalls) != len(want.ToolCalls) {
					t.Errorf("message %d tool calls = %v, want %v", i, got.ToolCalls, want.ToolCalls)
				}
			}
		})
	}
}

func TestListUnknownConversation(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()

			h, err := s.List(context.Background(), "missing", Page{})
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("List() error = %v, want ErrNotFound", err)
			}
			if h != nil {
				t.Errorf("List() returned history %+v for unknown conversation", h)
			}
		})
	}
}

func TestListPagination(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			for i := 0; i < 5; i++ {
				if _, err := s.Append(ctx, "conv-p", Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i+1)}); err != nil {
					t.Fatalf("Append() error = %v", err)
				}
			}

			var (
				seen   []string
				cursor string
				pages  int
			)
			for {
				after, err := ParseCursor(cursor)
				if err != nil {
					t.Fatalf("ParseCursor(%q) error = %v", cursor, err)
				}
				h, err := s.List(ctx, "conv-p", Page{Limit: 2, AfterSequence: after})
				if err != nil {
					t.Fatalf("List() error = %v", err)
				}
				pages++
				for _, msg := range h.Messages {
					seen = append(seen, msg.Content)
				}
				if h.NextCursor == "" {
					break
				}
				cursor = h.NextCursor
				if pages > 5 {
					t.Fatal("pagination did not terminate")
				}
			}

			want := []string{"m1", "m2", "m3", "m4", "m5"}
			if fmt.Sprint(seen) != fmt.Sprint(want) {
				t.Errorf("paged contents = %v, want %v", seen, want)
			}
			if pages != 3 {
				t.Errorf("pages = %d, want 3", pages)
			}
		})
	}
}

func TestAppendRejectsInvalidMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{name: "unknown role", msg: Message{Role: "robot", Content: "x"}},
		{name: "tool without call id", msg: Message{Role: RoleTool, Content: "x"}},
	}
	for name, newStore := range storeFactories(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				s := newStore(t)
				defer s.Close()
				ctx := context.Background()

				_, err := s.Append(ctx, "conv-bad", Message{Role: RoleUser, Content: "ok"}, tt.msg)
				if !errors.Is(err, ErrInvalidMessage) {
					t.Fatalf("Append() error = %v, want ErrInvalidMessage", err)
				}
				// all-or-nothing: the valid message must not be stored either
				if h, err := s.List(ctx, "conv-bad", Page{}); err == nil && len(h.Messages) != 0 {
					t.Errorf("partial append stored %d messages", len(h.Messages))
				}
			})
		}
	}
}

func TestConcurrentAppendsKeepPerConversationOrder(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			const conversations, perConversation = 4, 10
			var wg sync.WaitGroup
			errs := make(chan error, conversations*perConversation)
			for c := 0; c < conversations; c++ {
				for i := 0; i < perConversation; i++ {
					wg.Add(1)
					go func(c int) {
						defer wg.Done()
						if _, err := s.Append(ctx, fmt.Sprintf("conv-%d", c), Message{Role: RoleUser, Content: "x"}); err != nil {
							errs <- err
						}
					}(c)
				}
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("concurrent Append() error = %v", err)
			}

			for c := 0; c < conversations; c++ {
				h, err := s.List(ctx, fmt.Sprintf("conv-%d", c), Page{})
				if err != nil {
					t.Fatalf("List() error = %v", err)
				}
				if len(h.Messages) != perConversation {
					t.Fatalf("conv-%d has %d messages, want %d", c, len(h.Messages), perConversation)
				}
				for i, msg := range h.Messages {
					if msg.Sequence != int64(i+1) {
						t.Errorf("conv-%d message %d sequence = %d", c, i, msg.Sequence)
					}
				}
			}
		})
	}
}

func TestOpenDrivers(t *testing.T) {
	tests := []struct {
		driver  string
		dsn     string
		wantErr bool
	}{
		{driver: "", wantErr: false},
		{driver: "memory", wantErr: false},
		{driver: "sqlite", dsn: ":memory:", wantErr: false},
		{driver: "sqlite", dsn: "", wantErr: true},
		{driver: "postgres", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver+"/"+tt.dsn, func(t *testing.T) {
			s, err := Open(tt.driver, tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q, %q) error = %v, wantErr %v", tt.driver, tt.dsn, err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}

func TestParseCursor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "7", want: 7},
		{in: " 12 ", want: 12},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseCursor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCursor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCursor(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
