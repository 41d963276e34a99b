package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderEcho is the built-in offline provider
const ProviderEcho = "echo"

// EchoGenerator answers with the latest user or instruction text, word by
// word. Text of the form tool:<name>(<json>) becomes a tool call when the
// request offers that tool. After tool results it reports them back.
type EchoGenerator struct {
	// Delay is slept between streamed words
	Delay time.Duration
}

func (e *EchoGenerator) Generate(ctx context.Context, req *Request, onDelta func(string) error) (*Generation, error) {
	if len(req.Messages) == 0 {
		return &Generation{FinishReason: FinishStop}, nil
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role == RoleTool {
		return e.stream(ctx, req, summarizeToolResults(req.Messages), onDelta)
	}

	text := lastPrompt(req.Messages)
	if len(req.Tools) > 0 {
		offered := make(map[string]bool, len(req.Tools))
		for _, t := range req.Tools {
			offered[t.Name] = true
		}
		calls, rest := parseToolDirectives(text, offered)
		if len(calls) > 0 {
			gen, err := e.stream(ctx, req, rest, onDelta)
			if err != nil {
				return nil, err
			}
			gen.ToolCalls = calls
			gen.FinishReason = FinishToolCalls
			return gen, nil
		}
	}
	return e.stream(ctx, req, text, onDelta)
}

func (e *EchoGenerator) stream(ctx context.Context, req *Request, text string, onDelta func(string) error) (*Generation, error) {
	gen := &Generation{FinishReason: FinishStop}
	words := strings.Fields(text)
	var b strings.Builder
	for i, word := range words {
		if req.MaxTokens > 0 && i >= req.MaxTokens {
			gen.FinishReason = FinishLength
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && e.Delay > 0 {
			select {
			case <-time.After(e.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		delta := word
		if i > 0 {
			delta = " " + word
		}
		b.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return nil, err
			}
		}
	}
	gen.Content = b.String()
	return gen, nil
}

// lastPrompt returns the content of the latest user or system message
func lastPrompt(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser || msgs[i].Role == RoleSystem {
			return msgs[i].Content
		}
	}
	return ""
}

// summarizeToolResults reports the tool messages that follow the last assistant turn
func summarizeToolResults(msgs []Message) string {
	start := len(msgs)
	for start > 0 && msgs[start-1].Role == RoleTool {
		start--
	}
	parts := make([]string, 0, len(msgs)-start)
	for _, m := range msgs[start:] {
		parts = append(parts, fmt.Sprintf("%s: %s", m.ToolName, m.Content))
	}
	return strings.Join(parts, "\n")
}

// parseToolDirectives extracts tool:<name>(<args>) directives naming offered
// tools and returns the text with those directives removed
func parseToolDirectives(text string, offered map[string]bool) ([]ToolCall, string) {
	var (
		calls []ToolCall
		rest  strings.Builder
	)
	for {
		idx := strings.Index(text, "tool:")
		if idx < 0 {
			rest.WriteString(text)
			break
		}
		open := strings.IndexByte(text[idx:], '(')
		if open < 0 {
			rest.WriteString(text)
			break
		}
		open += idx
		name := text[idx+len("tool:") : open]
		end := matchParen(text, open)
		if end < 0 || !offered[name] || strings.ContainsAny(name, " \t\n") {
			rest.WriteString(text[:idx+len("tool:")])
			text = text[idx+len("tool:"):]
			continue
		}

		args := strings.TrimSpace(text[open+1 : end])
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			// handed to the coordinator as-is so the call fails visibly
			args = text[open+1 : end]
		}
		calls = append(calls, ToolCall{
			ID:        "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
			Name:      name,
			Arguments: args,
		})
		rest.WriteString(text[:idx])
		text = text[end+1:]
	}
	return calls, strings.Join(strings.Fields(rest.String()), " ")
}

// matchParen returns the index of the parenthesis closing text[open], skipping
// JSON string literals
func matchParen(text string, open int) int {
	depth := 0
	inString := false
	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
