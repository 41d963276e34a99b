package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentd/conversation"
	loggerv2 "agentd/logger/v2"
)

// GetConversationHistory returns stored messages in sequence order. limit <= 0
// returns everything after cursor; cursor is the NextCursor of a previous page.
func (a *Agent) GetConversationHistory(ctx context.Context, conversationID string, limit int, cursor string) (*conversation.History, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is required", ErrInvalidRequest)
	}
	after, err := conversation.ParseCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	h, err := a.store.List(ctx, conversationID, conversation.Page{Limit: limit, AfterSequence: after})
	if err != nil {
		if !errors.Is(err, conversation.ErrNotFound) {
			a.logger.Error("Failed to read conversation history", err,
				loggerv2.String("conversation_id", conversationID))
		}
		return nil, err
	}
	return h, nil
}
