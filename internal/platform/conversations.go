package platform

import (
	"context"
	"net/http"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

// ListMyConversations returns the signed-in user's conversations.
func (c *Client) ListMyConversations(ctx context.Context) ([]models.Conversation, error) {
	var out struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := c.call(ctx, http.MethodGet, c.endpoints.UserConversations, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

type botAndLastMessage struct {
	BotID                string           `json:"bot_id"`
	BotName              string           `json:"bot_name"`
	BotPrompt            string           `json:"bot_prompt"`
	LastMessageContent   string           `json:"last_message_content"`
	LastMessageCreatedAt models.Timestamp `json:"last_message_created_at"`
}

// GetBotAndLastMessage returns the denormalized chat-list row of a conversation.
func (c *Client) GetBotAndLastMessage(ctx context.Context, conversationID string) (*models.ConversationSummary, error) {
	var out struct {
		Result []botAndLastMessage `json:"result"`
	}
	body := map[string]string{"p_conversation_id": conversationID}
	if err := c.call(ctx, http.MethodPost, c.endpoints.BotAndLastMessage, body, &out); err != nil {
		return nil, err
	}
	if len(out.Result) == 0 {
		return nil, errors.NewNotFoundError(errors.CodeNotFound, "Failed to fetch bot and last message")
	}
	row := out.Result[0]
	summary := &models.ConversationSummary{
		ConversationID:       conversationID,
		BotID:                row.BotID,
		BotName:              row.BotName,
		BotPrompt:            models.DecodePrompt(row.BotPrompt),
		LastMessageContent:   row.LastMessageContent,
		LastMessageCreatedAt: row.LastMessageCreatedAt.Time,
	}
	return summary, nil
}

// CreateConversation starts a conversation with a character and returns its id.
func (c *Client) CreateConversation(ctx context.Context, characterID string) (string, error) {
	var out struct {
		ConversationID string `json:"conversationId"`
	}
	body := map[string]string{"bot_id": characterID}
	if err := c.call(ctx, http.MethodPost, c.endpoints.NewChat, body, &out); err != nil {
		return "", err
	}
	if out.ConversationID == "" {
		return "", errors.Application("Failed to create conversation")
	}
	return out.ConversationID, nil
}
