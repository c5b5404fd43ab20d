package platform

import (
	"context"
	"net/http"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

// Page is one backward page of a conversation.
type Page struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

type replyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// SendMessage posts a user message and returns the character's reply. The
// platform persists both.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (string, error) {
	var out replyResponse
	body := map[string]string{"conversationId": conversationID, "messageContent": content}
	if err := c.call(ctx, http.MethodPost, c.endpoints.AIChat, body, &out); err != nil {
		return "", err
	}
	if !out.Success || out.Message == "" {
		return "", errors.Application(out.Error)
	}
	return out.Message, nil
}

// PaginateMessages returns the page of messages strictly older than
// startingIdx, in ascending idx order.
func (c *Client) PaginateMessages(ctx context.Context, conversationID string, startingIdx int) (*Page, error) {
	var out Page
	body := map[string]any{"conversationId": conversationID, "startingIdx": startingIdx}
	if err := c.call(ctx, http.MethodPost, c.endpoints.Paginator, body, &out); err != nil {
		return nil, err
	}
	for i := range out.Messages {
		if out.Messages[i].ConversationID == "" {
			out.Messages[i].ConversationID = conversationID
		}
	}
	return &out, nil
}

// DeleteMessagesFrom deletes the message at idx and everything after it.
func (c *Client) DeleteMessagesFrom(ctx context.Context, conversationID string, idx int) error {
	body := map[string]any{"conversationId": conversationID, "idx": idx}
	return c.call(ctx, http.MethodPost, c.endpoints.DeleteMessages, body, nil)
}

// RegenerateLast rewrites the latest character reply and returns its new content.
func (c *Client) RegenerateLast(ctx context.Context, conversationID, instruction string) (string, error) {
	var out replyResponse
	body := map[string]string{"conversationId": conversationID, "regenerationInstruction": instruction}
	if err := c.call(ctx, http.MethodPost, c.endpoints.RegenerateLast, body, &out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", errors.Application(out.Error)
	}
	return out.Message, nil
}
