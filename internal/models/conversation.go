package models

import "time"

type Conversation struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"characterId,omitempty"`
	OwnerUserID string    `json:"userId,omitempty"`
	CreatedAt   Timestamp `json:"createdAt,omitempty"`
}

// ConversationSummary is a chat-list row: the conversation plus its bot and
// latest message. Err is set when the summary could not be fetched.
type ConversationSummary struct {
	ConversationID       string
	BotID                string
	BotName              string
	BotPrompt            Prompt
	LastMessageContent   string
	LastMessageCreatedAt time.Time
	Err                  error
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleCharacter Role = "character"
)

// MessageStatus is a client-side delivery tag; the platform never sees it.
type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
	StatusFailed  MessageStatus = "failed"
)

// Message is one entry of a conversation, ordered by Idx.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId,omitempty"`
	Role           Role          `json:"role"`
	Content        string        `json:"content"`
	Idx            int           `json:"idx"`
	CreatedAt      Timestamp     `json:"createdAt,omitempty"`
	Status         MessageStatus `json:"-"`
}

// Delivered reports whether the platform has the message. Rows loaded from
// the platform carry no status.
func (m Message) Delivered() bool {
	return m.Status == "" || m.Status == StatusSent
}
