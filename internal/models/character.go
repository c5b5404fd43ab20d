package models

import "encoding/json"

// Character is a chatbot persona as served by the platform.
type Character struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Prompt      Prompt    `json:"-"`
	OwnerUserID string    `json:"userId,omitempty"`
	Private     bool      `json:"private"`
	CreatedAt   Timestamp `json:"createdAt,omitempty"`
	UpdatedAt   Timestamp `json:"updatedAt,omitempty"`
}

type characterJSON struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Prompt      string     `json:"prompt"`
	OwnerUserID string     `json:"userId,omitempty"`
	Private     bool       `json:"private"`
	CreatedAt   *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp `json:"updatedAt,omitempty"`
}

// UnmarshalJSON decodes the prompt into its variant at the boundary.
func (c *Character) UnmarshalJSON(data []byte) error {
	var raw characterJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Character{
		ID:          raw.ID,
		Name:        raw.Name,
		Prompt:      DecodePrompt(raw.Prompt),
		OwnerUserID: raw.OwnerUserID,
		Private:     raw.Private,
	}
	if raw.CreatedAt != nil {
		c.CreatedAt = *raw.CreatedAt
	}
	if raw.UpdatedAt != nil {
		c.UpdatedAt = *raw.UpdatedAt
	}
	return nil
}

func (c Character) MarshalJSON() ([]byte, error) {
	raw := characterJSON{
		ID:          c.ID,
		Name:        c.Name,
		Prompt:      c.Prompt.String(),
		OwnerUserID: c.OwnerUserID,
		Private:     c.Private,
	}
	if !c.CreatedAt.IsZero() {
		raw.CreatedAt = &c.CreatedAt
	}
	if !c.UpdatedAt.IsZero() {
		raw.UpdatedAt = &c.UpdatedAt
	}
	return json.Marshal(raw)
}

// CreateCharacterRequest is the body of the create-character function.
type CreateCharacterRequest struct {
	Name    string `json:"name"`
	Prompt  string `json:"prompt"`
	Private bool   `json:"private"`
}

// EntityType names what a delete targets.
type EntityType string

const (
	EntityCharacter    EntityType = "character"
	EntityConversation EntityType = "conversation"
)

// DeleteHistory is the audit row written when an entity is removed.
type DeleteHistory struct {
	ID         string     `json:"id"`
	EntityID   string     `json:"entityId"`
	EntityType EntityType `json:"entityType"`
	DeletedBy  string     `json:"deletedBy"`
	CreatedAt  Timestamp  `json:"createdAt,omitempty"`
}
