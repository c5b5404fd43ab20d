package platform

import (
	"context"
	"encoding/json"
	"net/http"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

// characterList accepts either a bare array or {"characters": [...]}.
type characterList []models.Character

func (l *characterList) UnmarshalJSON(data []byte) error {
	var arr []models.Character
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var wrapped struct {
		Characters []models.Character `json:"characters"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Characters
	return nil
}

// ListMyCharacters returns the characters owned by the signed-in user.
func (c *Client) ListMyCharacters(ctx context.Context) ([]models.Character, error) {
	var out characterList
	if err := c.call(ctx, http.MethodGet, c.endpoints.MyCharacters, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPublicCharacters returns every character with private=false.
func (c *Client) ListPublicCharacters(ctx context.Context) ([]models.Character, error) {
	var out characterList
	if err := c.call(ctx, http.MethodGet, c.endpoints.PublicCharacters, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCharacter stores a new character. Fields the function does not echo
// back are filled from the request.
func (c *Client) CreateCharacter(ctx context.Context, req models.CreateCharacterRequest) (*models.Character, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, c.endpoints.CreateCharacter, req, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		Character json.RawMessage `json:"character"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Character) > 0 && string(wrapped.Character) != "null" {
		raw = wrapped.Character
	}

	var created models.Character
	var echoed struct {
		Prompt *string `json:"prompt"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, errors.NoJSON(http.StatusOK)
	}
	_ = json.Unmarshal(raw, &echoed)
	if created.ID == "" {
		return nil, errors.Application("Failed to create character")
	}
	if created.Name == "" {
		created.Name = req.Name
	}
	if echoed.Prompt == nil || *echoed.Prompt == "" {
		created.Prompt = models.DecodePrompt(req.Prompt)
	}
	created.Private = req.Private
	return &created, nil
}

// GetCharacter fetches one character by id.
func (c *Client) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	var out struct {
		Character *models.Character `json:"character"`
	}
	body := map[string]string{"characterId": id}
	if err := c.call(ctx, http.MethodPost, c.endpoints.CharacterByID, body, &out); err != nil {
		return nil, err
	}
	if out.Character == nil {
		return nil, errors.NewNotFoundError(errors.CodeNotFound, "Failed to load character")
	}
	return out.Character, nil
}

// DeleteEntity removes a character or conversation.
func (c *Client) DeleteEntity(ctx context.Context, id string, kind models.EntityType) error {
	body := map[string]string{"entity_id": id, "entity_type": string(kind)}
	return c.call(ctx, http.MethodPost, c.endpoints.DeleteEntity, body, nil)
}

// GetEntityDeletionDetails describes what deleting an entity would remove.
func (c *Client) GetEntityDeletionDetails(ctx context.Context, id string, kind models.EntityType) (map[string]any, error) {
	var out map[string]any
	body := map[string]string{"p_entity_id": id, "p_entity_type": string(kind)}
	if err := c.call(ctx, http.MethodPost, c.endpoints.EntityDeletionDetails, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
