package realtime

import (
	"encoding/json"

	"nexus-chat/internal/models"
)

// Tables the feed listens to.
const (
	TableCharacter     = "Character"
	TableDeleteHistory = "DeleteHistory"
)

// Action is the database operation behind a change.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Change is one row change pushed by the platform. Only the fields for
// Table are set; rows absent from the payload stay nil.
type Change struct {
	Table        string
	Action       Action
	Character    *models.Character
	OldCharacter *models.Character
	Deletion     *models.DeleteHistory
	OldDeletion  *models.DeleteHistory
}

type changeData struct {
	Table     string          `json:"table"`
	Type      Action          `json:"type"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
}

func decodeChange(payload json.RawMessage) (Change, bool) {
	var p struct {
		Data changeData `json:"data"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return Change{}, false
	}
	d := p.Data
	ch := Change{Table: d.Table, Action: d.Type}

	switch d.Table {
	case TableCharacter:
		ch.Character = decodeRow[models.Character](d.Record)
		ch.OldCharacter = decodeRow[models.Character](d.OldRecord)
	case TableDeleteHistory:
		ch.Deletion = decodeRow[models.DeleteHistory](d.Record)
		ch.OldDeletion = decodeRow[models.DeleteHistory](d.OldRecord)
	default:
		return Change{}, false
	}
	return ch, true
}

func decodeRow[T any](raw json.RawMessage) *T {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "{}" {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// Apply routes a change to the reducer for its table.
func Apply(public []models.Character, ch Change) []models.Character {
	switch ch.Table {
	case TableCharacter:
		return ApplyCharacterChange(public, ch)
	case TableDeleteHistory:
		return ApplyDeletion(public, ch)
	}
	return public
}

// ApplyCharacterChange keeps a list of public characters in step with the
// Character table. Inserts already present are ignored, updates that make
// a character private remove it, and deletes remove by id.
func ApplyCharacterChange(public []models.Character, ch Change) []models.Character {
	switch ch.Action {
	case ActionInsert:
		if ch.Character == nil || ch.Character.Private || indexOf(public, ch.Character.ID) >= 0 {
			return public
		}
		return append(append([]models.Character(nil), public...), *ch.Character)

	case ActionUpdate:
		if ch.Character == nil {
			return public
		}
		if ch.Character.Private {
			return without(public, ch.Character.ID)
		}
		out := append([]models.Character(nil), public...)
		if i := indexOf(out, ch.Character.ID); i >= 0 {
			out[i] = *ch.Character
			return out
		}
		return append(out, *ch.Character)

	case ActionDelete:
		if ch.OldCharacter == nil {
			return public
		}
		return without(public, ch.OldCharacter.ID)
	}
	return public
}

// ApplyDeletion removes characters named by DeleteHistory rows.
func ApplyDeletion(public []models.Character, ch Change) []models.Character {
	row := ch.Deletion
	if row == nil {
		row = ch.OldDeletion
	}
	if row == nil || row.EntityType != models.EntityCharacter || row.EntityID == "" {
		return public
	}
	return without(public, row.EntityID)
}

func indexOf(list []models.Character, id string) int {
	for i, c := range list {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func without(list []models.Character, id string) []models.Character {
	if indexOf(list, id) < 0 {
		return list
	}
	out := make([]models.Character, 0, len(list))
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
