package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-chat/internal/models"
)

func chars(ids ...string) []models.Character {
	out := make([]models.Character, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Character{ID: id, Name: id})
	}
	return out
}

func ids(list []models.Character) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}

func TestApplyCharacterChange(t *testing.T) {
	tests := []struct {
		name   string
		change Change
		want   []string
	}{
		{
			name:   "public insert appends",
			change: Change{Table: TableCharacter, Action: ActionInsert, Character: &models.Character{ID: "c"}},
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "private insert ignored",
			change: Change{Table: TableCharacter, Action: ActionInsert, Character: &models.Character{ID: "c", Private: true}},
			want:   []string{"a", "b"},
		},
		{
			name:   "duplicate insert ignored",
			change: Change{Table: TableCharacter, Action: ActionInsert, Character: &models.Character{ID: "b"}},
			want:   []string{"a", "b"},
		},
		{
			name:   "update replaces in place",
			change: Change{Table: TableCharacter, Action: ActionUpdate, Character: &models.Character{ID: "a", Name: "renamed"}},
			want:   []string{"a", "b"},
		},
		{
			name:   "update to public adds",
			change: Change{Table: TableCharacter, Action: ActionUpdate, Character: &models.Character{ID: "c"}},
			want:   []string{"a", "b", "c"},
		},
		{
			name:   "update to private removes",
			change: Change{Table: TableCharacter, Action: ActionUpdate, Character: &models.Character{ID: "a", Private: true}},
			want:   []string{"b"},
		},
		{
			name:   "delete removes by old id",
			change: Change{Table: TableCharacter, Action: ActionDelete, OldCharacter: &models.Character{ID: "b"}},
			want:   []string{"a"},
		},
		{
			name:   "delete history for character removes",
			change: Change{Table: TableDeleteHistory, Action: ActionInsert, Deletion: &models.DeleteHistory{EntityID: "a", EntityType: models.EntityCharacter}},
			want:   []string{"b"},
		},
		{
			name:   "delete history uses old row",
			change: Change{Table: TableDeleteHistory, Action: ActionDelete, OldDeletion: &models.DeleteHistory{EntityID: "b", EntityType: models.EntityCharacter}},
			want:   []string{"a"},
		},
		{
			name:   "delete history for conversation ignored",
			change: Change{Table: TableDeleteHistory, Action: ActionInsert, Deletion: &models.DeleteHistory{EntityID: "a", EntityType: models.EntityConversation}},
			want:   []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := chars("a", "b")
			got := Apply(before, tt.change)
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, []string{"a", "b"}, ids(before))
		})
	}
}

func TestUpdateCarriesNewFields(t *testing.T) {
	got := ApplyCharacterChange(chars("a"), Change{Action: ActionUpdate, Character: &models.Character{ID: "a", Name: "renamed"}})
	require.Len(t, got, 1)
	assert.Equal(t, "renamed", got[0].Name)
}

func TestDecodeChange(t *testing.T) {
	payload := json.RawMessage(`{"data":{"schema":"public","table":"Character","type":"UPDATE",
		"record":{"id":"c1","name":"Nova","prompt":"{\"description\":\"d\",\"startingMessage\":\"hey\"}","private":false},
		"old_record":{"id":"c1"}},"ids":[1]}`)

	ch, ok := decodeChange(payload)
	require.True(t, ok)
	assert.Equal(t, ActionUpdate, ch.Action)
	require.NotNil(t, ch.Character)
	assert.Equal(t, "hey", ch.Character.Prompt.StartingMessage())
	require.NotNil(t, ch.OldCharacter)
	assert.Equal(t, "c1", ch.OldCharacter.ID)

	_, ok = decodeChange(json.RawMessage(`{"data":{"table":"Other","type":"INSERT"}}`))
	assert.False(t, ok)
}
