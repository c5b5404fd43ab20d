package pane

import (
	"sort"

	"nexus-chat/internal/models"
)

// MergeOlder combines a freshly fetched page with the loaded list. Messages
// already present (by id) are kept as loaded; the result is ascending by idx.
func MergeOlder(existing, page []models.Message) []models.Message {
	seen := make(map[string]bool, len(existing))
	out := make([]models.Message, 0, len(existing)+len(page))
	for _, m := range existing {
		if m.ID != "" {
			seen[m.ID] = true
		}
		out = append(out, m)
	}
	for _, m := range page {
		if m.ID != "" {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Idx < out[j].Idx })
	return out
}

// TruncateFrom mirrors the server's delete-from-idx. Deleting a character
// reply also removes the user turn that prompted it.
func TruncateFrom(msgs []models.Message, idx int, role models.Role) []models.Message {
	cut := idx
	if role == models.RoleCharacter {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == models.RoleUser && msgs[i].Idx < idx {
				cut = msgs[i].Idx
				break
			}
		}
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Idx < cut {
			out = append(out, m)
		}
	}
	return out
}

// LastCharacterID returns the id of the most recent character message.
func LastCharacterID(msgs []models.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleCharacter {
			return msgs[i].ID, true
		}
	}
	return "", false
}

// ReplaceContent overwrites the content of the message with the given id.
// Identity and position are unchanged; a missing id is a no-op.
func ReplaceContent(msgs []models.Message, id, content string) []models.Message {
	out := append([]models.Message(nil), msgs...)
	for i := range out {
		if out[i].ID == id {
			out[i].Content = content
			break
		}
	}
	return out
}

// AppendMessage inserts m in idx order, replacing any message with the same id.
func AppendMessage(msgs []models.Message, m models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs)+1)
	for _, existing := range msgs {
		if m.ID != "" && existing.ID == m.ID {
			continue
		}
		out = append(out, existing)
	}
	at := sort.Search(len(out), func(i int) bool { return out[i].Idx > m.Idx })
	out = append(out, models.Message{})
	copy(out[at+1:], out[at:])
	out[at] = m
	return out
}

// UpdateStatus retags the message with the given id.
func UpdateStatus(msgs []models.Message, id string, status models.MessageStatus) []models.Message {
	out := append([]models.Message(nil), msgs...)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = status
		}
	}
	return out
}

// LastIdx returns the highest idx in an ascending list, or 0 when empty.
func LastIdx(msgs []models.Message) int {
	if len(msgs) == 0 {
		return 0
	}
	return msgs[len(msgs)-1].Idx
}

// CanRegenerate reports whether the last message is a character reply.
func CanRegenerate(msgs []models.Message) bool {
	return len(msgs) > 0 && msgs[len(msgs)-1].Role == models.RoleCharacter
}
