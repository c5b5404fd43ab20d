package models

import (
	"encoding/json"
	"strings"
)

// StructuredPrompt is the serialized persona payload stored in Character.prompt.
type StructuredPrompt struct {
	Description     string `json:"description"`
	StartingMessage string `json:"startingMessage"`
	ImageURL        string `json:"imageUrl,omitempty"`
}

// LegacyPrompt is a plain-text prompt from records that predate the
// structured payload. The text doubles as the starting message.
type LegacyPrompt struct {
	Text string
}

// Prompt holds exactly one of its variants. The zero value behaves as an
// empty structured prompt.
type Prompt struct {
	Structured *StructuredPrompt
	Legacy     *LegacyPrompt
}

// DecodePrompt parses a raw prompt string once. Anything that is not a JSON
// object is kept as legacy text.
func DecodePrompt(raw string) Prompt {
	if strings.TrimSpace(raw) == "" {
		return Prompt{Structured: &StructuredPrompt{}}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return Prompt{Legacy: &LegacyPrompt{Text: raw}}
	}
	sp := &StructuredPrompt{
		Description:     stringField(fields, "description"),
		StartingMessage: stringField(fields, "startingMessage"),
		ImageURL:        stringField(fields, "imageUrl"),
	}
	return Prompt{Structured: sp}
}

// non-string values are treated as absent
func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// EncodePrompt serializes a structured prompt for character creation.
func EncodePrompt(p StructuredPrompt) string {
	b, _ := json.Marshal(p)
	return string(b)
}

// NewStructuredPrompt wraps a structured payload.
func NewStructuredPrompt(p StructuredPrompt) Prompt {
	return Prompt{Structured: &p}
}

func (p Prompt) IsLegacy() bool {
	return p.Legacy != nil
}

func (p Prompt) Description() string {
	if p.Structured != nil {
		return p.Structured.Description
	}
	return ""
}

func (p Prompt) StartingMessage() string {
	switch {
	case p.Structured != nil:
		return p.Structured.StartingMessage
	case p.Legacy != nil:
		return p.Legacy.Text
	}
	return ""
}

func (p Prompt) ImageURL() string {
	if p.Structured != nil {
		return p.Structured.ImageURL
	}
	return ""
}

// String returns the wire form of the prompt.
func (p Prompt) String() string {
	switch {
	case p.Legacy != nil:
		return p.Legacy.Text
	case p.Structured != nil:
		return EncodePrompt(*p.Structured)
	}
	return ""
}
