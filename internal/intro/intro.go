// Package intro starts a conversation with a character the user has not
// talked to yet. Nothing is created until the user commits.
package intro

import (
	"context"
	"strings"
	"sync"

	"nexus-chat/internal/models"
	"nexus-chat/pkg/errors"
)

var (
	ErrNothingToSend = errors.NewBadRequestError(errors.CodeValidation, "Type a message to start the conversation")
	ErrBusy          = errors.NewConflictError(errors.CodeBusy, "Conversation is already starting")
)

// Platform is what the intro screen needs from the request helpers.
type Platform interface {
	GetCharacter(ctx context.Context, id string) (*models.Character, error)
	CreateConversation(ctx context.Context, botID string) (string, error)
	SendMessage(ctx context.Context, conversationID, content string) (string, error)
}

// Reporter surfaces failures to the user.
type Reporter interface {
	Report(source string, err error)
}

type Intro struct {
	characterID string
	platform    Platform
	reporter    Reporter

	mu        sync.Mutex
	character *models.Character
	starting  bool
}

func New(characterID string, p Platform, reporter Reporter) *Intro {
	return &Intro{characterID: characterID, platform: p, reporter: reporter}
}

// Load fetches the character shown on the intro screen.
func (i *Intro) Load(ctx context.Context) (*models.Character, error) {
	c, err := i.platform.GetCharacter(ctx, i.characterID)
	if err != nil {
		i.reporter.Report("intro.load", err)
		return nil, err
	}
	i.mu.Lock()
	i.character = c
	i.mu.Unlock()
	return c, nil
}

// Character returns the loaded character, or nil.
func (i *Intro) Character() *models.Character {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.character
}

// CanStart reports whether Start with text would do anything.
func (i *Intro) CanStart(text string) bool {
	c := i.Character()
	if c == nil {
		return false
	}
	return strings.TrimSpace(text) != "" || strings.TrimSpace(c.Prompt.StartingMessage()) != ""
}

// Start creates the conversation and returns its id. When the user typed
// something, the character's starting message and then the user's line are
// sent in order; a failed send is reported but the conversation is still
// returned so the caller can open it.
func (i *Intro) Start(ctx context.Context, text string) (string, error) {
	c := i.Character()
	if c == nil {
		var err error
		if c, err = i.Load(ctx); err != nil {
			return "", err
		}
	}

	text = strings.TrimSpace(text)
	starting := strings.TrimSpace(c.Prompt.StartingMessage())
	if text == "" && starting == "" {
		return "", ErrNothingToSend
	}

	i.mu.Lock()
	if i.starting {
		i.mu.Unlock()
		return "", ErrBusy
	}
	i.starting = true
	i.mu.Unlock()
	defer func() {
		i.mu.Lock()
		i.starting = false
		i.mu.Unlock()
	}()

	conversationID, err := i.platform.CreateConversation(ctx, c.ID)
	if err != nil {
		i.reporter.Report("intro.start", err)
		return "", err
	}

	if text != "" {
		if err := i.seed(ctx, conversationID, starting, text); err != nil {
			i.reporter.Report("intro.send", err)
		}
	}
	return conversationID, nil
}

func (i *Intro) seed(ctx context.Context, conversationID string, lines ...string) error {
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, err := i.platform.SendMessage(ctx, conversationID, line); err != nil {
			return err
		}
	}
	return nil
}
