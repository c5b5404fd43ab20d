// Package dashboard holds the user's own characters and the public
// catalogue, and creates and deletes characters.
package dashboard

import (
	"bytes"
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"nexus-chat/internal/models"
	"nexus-chat/internal/platform"
	"nexus-chat/internal/realtime"
)

// Platform is what the dashboard needs from the request helpers.
type Platform interface {
	ListMyCharacters(ctx context.Context) ([]models.Character, error)
	ListPublicCharacters(ctx context.Context) ([]models.Character, error)
	CreateCharacter(ctx context.Context, req models.CreateCharacterRequest) (*models.Character, error)
	DeleteEntity(ctx context.Context, id string, kind models.EntityType) error
	GetEntityDeletionDetails(ctx context.Context, id string, kind models.EntityType) (map[string]any, error)
	GetSignedUploadURL(ctx context.Context, fileName, fileType string) (*platform.SignedUpload, error)
	UploadFile(ctx context.Context, signedURL, contentType string, body io.Reader, size int64) error
}

// Reporter surfaces failures to the user.
type Reporter interface {
	Report(source string, err error)
}

// List is one character list with its own load state.
type List struct {
	Characters []models.Character
	Loading    bool
	Err        error
}

type State struct {
	Mine   List
	Public List
}

type Dashboard struct {
	platform Platform
	reporter Reporter
	onChange func()

	mu     sync.Mutex
	mine   List
	public List
}

// New creates an empty dashboard. onChange, if set, runs after every state
// change.
func New(p Platform, reporter Reporter, onChange func()) *Dashboard {
	if onChange == nil {
		onChange = func() {}
	}
	return &Dashboard{platform: p, reporter: reporter, onChange: onChange}
}

// Snapshot returns a copy of both lists.
func (d *Dashboard) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{Mine: copyList(d.mine), Public: copyList(d.public)}
}

func copyList(l List) List {
	l.Characters = append([]models.Character(nil), l.Characters...)
	return l
}

// Load fetches both lists concurrently. Each list succeeds or fails on its
// own; the first error is returned after both finish.
func (d *Dashboard) Load(ctx context.Context) error {
	d.mu.Lock()
	d.mine = List{Characters: d.mine.Characters, Loading: true}
	d.public = List{Characters: d.public.Characters, Loading: true}
	d.mu.Unlock()
	d.onChange()

	var g errgroup.Group
	g.Go(func() error {
		return d.loadList(ctx, "characters.mine", d.platform.ListMyCharacters, &d.mine)
	})
	g.Go(func() error {
		return d.loadList(ctx, "characters.public", d.platform.ListPublicCharacters, &d.public)
	})
	return g.Wait()
}

func (d *Dashboard) loadList(ctx context.Context, source string, fetch func(context.Context) ([]models.Character, error), into *List) error {
	chars, err := fetch(ctx)

	d.mu.Lock()
	if err != nil {
		*into = List{Characters: into.Characters, Err: err}
	} else {
		*into = List{Characters: chars}
	}
	d.mu.Unlock()
	d.onChange()

	if err != nil {
		d.reporter.Report(source, err)
	}
	return err
}

// Create validates the form, uploads the avatar if there is one, and creates
// the character. The result is added to the lists without a reload.
func (d *Dashboard) Create(ctx context.Context, form Form) (*models.Character, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	prompt := models.StructuredPrompt{
		Description:     form.Description,
		StartingMessage: form.StartingMessage,
	}
	if form.Avatar != nil {
		imageURL, err := d.upload(ctx, form.Avatar)
		if err != nil {
			d.reporter.Report("characters.upload", err)
			return nil, err
		}
		prompt.ImageURL = imageURL
	}

	c, err := d.platform.CreateCharacter(ctx, models.CreateCharacterRequest{
		Name:    form.Name,
		Prompt:  models.EncodePrompt(prompt),
		Private: form.Private,
	})
	if err != nil {
		d.reporter.Report("characters.create", err)
		return nil, err
	}

	d.mu.Lock()
	d.mine.Characters = upsert(d.mine.Characters, *c)
	if !c.Private {
		d.public.Characters = upsert(d.public.Characters, *c)
	}
	d.mu.Unlock()
	d.onChange()
	return c, nil
}

func (d *Dashboard) upload(ctx context.Context, a *Avatar) (string, error) {
	mtype, err := a.contentType()
	if err != nil {
		return "", err
	}
	target, err := d.platform.GetSignedUploadURL(ctx, a.fileName(mtype), mtype.String())
	if err != nil {
		return "", err
	}
	if err := d.platform.UploadFile(ctx, target.SignedURL, mtype.String(), bytes.NewReader(a.Data), int64(len(a.Data))); err != nil {
		return "", err
	}
	return target.FileURL, nil
}

// DeletionDetails describes what deleting a character would remove, for
// the confirmation prompt.
func (d *Dashboard) DeletionDetails(ctx context.Context, id string) (map[string]any, error) {
	details, err := d.platform.GetEntityDeletionDetails(ctx, id, models.EntityCharacter)
	if err != nil {
		d.reporter.Report("characters.details", err)
		return nil, err
	}
	return details, nil
}

// Delete removes a character from the platform and from both lists.
func (d *Dashboard) Delete(ctx context.Context, id string) error {
	if err := d.platform.DeleteEntity(ctx, id, models.EntityCharacter); err != nil {
		d.reporter.Report("characters.delete", err)
		return err
	}
	d.mu.Lock()
	d.mine.Characters = remove(d.mine.Characters, id)
	d.public.Characters = remove(d.public.Characters, id)
	d.mu.Unlock()
	d.onChange()
	return nil
}

// Apply folds a realtime change into the public list. Deletions recorded
// elsewhere also drop the character from the user's own list.
func (d *Dashboard) Apply(ch realtime.Change) {
	d.mu.Lock()
	d.public.Characters = realtime.Apply(d.public.Characters, ch)
	if ch.Table == realtime.TableDeleteHistory {
		d.mine.Characters = realtime.ApplyDeletion(d.mine.Characters, ch)
	}
	d.mu.Unlock()
	d.onChange()
}

func upsert(list []models.Character, c models.Character) []models.Character {
	out := make([]models.Character, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if existing.ID == c.ID {
			out = append(out, c)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, c)
	}
	return out
}

func remove(list []models.Character, id string) []models.Character {
	out := make([]models.Character, 0, len(list))
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
