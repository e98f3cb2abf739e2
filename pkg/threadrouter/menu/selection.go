package menu

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// ComponentPrefix starts the component id of every selection menu.
const ComponentPrefix = "threadrouter:menu:"

// SelectionCapacity is the transport's limit on options per list.
const SelectionCapacity = 25

// Selection is the list-based menu: the recipient picks a category from a
// single select component whose option values are category ids.
type Selection struct {
	// MaxOptions caps the list; zero uses SelectionCapacity.
	MaxOptions int

	// Placeholder is shown before a choice is made.
	Placeholder string
}

// Name implements Strategy.
func (s Selection) Name() string { return "selection" }

// Options implements Strategy.
func (s Selection) Options(cfg settings.Configuration) []Option {
	limit := s.MaxOptions
	if limit <= 0 || limit > SelectionCapacity {
		limit = SelectionCapacity
	}
	n := min(len(cfg.Categories), limit)
	out := make([]Option, 0, n)
	for _, cat := range cfg.Categories[:n] {
		out = append(out, Option{
			Key:         cat.ID,
			CategoryID:  cat.ID,
			Label:       cfg.Label(cat.ID),
			Description: cat.Description,
		})
	}
	return out
}

// Render implements Strategy.
func (s Selection) Render(m *Menu) Display {
	if m.componentID == "" {
		m.componentID = ComponentPrefix + uuid.NewString()
	}
	placeholder := s.Placeholder
	if strings.TrimSpace(placeholder) == "" {
		placeholder = "Select a category"
	}
	return Display{
		Description: m.snapshot.Description(),
		Options:     m.Options(),
		ComponentID: m.componentID,
		Placeholder: placeholder,
	}
}

// Start implements Strategy.
func (s Selection) Start(m *Menu) {}

// Match implements Strategy. Only values from the menu's own component count.
func (s Selection) Match(m *Menu, in Input) (string, bool) {
	if in.ComponentID == "" || in.ComponentID != m.componentID {
		return "", false
	}
	return in.Value, in.Value != ""
}

// Stop implements Strategy.
func (s Selection) Stop(m *Menu) {}

// Finish implements Strategy. The terminal display already dropped the list.
func (s Selection) Finish(ctx context.Context, m *Menu) {}
