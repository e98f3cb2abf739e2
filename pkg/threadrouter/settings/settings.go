// Package settings holds the operator-configured category menu settings:
// which categories exist, the menu description and whether routing is
// enabled. The Manager owns the live value and persists every admin mutation
// through a Store before reloading it.
package settings

import (
	"fmt"
	"strings"
)

// DefaultMenuDescription is shown above the options when no description is set.
const DefaultMenuDescription = "Please pick a category for your inquiry"

// UnknownLabel is used when a category id is no longer configured.
const UnknownLabel = "Unknown"

// MentionKind tells the resolver how to render a mention target.
type MentionKind string

const (
	MentionUser MentionKind = "user"
	MentionRole MentionKind = "role"
	// MentionAuto lets the directory figure out whether the id is a role or a user.
	MentionAuto MentionKind = ""
)

// MentionTarget is a user or role notified when a thread lands in a category.
type MentionTarget struct {
	ID   string      `json:"id" yaml:"id"`
	Kind MentionKind `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// Category is an operator-defined routing destination.
type Category struct {
	// ID is the destination reference (a Discord category channel id).
	ID string `json:"id" yaml:"id"`

	// Label is what the recipient sees in the menu.
	Label string `json:"label" yaml:"label"`

	// Description is optional help text shown next to the label.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Mentions are notified, in order, when a thread is routed here.
	Mentions []MentionTarget `json:"mentions" yaml:"mentions"`
}

// Configuration is the whole menu configuration document.
type Configuration struct {
	Enabled         bool       `json:"enabled" yaml:"enabled"`
	Categories      []Category `json:"categories" yaml:"categories"`
	MenuDescription string     `json:"menu_description" yaml:"menu_description"`
}

// Default returns the configuration persisted on first start.
func Default() Configuration {
	return Configuration{
		Enabled:         true,
		Categories:      []Category{},
		MenuDescription: DefaultMenuDescription,
	}
}

// Category returns the category with the given id.
func (c Configuration) Category(id string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

// Label returns the configured label for id, or UnknownLabel.
func (c Configuration) Label(id string) string {
	if cat, ok := c.Category(id); ok && cat.Label != "" {
		return cat.Label
	}
	return UnknownLabel
}

// Description returns the menu description, falling back to the default.
func (c Configuration) Description() string {
	if strings.TrimSpace(c.MenuDescription) == "" {
		return DefaultMenuDescription
	}
	return c.MenuDescription
}

// Clone returns a deep copy; menus keep clones so admin edits never leak
// into an already-rendered menu.
func (c Configuration) Clone() Configuration {
	out := Configuration{
		Enabled:         c.Enabled,
		MenuDescription: c.MenuDescription,
		Categories:      make([]Category, len(c.Categories)),
	}
	for i, cat := range c.Categories {
		cat.Mentions = append([]MentionTarget(nil), cat.Mentions...)
		if cat.Mentions == nil {
			cat.Mentions = []MentionTarget{}
		}
		out.Categories[i] = cat
	}
	return out
}

// normalize fills nil slices so that a save/load cycle compares equal.
func (c *Configuration) normalize() {
	if c.Categories == nil {
		c.Categories = []Category{}
	}
	for i := range c.Categories {
		if c.Categories[i].Mentions == nil {
			c.Categories[i].Mentions = []MentionTarget{}
		}
	}
}

func (c Configuration) indexOf(id string) int {
	for i, cat := range c.Categories {
		if cat.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks the document for duplicate or empty category ids.
func (c Configuration) Validate() error {
	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.ID) == "" {
			return fmt.Errorf("category %d: empty id", i)
		}
		if _, dup := seen[cat.ID]; dup {
			return fmt.Errorf("category %s: duplicate id", cat.ID)
		}
		seen[cat.ID] = struct{}{}
	}
	return nil
}
