package menu

import (
	"context"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// Strategy is a menu presentation variant. Strategies are stateless; any
// per-menu state lives on the Menu.
type Strategy interface {
	// Name identifies the variant in logs and metrics.
	Name() string

	// Options assigns input keys to categories in configuration order.
	Options(cfg settings.Configuration) []Option

	// Render builds the initial display.
	Render(m *Menu) Display

	// Start runs after the display was sent.
	Start(m *Menu)

	// Match extracts the option key from input, if the input is for m.
	Match(m *Menu, in Input) (string, bool)

	// Stop ends background work started by Start. Called once, on disband.
	Stop(m *Menu)

	// Finish runs after the display reached its terminal "moved" state.
	Finish(ctx context.Context, m *Menu)
}

// Preview renders the menu a new thread would get with cfg.
func Preview(s Strategy, cfg settings.Configuration) Display {
	m := &Menu{strategy: s, snapshot: cfg.Clone()}
	m.options = s.Options(m.snapshot)
	return s.Render(m)
}
