package menu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// ReactiveCapacity is the number of keycap symbols available.
const ReactiveCapacity = 9

// DefaultSymbols are the keycap digits 1..9.
var DefaultSymbols = []string{
	"1️⃣", "2️⃣", "3️⃣",
	"4️⃣", "5️⃣", "6️⃣",
	"7️⃣", "8️⃣", "9️⃣",
}

// Reactive is the symbol-indexed menu: each category gets a symbol the
// recipient reacts with. Only the first Capacity categories are reachable.
type Reactive struct {
	// Capacity caps the number of options; zero or more than the symbol
	// count uses the symbol count.
	Capacity int

	// Symbols overrides DefaultSymbols.
	Symbols []string

	// AttachInterval spaces out symbol attachment to stay under the
	// transport's reaction rate limit.
	AttachInterval time.Duration
}

// Name implements Strategy.
func (r Reactive) Name() string { return "reactive" }

func (r Reactive) symbols() []string {
	syms := r.Symbols
	if len(syms) == 0 {
		syms = DefaultSymbols
	}
	if r.Capacity > 0 && r.Capacity < len(syms) {
		syms = syms[:r.Capacity]
	}
	return syms
}

// Options implements Strategy.
func (r Reactive) Options(cfg settings.Configuration) []Option {
	syms := r.symbols()
	n := min(len(cfg.Categories), len(syms))
	out := make([]Option, 0, n)
	for i := 0; i < n; i++ {
		cat := cfg.Categories[i]
		out = append(out, Option{
			Key:         syms[i],
			CategoryID:  cat.ID,
			Label:       cfg.Label(cat.ID),
			Description: cat.Description,
		})
	}
	return out
}

// Render implements Strategy.
func (r Reactive) Render(m *Menu) Display {
	rows := []string{m.snapshot.Description() + "\n"}
	for _, opt := range m.options {
		row := fmt.Sprintf("%s - %s", opt.Key, opt.Label)
		if opt.Description != "" {
			row += ": " + opt.Description
		}
		rows = append(rows, row)
	}
	return Display{Description: strings.Join(rows, "\n")}
}

// Start attaches the symbols in the background. The first failure stops
// the attacher; the remaining symbols are skipped.
func (r Reactive) Start(m *Menu) {
	interval := r.AttachInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	keys := make([]string, len(m.options))
	for i, opt := range m.options {
		keys[i] = opt.Key
	}
	ref := m.display
	transport := m.deps.Transport
	logger := m.logger

	m.startBackground(func(ctx context.Context) {
		limiter := rate.NewLimiter(rate.Every(interval), 1)
		for _, key := range keys {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if err := transport.AttachInputSymbol(ctx, ref, key); err != nil {
				if ctx.Err() == nil {
					logger.Debug("symbol attach stopped", "symbol", key, "error", err)
				}
				return
			}
		}
	})
}

// Match implements Strategy. Only symbols on the menu's own message count.
func (r Reactive) Match(m *Menu, in Input) (string, bool) {
	if in.MessageID == "" || in.MessageID != m.display.MessageID {
		return "", false
	}
	return in.Value, in.Value != ""
}

// Stop implements Strategy.
func (r Reactive) Stop(m *Menu) { m.stopBackground() }

// Finish clears the bot's own symbols; failures are ignored.
func (r Reactive) Finish(ctx context.Context, m *Menu) {
	if err := m.deps.Transport.ClearInputSymbols(ctx, m.display); err != nil {
		m.logger.Debug("failed to clear symbols", "error", err)
	}
}
