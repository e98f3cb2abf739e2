package menu

import (
	"context"
	"log/slog"
	"time"
)

// MinCategories is the least number of configured categories for which a
// menu is offered at all.
const MinCategories = 2

// Router filters lifecycle and input events and dispatches them to the
// menu registered for the thread.
type Router struct {
	deps     *Deps
	config   ConfigSource
	strategy Strategy
	logger   *slog.Logger
}

// NewRouter creates a router. deps.Resolver defaults to a resolver over
// config without a directory.
func NewRouter(deps Deps, config ConfigSource, strategy Strategy) *Router {
	if deps.Resolver == nil {
		deps.Resolver = NewResolver(config, nil, deps.Logger)
	}
	d := deps.effective()
	return &Router{
		deps:     d,
		config:   config,
		strategy: strategy,
		logger:   d.Logger.With("component", "router"),
	}
}

// Registry returns the registry of active menus.
func (r *Router) Registry() *Registry { return r.deps.Registry }

// Strategy returns the variant new menus are built with.
func (r *Router) Strategy() Strategy { return r.strategy }

// OnThreadReady offers a menu for a new thread when routing is enabled, at
// least MinCategories are configured and the thread was opened by its single
// recipient. It returns nil when the thread is not eligible.
func (r *Router) OnThreadReady(ctx context.Context, ev ThreadReady) (*Menu, error) {
	cfg := r.config.Snapshot()
	logger := r.logger.With("thread", ev.Thread.ID)

	if !cfg.Enabled || len(cfg.Categories) < MinCategories {
		return nil, nil
	}
	if ev.Thread.ContactInitiated || len(ev.Thread.RecipientIDs) != 1 {
		logger.Info("ignoring thread opened by contact or with several recipients",
			"recipients", len(ev.Thread.RecipientIDs),
			"contact", ev.Thread.ContactInitiated,
		)
		return nil, nil
	}
	if _, exists := r.deps.Registry.Lookup(ev.Thread.ID); exists {
		logger.Warn("thread already has a menu, ready event ignored")
		return nil, nil
	}

	m, err := Create(ctx, r.deps, r.strategy, ev.Thread, ev.Initiating, cfg)
	if err != nil {
		return nil, err
	}

	if err := r.deps.Registry.Register(ev.Thread.ID, m); err != nil {
		logger.Error("menu registration failed, discarding new menu", "error", err)
		m.Disband(ctx, "", ReasonDiscarded)
		return nil, err
	}
	// The timeout may have fired between Create and Register.
	if m.State() == StateDisbanded {
		r.deps.Registry.Remove(ev.Thread.ID, m)
	}
	return m, nil
}

// OnSelectionInput routes recipient input. key is a thread id or the
// recipient's user id.
func (r *Router) OnSelectionInput(ctx context.Context, key string, in Input) bool {
	c, ok := r.deps.Registry.LookupKey(key)
	if !ok {
		return false
	}
	return c.Process(ctx, in)
}

// OnThreadClosed disbands the thread's menu without a selection.
func (r *Router) OnThreadClosed(ctx context.Context, threadID string) bool {
	c, ok := r.deps.Registry.Lookup(threadID)
	if !ok {
		return false
	}
	return c.Disband(ctx, "", ReasonClosed)
}

// OnThreadReplied disbands the menu when someone replies in the thread with
// a message other than the menu's own, the initiating or the genesis
// message. A reply without an id cannot be matched and disbands the menu.
func (r *Router) OnThreadReplied(ctx context.Context, threadID, messageID string, fromOperator bool) bool {
	c, ok := r.deps.Registry.Lookup(threadID)
	if !ok {
		return false
	}
	if isOwnMessage(c, messageID) {
		return false
	}
	r.logger.Debug("reply overrides menu",
		"thread", threadID,
		"message", messageID,
		"from_operator", fromOperator,
	)
	return c.Disband(ctx, "", ReasonReplied)
}

func isOwnMessage(c Controller, messageID string) bool {
	if messageID == "" {
		return false
	}
	for _, own := range []string{
		c.Display().MessageID,
		c.Initiating().MessageID,
		c.Thread().GenesisMessageID,
	} {
		if own != "" && own == messageID {
			return true
		}
	}
	return false
}

// Sweep disbands menus older than maxAge. It returns how many were removed.
func (r *Router) Sweep(ctx context.Context, maxAge time.Duration) int {
	now := r.deps.Now()
	swept := 0
	for _, c := range r.deps.Registry.List() {
		if now.Sub(c.Info().CreatedAt) < maxAge {
			continue
		}
		if c.Disband(ctx, "", ReasonSwept) {
			swept++
			continue
		}
		// Disbanded but never unregistered.
		if c.State() == StateDisbanded {
			r.deps.Registry.Remove(c.ThreadID(), c)
		}
	}
	if swept > 0 {
		r.logger.Warn("stale menus swept", "count", swept)
	}
	return swept
}

// Shutdown disbands every active menu without a selection.
func (r *Router) Shutdown(ctx context.Context) {
	for _, c := range r.deps.Registry.List() {
		c.Disband(ctx, "", ReasonDiscarded)
	}
}
