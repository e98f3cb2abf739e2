package menu

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// DefaultTimeout is how long a menu waits for a choice.
const DefaultTimeout = 5 * time.Minute

// defaultOpTimeout bounds teardowns started by timers and sweeps.
const defaultOpTimeout = 30 * time.Second

// Deps are the collaborators shared by every menu of an engine.
type Deps struct {
	Transport Transport
	Resolver  *Resolver
	Registry  *Registry
	Metrics   *Metrics
	Logger    *slog.Logger

	// Timeout is the menu lifetime; zero uses DefaultTimeout.
	Timeout time.Duration

	// OpTimeout bounds transport calls made outside an event's context.
	OpTimeout time.Duration

	// AfterFunc schedules timeouts; nil uses time.AfterFunc.
	AfterFunc AfterFunc

	// Now returns the current time; nil uses time.Now.
	Now func() time.Time
}

func (d *Deps) effective() *Deps {
	out := *d
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Registry == nil {
		out.Registry = NewRegistry()
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.OpTimeout <= 0 {
		out.OpTimeout = defaultOpTimeout
	}
	if out.AfterFunc == nil {
		out.AfterFunc = stdAfterFunc
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

// Menu is the state machine for one thread's menu. Presentation is
// delegated to its Strategy; the guard and bookkeeping live here.
type Menu struct {
	deps     *Deps
	strategy Strategy
	logger   *slog.Logger

	thread     Thread
	initiating MessageRef
	display    MessageRef
	snapshot   settings.Configuration
	options    []Option
	byKey      map[string]Option
	createdAt  time.Time

	state   atomic.Int32
	timeout timeoutWatcher

	// componentID is set by strategies that render interactive components.
	componentID string

	// background is the strategy's cancellable worker, if any.
	background struct {
		cancel context.CancelFunc
		done   chan struct{}
	}
}

// Create renders a new menu for thread and arms its timeout. The returned
// menu is Active; the caller registers it.
func Create(ctx context.Context, deps *Deps, strategy Strategy, thread Thread, initiating MessageRef, snapshot settings.Configuration) (*Menu, error) {
	if len(snapshot.Categories) == 0 {
		return nil, ErrNoCategories
	}
	if thread.Recipient() == "" {
		return nil, ErrNoRecipient
	}

	d := deps.effective()
	m := &Menu{
		deps:       d,
		strategy:   strategy,
		thread:     thread,
		initiating: initiating,
		snapshot:   snapshot.Clone(),
		createdAt:  d.Now(),
		logger: d.Logger.With(
			"component", "menu",
			"thread", thread.ID,
			"variant", strategy.Name(),
		),
	}
	m.state.Store(int32(StateBuilding))

	m.options = strategy.Options(m.snapshot)
	if len(m.options) == 0 {
		return nil, ErrNoCategories
	}
	m.byKey = make(map[string]Option, len(m.options))
	for _, opt := range m.options {
		m.byKey[opt.Key] = opt
	}
	if reachable := len(m.options); reachable < len(m.snapshot.Categories) {
		m.logger.Warn("menu capacity exceeded, extra categories are not selectable",
			"configured", len(m.snapshot.Categories),
			"reachable", reachable,
		)
	}

	ref, err := d.Transport.SendDisplay(ctx, thread.Recipient(), strategy.Render(m))
	if err != nil {
		return nil, fmt.Errorf("sending menu: %w", err)
	}
	m.display = ref

	strategy.Start(m)

	m.state.Store(int32(StateActive))
	m.timeout.arm(d.AfterFunc, d.Timeout, m.OnTimeout)
	d.Metrics.menuCreated(strategy.Name())

	m.logger.Info("menu created", "options", len(m.options), "display", ref.MessageID)
	return m, nil
}

// ThreadID returns the thread key.
func (m *Menu) ThreadID() string { return m.thread.ID }

// Recipient returns the user the menu was sent to.
func (m *Menu) Recipient() string { return m.thread.Recipient() }

// Thread returns the thread the menu belongs to.
func (m *Menu) Thread() Thread { return m.thread }

// State returns the current state.
func (m *Menu) State() State { return State(m.state.Load()) }

// Display returns the menu message reference.
func (m *Menu) Display() MessageRef { return m.display }

// Initiating returns the message that opened the thread.
func (m *Menu) Initiating() MessageRef { return m.initiating }

// Options returns the selectable options in display order.
func (m *Menu) Options() []Option { return append([]Option(nil), m.options...) }

// ComponentID returns the interactive component id, if any.
func (m *Menu) ComponentID() string { return m.componentID }

// Info returns a read-only view of the menu.
func (m *Menu) Info() Info {
	return Info{
		ThreadID:   m.thread.ID,
		ChannelID:  m.thread.ChannelID,
		Variant:    m.strategy.Name(),
		State:      m.State().String(),
		Display:    m.display,
		Initiating: m.initiating,
		Options:    m.Options(),
		CreatedAt:  m.createdAt,
	}
}

// Process maps recipient input to a category and disbands on a match.
// Input that does not belong to this menu is ignored.
func (m *Menu) Process(ctx context.Context, in Input) bool {
	if m.State() != StateActive {
		return false
	}
	key, ok := m.strategy.Match(m, in)
	if !ok {
		return false
	}
	opt, ok := m.byKey[key]
	if !ok {
		return false
	}
	return m.Disband(ctx, opt.CategoryID, ReasonSelected)
}

// OnTimeout disbands the menu without a selection. Late firings after the
// menu already disbanded are ignored.
func (m *Menu) OnTimeout() {
	if m.State() != StateActive {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.deps.OpTimeout)
	defer cancel()
	m.Disband(ctx, "", ReasonTimeout)
}

// Disband is the single exit point of a menu. The state transition is the
// first thing it does; every caller after the first returns false without
// side effects.
func (m *Menu) Disband(ctx context.Context, categoryID string, reason Reason) bool {
	if !m.state.CompareAndSwap(int32(StateActive), int32(StateDisbanding)) {
		return false
	}

	m.timeout.cancel()
	m.strategy.Stop(m)

	if categoryID != "" {
		m.route(ctx, categoryID)
	} else if err := m.deps.Transport.DeleteDisplay(ctx, m.display); err != nil {
		m.logger.Warn("failed to delete menu", "error", err)
	}

	m.state.Store(int32(StateDisbanded))
	m.deps.Registry.Remove(m.thread.ID, m)
	m.deps.Metrics.menuDisbanded(reason)

	m.logger.Info("menu disbanded", "reason", reason, "category", categoryID)
	return true
}

// route moves the thread to categoryID, notifies staff and turns the menu
// into its terminal state.
func (m *Menu) route(ctx context.Context, categoryID string) {
	res := m.deps.Resolver.Resolve(ctx, categoryID)
	logger := m.logger.With("category", categoryID, "label", res.Label)

	var (
		content  string
		mentions string
		terminal string
	)
	switch {
	case !res.DestinationExists:
		logger.Warn("destination no longer exists, move skipped")
		content = fmt.Sprintf("Recipient picked `%s`, but that category no longer exists.", res.Label)
		terminal = fmt.Sprintf("☑️ Selected `%s`", res.Label)
	default:
		if err := m.deps.Transport.MoveThread(ctx, m.thread.ChannelID, res.DestinationID); err != nil {
			logger.Error("failed to move thread", "error", err)
			m.deps.Metrics.moveFailed()
			content = fmt.Sprintf("Failed to move thread to `%s`: %v", res.Label, err)
			terminal = fmt.Sprintf("☑️ Selected `%s`", res.Label)
		} else {
			content = fmt.Sprintf("Moved to <#%s>", res.DestinationID)
			mentions = res.MentionText
			terminal = fmt.Sprintf("✅ Moved to `%s`", res.Label)
		}
	}

	if err := m.deps.Transport.SendNotification(ctx, m.thread.ChannelID, mentions, content); err != nil {
		logger.Warn("failed to send notification", "error", err)
	}
	if err := m.deps.Transport.UpdateDisplay(ctx, m.display, Display{Description: terminal, Terminal: true}); err != nil {
		logger.Warn("failed to update menu", "error", err)
	}
	m.strategy.Finish(ctx, m)
}

// startBackground runs fn in a goroutine that Stop can cancel and wait for.
func (m *Menu) startBackground(fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.background.cancel = cancel
	m.background.done = done
	go func() {
		defer close(done)
		fn(ctx)
	}()
}

// stopBackground cancels the background worker and waits for it.
func (m *Menu) stopBackground() {
	if m.background.cancel == nil {
		return
	}
	m.background.cancel()
	<-m.background.done
}
