package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Errors returned by Manager mutations.
var (
	ErrPersist           = errors.New("configuration could not be persisted")
	ErrTooManyCategories = errors.New("too many categories")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrInvalidCategory   = errors.New("invalid category")
)

// DefaultMaxCategories matches the reactive menu's symbol capacity.
const DefaultMaxCategories = 9

// Manager owns the live configuration. Reads return clones; admin mutations
// are applied to the stored value, saved, then reloaded from the store.
type Manager struct {
	store         Store
	maxCategories int
	logger        *slog.Logger

	mu      sync.RWMutex
	current Configuration

	// writeMu serializes mutations so save/reload pairs never interleave.
	writeMu sync.Mutex
	// unsaved is set while the in-memory value is ahead of the store.
	unsaved bool
}

// NewManager creates a manager over store. maxCategories <= 0 uses
// DefaultMaxCategories.
func NewManager(store Store, maxCategories int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if maxCategories <= 0 {
		maxCategories = DefaultMaxCategories
	}
	return &Manager{
		store:         store,
		maxCategories: maxCategories,
		logger:        logger.With("component", "settings"),
		current:       Default(),
	}
}

// Load reads the configuration. When nothing is stored yet the defaults are
// persisted and used.
func (m *Manager) Load(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.load(ctx)
}

func (m *Manager) load(ctx context.Context) error {
	cfg, found, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if !found {
		cfg = Default()
		if err := m.store.Save(ctx, cfg); err != nil {
			m.set(cfg)
			return fmt.Errorf("%w: saving defaults: %w", ErrPersist, err)
		}
		m.logger.Info("no stored configuration, defaults saved")
	}
	m.set(cfg)
	m.logger.Debug("configuration loaded",
		"enabled", cfg.Enabled,
		"categories", len(cfg.Categories),
	)
	return nil
}

// Reload re-reads the stored configuration.
func (m *Manager) Reload(ctx context.Context) error {
	return m.Load(ctx)
}

// Snapshot returns a copy of the current configuration.
func (m *Manager) Snapshot() Configuration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// MaxCategories returns the configured category cap.
func (m *Manager) MaxCategories() int { return m.maxCategories }

func (m *Manager) set(cfg Configuration) {
	cfg.normalize()
	m.mu.Lock()
	m.current = cfg.Clone()
	m.mu.Unlock()
}

// mutate reads the stored configuration, applies fn to it and commits the
// result. Other writers of the same document (the CLI, another instance)
// are therefore not overwritten. When the read fails, or an earlier save
// failed, fn runs on the in-memory value. The new value is kept in memory
// even when the save fails.
func (m *Manager) mutate(ctx context.Context, fn func(cfg *Configuration) error) (Configuration, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if !m.unsaved {
		if err := m.load(ctx); err != nil {
			m.logger.Warn("reading stored configuration failed, editing in-memory copy", "error", err)
		}
	}
	next := m.Snapshot()
	if err := fn(&next); err != nil {
		return m.Snapshot(), err
	}
	if err := next.Validate(); err != nil {
		return m.Snapshot(), fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}
	m.set(next)

	if err := m.store.Save(ctx, next); err != nil {
		m.logger.Error("failed to persist configuration", "error", err)
		m.unsaved = true
		return next, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	m.unsaved = false
	if err := m.load(ctx); err != nil {
		m.logger.Warn("reload after save failed, keeping in-memory configuration", "error", err)
		m.set(next)
	}
	return m.Snapshot(), nil
}

// Toggle flips the enabled flag and returns the new value.
func (m *Manager) Toggle(ctx context.Context) (bool, error) {
	cfg, err := m.mutate(ctx, func(cfg *Configuration) error {
		cfg.Enabled = !cfg.Enabled
		return nil
	})
	return cfg.Enabled, err
}

// SetEnabled sets the enabled flag.
func (m *Manager) SetEnabled(ctx context.Context, enabled bool) error {
	_, err := m.mutate(ctx, func(cfg *Configuration) error {
		cfg.Enabled = enabled
		return nil
	})
	return err
}

// ToggleCategory removes cat when its id is configured, otherwise appends it.
// It reports whether the category is configured afterwards.
func (m *Manager) ToggleCategory(ctx context.Context, cat Category) (bool, error) {
	cat.ID = strings.TrimSpace(cat.ID)
	if cat.ID == "" {
		return false, fmt.Errorf("%w: empty id", ErrInvalidCategory)
	}
	added := false
	_, err := m.mutate(ctx, func(cfg *Configuration) error {
		if i := cfg.indexOf(cat.ID); i >= 0 {
			cfg.Categories = append(cfg.Categories[:i], cfg.Categories[i+1:]...)
			return nil
		}
		if len(cfg.Categories) >= m.maxCategories {
			return fmt.Errorf("%w: cannot add more than %d categories", ErrTooManyCategories, m.maxCategories)
		}
		if cat.Mentions == nil {
			cat.Mentions = []MentionTarget{}
		}
		cfg.Categories = append(cfg.Categories, cat)
		added = true
		return nil
	})
	if err != nil && !errors.Is(err, ErrPersist) {
		return false, err
	}
	return added, err
}

// EditCategory updates the label and description of an existing category,
// keeping its position.
func (m *Manager) EditCategory(ctx context.Context, id, label, description string) error {
	_, err := m.mutate(ctx, func(cfg *Configuration) error {
		i := cfg.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
		}
		if label != "" {
			cfg.Categories[i].Label = label
		}
		cfg.Categories[i].Description = description
		return nil
	})
	return err
}

// SetMentions replaces the mention targets of a category.
func (m *Manager) SetMentions(ctx context.Context, id string, mentions []MentionTarget) error {
	_, err := m.mutate(ctx, func(cfg *Configuration) error {
		i := cfg.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrCategoryNotFound, id)
		}
		cfg.Categories[i].Mentions = append([]MentionTarget{}, mentions...)
		return nil
	})
	return err
}

// SetDescription sets the menu description; blank text restores the default.
func (m *Manager) SetDescription(ctx context.Context, text string) (string, error) {
	cfg, err := m.mutate(ctx, func(cfg *Configuration) error {
		if strings.TrimSpace(text) == "" {
			cfg.MenuDescription = DefaultMenuDescription
		} else {
			cfg.MenuDescription = text
		}
		return nil
	})
	return cfg.MenuDescription, err
}

// Reset deletes the stored configuration and persists the defaults again.
func (m *Manager) Reset(ctx context.Context) (Configuration, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.store.Delete(ctx); err != nil {
		return m.Snapshot(), fmt.Errorf("%w: %w", ErrPersist, err)
	}
	m.unsaved = false
	if err := m.load(ctx); err != nil {
		return m.Snapshot(), err
	}
	m.logger.Info("configuration reset to defaults")
	return m.Snapshot(), nil
}
