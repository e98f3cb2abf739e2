package discord

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
)

// maxSelectOptions is Discord's limit on options per select menu.
const maxSelectOptions = 25

// ComponentSpec defines who may use a registered select menu and what
// happens when they do.
type ComponentSpec struct {
	// AllowedUsers restricts who can interact. If nil or empty, anyone can use it.
	AllowedUsers []string

	// TTL is how long the component stays registered. Zero means no expiry.
	TTL time.Duration

	// Handler is called when an authorized user picks a value.
	Handler ComponentHandler
}

// ComponentHandler processes a component interaction.
type ComponentHandler func(ctx context.Context, evt *InteractionEvent)

// InteractionEvent carries data from a component interaction.
type InteractionEvent struct {
	CustomID  string
	UserID    string
	ChannelID string
	MessageID string
	Values    []string
}

type registeredComponent struct {
	Spec         ComponentSpec
	RegisteredAt time.Time
}

// ComponentRegistry stores component specs by custom_id and handles TTL cleanup.
type ComponentRegistry struct {
	mu         sync.RWMutex
	components map[string]*registeredComponent
	logger     *slog.Logger
	now        func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewComponentRegistry creates a registry and starts background TTL cleanup.
func NewComponentRegistry(logger *slog.Logger) *ComponentRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ComponentRegistry{
		components: make(map[string]*registeredComponent),
		logger:     logger.With("component", "discord_components"),
		now:        time.Now,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Register adds or overwrites a component spec for the given custom_id.
// Call this before sending a message that includes the component.
func (r *ComponentRegistry) Register(customID string, spec ComponentSpec) {
	if customID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[customID] = &registeredComponent{Spec: spec, RegisteredAt: r.now()}
}

// Unregister removes a component spec.
func (r *ComponentRegistry) Unregister(customID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.components, customID)
}

// Get retrieves the component spec if it exists and is not expired.
func (r *ComponentRegistry) Get(customID string) (*ComponentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.components[customID]
	if !ok || reg == nil {
		return nil, false
	}
	if reg.Spec.TTL > 0 && r.now().Sub(reg.RegisteredAt) > reg.Spec.TTL {
		return nil, false
	}
	spec := reg.Spec
	return &spec, true
}

// Len returns the number of registered components.
func (r *ComponentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}

// IsAllowed checks if the user is in AllowedUsers. If AllowedUsers is nil/empty, returns true.
func (s *ComponentSpec) IsAllowed(userID string) bool {
	if len(s.AllowedUsers) == 0 {
		return true
	}
	for _, id := range s.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func (r *ComponentRegistry) cleanupLoop() {
	defer close(r.done)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.cleanupExpired()
		}
	}
}

func (r *ComponentRegistry) cleanupExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var expired []string
	for id, reg := range r.components {
		if reg.Spec.TTL > 0 && now.Sub(reg.RegisteredAt) > reg.Spec.TTL {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.components, id)
	}
	if len(expired) > 0 {
		r.logger.Debug("expired components removed", "count", len(expired))
	}
}

// Stop halts the cleanup loop and waits for it to exit.
func (r *ComponentRegistry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.done
}

// BuildSelectRow creates an ActionsRow containing a string select menu for
// the menu options. Option values are the options' keys.
func BuildSelectRow(customID string, options []menu.Option, placeholder string) discordgo.MessageComponent {
	if len(options) > maxSelectOptions {
		options = options[:maxSelectOptions]
	}
	opts := make([]discordgo.SelectMenuOption, 0, len(options))
	for _, opt := range options {
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       truncate(opt.Label, 100),
			Value:       opt.Key,
			Description: truncate(opt.Description, 100),
		})
	}
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    customID,
				Options:     opts,
				Placeholder: truncate(placeholder, 150),
				MenuType:    discordgo.StringSelectMenu,
			},
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
