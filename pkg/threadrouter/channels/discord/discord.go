// Package discord carries category menus over Discord using discordgo.
//
// Features:
//   - Menu displays as DM embeds, with keycap reactions or a string select
//   - Thread moves under a category with permission sync
//   - Staff notifications with allowed mentions limited to the resolved targets
//   - Recipient input from DM reactions and select interactions
//   - "!cm" admin text commands for the routing configuration
//   - Automatic reconnection via discordgo's gateway
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/channels"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
)

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// GuildID is the staff guild the modmail channels live in.
	GuildID string `yaml:"guild_id"`

	// AdminRoles are the role IDs allowed to run admin commands.
	AdminRoles []string `yaml:"admin_roles"`

	// PreviewRoles may additionally run the menu preview command.
	PreviewRoles []string `yaml:"preview_roles"`

	// CommandPrefix starts admin commands (default: "!cm").
	CommandPrefix string `yaml:"command_prefix"`

	// EmbedColor is the menu embed color.
	EmbedColor int `yaml:"embed_color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CommandPrefix: "!cm",
		EmbedColor:    0x5865F2,
	}
}

// InputHandler receives recipient input for menus.
type InputHandler interface {
	OnSelectionInput(ctx context.Context, key string, in menu.Input) bool
}

// Discord implements channels.Channel, menu.Transport and menu.Directory.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session
	api     api

	// botID is the bot's own user id, used to skip its own reactions.
	botID string

	input    InputHandler
	commands *Commands

	// componentTTL bounds how long a select stays answerable.
	componentTTL time.Duration

	// components manages select registration and TTL cleanup.
	components *ComponentRegistry

	// symbols remembers the reactions the bot attached per menu message.
	symbolsMu sync.Mutex
	symbols   map[string][]string

	connected  atomic.Bool
	lastEvent  atomic.Value // time.Time
	errorCount atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = DefaultConfig().CommandPrefix
	}
	l := logger.With("component", "discord")
	ctx, cancel := context.WithCancel(context.Background())
	return &Discord{
		cfg:          cfg,
		logger:       l,
		componentTTL: menu.DefaultTimeout,
		components:   NewComponentRegistry(l),
		symbols:      make(map[string][]string),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetInputHandler routes recipient input to h. Call before Connect.
func (d *Discord) SetInputHandler(h InputHandler) { d.input = h }

// SetCommands enables admin text commands. Call before Connect.
func (d *Discord) SetCommands(c *Commands) { d.commands = c }

// SetComponentTTL sets how long select menus stay registered; it should
// match the menu timeout.
func (d *Discord) SetComponentTTL(ttl time.Duration) {
	if ttl > 0 {
		d.componentTTL = ttl
	}
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onMessageReactionAdd)
	session.AddHandler(d.onInteractionCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.api = sessionAPI{s: session}
	d.botID = session.State.User.ID
	d.connected.Store(true)

	d.logger.Info("connected", "bot", session.State.User.Username, "id", d.botID)
	return nil
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	d.cancel()
	d.components.Stop()
	if d.session != nil {
		if err := d.session.Close(); err != nil {
			d.logger.Warn("failed to close session", "error", err)
		}
	}
	d.connected.Store(false)
	d.logger.Info("disconnected")
	return nil
}

// IsConnected returns true if the bot is connected.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastEvent.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:   d.connected.Load(),
		LastEventAt: lastAt,
		ErrorCount:  int(d.errorCount.Load()),
	}
}

func (d *Discord) touch() {
	d.lastEvent.Store(time.Now())
}

// fail counts a failed platform call and passes err through.
func (d *Discord) fail(err error) error {
	if err != nil {
		d.errorCount.Add(1)
	}
	return err
}

// ---------- Event Handlers ----------

// onMessageReactionAdd turns DM reactions into menu input.
func (d *Discord) onMessageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	d.handleReaction(r.MessageReaction)
}

func (d *Discord) handleReaction(r *discordgo.MessageReaction) {
	if r == nil || d.input == nil {
		return
	}
	// Menus live in DMs; the bot's own symbols are not input.
	if r.GuildID != "" || r.UserID == d.botID {
		return
	}
	d.touch()

	ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
	defer cancel()
	d.input.OnSelectionInput(ctx, r.UserID, menu.Input{
		UserID:    r.UserID,
		MessageID: r.MessageID,
		Value:     r.Emoji.Name,
	})
}

// onInteractionCreate handles select menu choices.
func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	data := i.MessageComponentData()
	if !strings.HasPrefix(data.CustomID, menu.ComponentPrefix) {
		return
	}

	spec, ok := d.components.Get(data.CustomID)
	if !ok {
		respondEphemeral(s, i, "This menu has expired.")
		return
	}

	userID := ""
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}
	if userID == "" || !spec.IsAllowed(userID) {
		respondEphemeral(s, i, "You are not allowed to use this menu.")
		return
	}

	// Acknowledge immediately to satisfy Discord's 3s limit; the menu edits
	// its own message once routed.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		d.logger.Warn("failed to ack interaction", "custom_id", data.CustomID, "error", err)
		return
	}
	d.touch()

	evt := &InteractionEvent{
		CustomID:  data.CustomID,
		UserID:    userID,
		ChannelID: i.ChannelID,
		Values:    data.Values,
	}
	if i.Message != nil {
		evt.MessageID = i.Message.ID
	}

	go func() {
		ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
		defer cancel()
		spec.Handler(ctx, evt)
	}()
}

// selectHandler forwards a select choice to the input handler.
func (d *Discord) selectHandler(recipientID string) ComponentHandler {
	return func(ctx context.Context, evt *InteractionEvent) {
		if d.input == nil || len(evt.Values) == 0 {
			return
		}
		d.input.OnSelectionInput(ctx, recipientID, menu.Input{
			UserID:      evt.UserID,
			MessageID:   evt.MessageID,
			ComponentID: evt.CustomID,
			Value:       evt.Values[0],
		})
	}
}

// onMessageCreate dispatches admin commands.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if d.commands == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if d.cfg.GuildID != "" && m.GuildID != d.cfg.GuildID {
		return
	}
	inv, ok := parseCommand(m.Content, d.cfg.CommandPrefix)
	if !ok {
		return
	}
	d.touch()

	var roles []string
	if m.Member != nil {
		roles = m.Member.Roles
	}

	ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
	defer cancel()
	inv.ChannelID = m.ChannelID
	inv.UserID = m.Author.ID
	inv.Roles = roles
	reply := d.commands.Run(ctx, inv)
	if reply == nil {
		return
	}
	if _, err := d.api.ChannelMessageSendComplex(m.ChannelID, reply); err != nil {
		d.logger.Warn("failed to send command reply", "error", d.fail(err))
	}
}

// respondEphemeral sends an ephemeral (visible only to the user) response.
func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// Compile-time interface verification.
var (
	_ channels.Channel = (*Discord)(nil)
	_ menu.Transport   = (*Discord)(nil)
	_ menu.Directory   = (*Discord)(nil)
)
