package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/channels"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// Invocation is one parsed admin command.
type Invocation struct {
	ChannelID string
	UserID    string
	Roles     []string

	// Sub is the lower-cased subcommand; Args are the words after it and
	// Text is the raw remainder after it.
	Sub  string
	Args []string
	Text string
}

// CategoryLookup finds a destination category by id.
type CategoryLookup interface {
	// CategoryName returns the category's display name; found is false
	// when id is not an existing category.
	CategoryName(ctx context.Context, id string) (name string, found bool, err error)
}

// Commands implements the "!cm" admin commands over the configuration manager.
type Commands struct {
	manager    *settings.Manager
	strategy   menu.Strategy
	categories CategoryLookup
	adminRoles   map[string]bool
	previewRoles map[string]bool
	color        int
	logger     *slog.Logger
}

// NewCommands creates the command handler. categories may be nil, in which
// case category ids are not checked against the guild.
func NewCommands(manager *settings.Manager, strategy menu.Strategy, categories CategoryLookup, adminRoles []string, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{
		manager:    manager,
		strategy:   strategy,
		categories: categories,
		adminRoles: roleSet(adminRoles),
		color:      DefaultConfig().EmbedColor,
		logger:     logger.With("component", "commands"),
	}
}

// SetPreviewRoles sets the roles, besides the admin roles, that may run the
// read-only preview command.
func (c *Commands) SetPreviewRoles(roles []string) {
	c.previewRoles = roleSet(roles)
}

func roleSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

const usage = "Usage:\n" +
	"`toggle` enable or disable the category menu\n" +
	"`category <category id> [label]` add or remove a category\n" +
	"`describe [text]` set the menu description, empty to reset\n" +
	"`mentions <category id> [@user|@role ...]` set who gets pinged\n" +
	"`embed` or `categories` preview the menu"

// parseCommand splits content into an invocation when it starts with prefix.
func parseCommand(content, prefix string) (Invocation, bool) {
	content = strings.TrimSpace(content)
	head, rest, _ := strings.Cut(content, " ")
	if !strings.EqualFold(head, prefix) {
		return Invocation{}, false
	}
	rest = strings.TrimSpace(rest)
	sub, text, _ := strings.Cut(rest, " ")
	text = strings.TrimSpace(text)
	return Invocation{
		Sub:  strings.ToLower(sub),
		Args: strings.Fields(text),
		Text: text,
	}, true
}

// Run executes inv and returns the reply, or nil for no reply.
func (c *Commands) Run(ctx context.Context, inv Invocation) *discordgo.MessageSend {
	if !c.authorized(inv.Sub, inv.Roles) {
		c.logger.Info("admin command refused", "user", inv.UserID, "command", inv.Sub)
		return text("You are not allowed to configure the category menu.")
	}

	logger := c.logger.With("user", inv.UserID, "command", inv.Sub)
	switch inv.Sub {
	case "toggle":
		enabled, err := c.manager.Toggle(ctx)
		if err != nil {
			return c.failure(logger, err)
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		logger.Info("menu toggled", "enabled", enabled)
		return text(fmt.Sprintf("Category menu %s.", state))

	case "category":
		return c.toggleCategory(ctx, logger, inv)

	case "describe":
		desc, err := c.manager.SetDescription(ctx, inv.Text)
		if err != nil {
			return c.failure(logger, err)
		}
		if inv.Text == "" {
			return text("Menu description reset to `" + desc + "`.")
		}
		return text("Menu description updated.")

	case "mentions":
		if len(inv.Args) == 0 {
			return text(usage)
		}
		id := inv.Args[0]
		targets := ParseMentionTargets(inv.Args[1:])
		if err := c.manager.SetMentions(ctx, id, targets); err != nil {
			return c.failure(logger, err)
		}
		return text(fmt.Sprintf("`%s` now mentions %d target(s).", c.manager.Snapshot().Label(id), len(targets)))

	case "embed", "categories":
		d := menu.Preview(c.strategy, c.manager.Snapshot())
		return &discordgo.MessageSend{
			Embeds: []*discordgo.MessageEmbed{{Description: d.Description, Color: c.color}},
		}

	default:
		return text(usage)
	}
}

func (c *Commands) toggleCategory(ctx context.Context, logger *slog.Logger, inv Invocation) *discordgo.MessageSend {
	if len(inv.Args) == 0 {
		return text(usage)
	}
	id := inv.Args[0]
	label := strings.TrimSpace(strings.TrimPrefix(inv.Text, id))

	cfg := c.manager.Snapshot()
	if _, configured := cfg.Category(id); !configured && c.categories != nil {
		name, found, err := c.categories.CategoryName(ctx, id)
		if err != nil {
			return c.failure(logger, err)
		}
		if !found {
			return text(fmt.Sprintf("`%s` is not a category.", id))
		}
		if label == "" {
			label = name
		}
	}

	added, err := c.manager.ToggleCategory(ctx, settings.Category{ID: id, Label: label})
	if errors.Is(err, settings.ErrTooManyCategories) {
		return text(fmt.Sprintf("You can only have up to %d categories.", c.manager.MaxCategories()))
	}
	if err != nil {
		return c.failure(logger, err)
	}
	if added {
		logger.Info("category added", "category", id)
		return text(fmt.Sprintf("Added `%s`.", c.manager.Snapshot().Label(id)))
	}
	logger.Info("category removed", "category", id)
	return text(fmt.Sprintf("Removed `%s`.", cfg.Label(id)))
}

func (c *Commands) authorized(sub string, roles []string) bool {
	preview := sub == "embed" || sub == "categories"
	for _, r := range roles {
		if c.adminRoles[r] || (preview && c.previewRoles[r]) {
			return true
		}
	}
	return false
}

func (c *Commands) failure(logger *slog.Logger, err error) *discordgo.MessageSend {
	switch {
	case errors.Is(err, settings.ErrPersist):
		logger.Error("command applied but not saved", "error", err)
		return text("Applied, but the configuration could not be saved. It will be lost on restart.")
	case errors.Is(err, settings.ErrCategoryNotFound):
		return text("That category is not configured.")
	default:
		logger.Warn("command failed", "error", err)
		return text("Error: " + err.Error())
	}
}

func text(content string) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}
}

var targetPattern = regexp.MustCompile(`^<@(&|!)?(\d+)>$|^(\d+)$`)

// ParseMentionTargets reads user mentions, role mentions and raw ids. Raw
// ids get no kind and are resolved at notification time.
func ParseMentionTargets(words []string) []settings.MentionTarget {
	out := make([]settings.MentionTarget, 0, len(words))
	for _, w := range words {
		m := targetPattern.FindStringSubmatch(w)
		switch {
		case m == nil:
			continue
		case m[3] != "":
			out = append(out, settings.MentionTarget{ID: m[3], Kind: settings.MentionAuto})
		case m[1] == "&":
			out = append(out, settings.MentionTarget{ID: m[2], Kind: settings.MentionRole})
		default:
			out = append(out, settings.MentionTarget{ID: m[2], Kind: settings.MentionUser})
		}
	}
	return out
}

// CategoryName implements CategoryLookup.
func (d *Discord) CategoryName(ctx context.Context, id string) (string, bool, error) {
	if d.api == nil {
		return "", false, channels.ErrChannelDisconnected
	}
	ch, err := d.api.Channel(id)
	if errors.Is(err, channels.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, d.fail(err)
	}
	if ch.Type != discordgo.ChannelTypeGuildCategory {
		return "", false, nil
	}
	return ch.Name, true, nil
}
