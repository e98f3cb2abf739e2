package discord

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/channels"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// SendDisplay opens a DM with the recipient and posts the menu embed.
// Selection menus get a select component registered for the recipient.
func (d *Discord) SendDisplay(ctx context.Context, recipientID string, display menu.Display) (menu.MessageRef, error) {
	if d.api == nil {
		return menu.MessageRef{}, channels.ErrChannelDisconnected
	}

	dm, err := d.api.UserChannelCreate(recipientID)
	if err != nil {
		return menu.MessageRef{}, fmt.Errorf("discord: open dm with %s: %w", recipientID, d.fail(err))
	}

	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{d.embed(display.Description)}}
	if display.ComponentID != "" {
		d.components.Register(display.ComponentID, ComponentSpec{
			AllowedUsers: []string{recipientID},
			TTL:          d.componentTTL,
			Handler:      d.selectHandler(recipientID),
		})
		send.Components = []discordgo.MessageComponent{
			BuildSelectRow(display.ComponentID, display.Options, display.Placeholder),
		}
	}

	msg, err := d.api.ChannelMessageSendComplex(dm.ID, send)
	if err != nil {
		d.components.Unregister(display.ComponentID)
		return menu.MessageRef{}, fmt.Errorf("discord: send menu: %w", d.fail(err))
	}
	return menu.MessageRef{ChannelID: dm.ID, MessageID: msg.ID}, nil
}

// UpdateDisplay replaces the menu embed and drops its components.
func (d *Discord) UpdateDisplay(ctx context.Context, ref menu.MessageRef, display menu.Display) error {
	if d.api == nil {
		return channels.ErrChannelDisconnected
	}
	embeds := []*discordgo.MessageEmbed{d.embed(display.Description)}
	components := []discordgo.MessageComponent{}
	edit := &discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Embeds:     &embeds,
		Components: &components,
	}
	if _, err := d.api.ChannelMessageEditComplex(edit); err != nil {
		return fmt.Errorf("discord: edit menu: %w", d.fail(err))
	}
	return nil
}

// DeleteDisplay removes the menu message.
func (d *Discord) DeleteDisplay(ctx context.Context, ref menu.MessageRef) error {
	if d.api == nil {
		return channels.ErrChannelDisconnected
	}
	d.forgetSymbols(ref)
	if err := d.api.ChannelMessageDelete(ref.ChannelID, ref.MessageID); err != nil {
		return fmt.Errorf("discord: delete menu: %w", d.fail(err))
	}
	return nil
}

// AttachInputSymbol adds one reaction to the menu message.
func (d *Discord) AttachInputSymbol(ctx context.Context, ref menu.MessageRef, symbol string) error {
	if d.api == nil {
		return channels.ErrChannelDisconnected
	}
	if err := d.api.MessageReactionAdd(ref.ChannelID, ref.MessageID, symbol); err != nil {
		return fmt.Errorf("discord: add reaction: %w", err)
	}
	d.symbolsMu.Lock()
	d.symbols[ref.MessageID] = append(d.symbols[ref.MessageID], symbol)
	d.symbolsMu.Unlock()
	return nil
}

// ClearInputSymbols removes the bot's own reactions. The recipient's
// reactions stay; bots cannot remove others' reactions in DMs.
func (d *Discord) ClearInputSymbols(ctx context.Context, ref menu.MessageRef) error {
	if d.api == nil {
		return channels.ErrChannelDisconnected
	}
	var errs []error
	for _, symbol := range d.forgetSymbols(ref) {
		if err := d.api.MessageReactionRemove(ref.ChannelID, ref.MessageID, symbol, "@me"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Discord) forgetSymbols(ref menu.MessageRef) []string {
	d.symbolsMu.Lock()
	defer d.symbolsMu.Unlock()
	syms := d.symbols[ref.MessageID]
	delete(d.symbols, ref.MessageID)
	return syms
}

// MoveThread puts the channel under the destination category and syncs its
// permission overwrites with the category.
func (d *Discord) MoveThread(ctx context.Context, channelID, destinationID string) error {
	if d.api == nil {
		return channels.ErrChannelDisconnected
	}
	parent, err := d.api.Channel(destinationID)
	if err != nil {
		return fmt.Errorf("discord: fetch category %s: %w", destinationID, d.fail(err))
	}
	edit := &discordgo.ChannelEdit{
		ParentID:             destinationID,
		PermissionOverwrites: parent.PermissionOverwrites,
	}
	if _, err := d.api.ChannelEdit(channelID, edit); err != nil {
		return fmt.Errorf("discord: move channel %s: %w", channelID, d.fail(err))
	}
	return nil
}

// SendNotification posts to the staff channel. Only the users and roles
// named in mentionText are pinged.
func (d *Discord) SendNotification(ctx context.Context, channelID, mentionText, content string) error {
	if d.api == nil {
		return channels.ErrChannelDisconnected
	}
	send := &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: allowedMentions(mentionText),
	}
	if mentionText != "" {
		send.Content = mentionText + "\n" + content
	}
	if _, err := d.api.ChannelMessageSendComplex(channelID, send); err != nil {
		return fmt.Errorf("discord: send notification: %w", d.fail(err))
	}
	return nil
}

// LookupDestination reports whether id is an existing category channel.
func (d *Discord) LookupDestination(ctx context.Context, id string) (bool, error) {
	if d.api == nil {
		return false, channels.ErrChannelDisconnected
	}
	ch, err := d.api.Channel(id)
	if errors.Is(err, channels.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, d.fail(err)
	}
	return ch.Type == discordgo.ChannelTypeGuildCategory, nil
}

// ResolveMention renders a mention target. Roles are looked up in the staff
// guild; targets without a kind are tried as a role, then as a user. It
// returns "" when the target no longer exists.
func (d *Discord) ResolveMention(ctx context.Context, target settings.MentionTarget) (string, error) {
	if d.api == nil {
		return "", channels.ErrChannelDisconnected
	}
	if target.Kind != settings.MentionUser && d.cfg.GuildID != "" {
		role, err := d.api.Role(d.cfg.GuildID, target.ID)
		switch {
		case err == nil:
			return role.Mention(), nil
		case !errors.Is(err, channels.ErrNotFound):
			return "", err
		}
		if target.Kind == settings.MentionRole {
			return "", nil
		}
	}
	user, err := d.api.User(target.ID)
	if errors.Is(err, channels.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Mention(), nil
}

func (d *Discord) embed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: description,
		Color:       d.cfg.EmbedColor,
	}
}

var mentionPattern = regexp.MustCompile(`<@(&|!)?(\d+)>`)

// allowedMentions whitelists exactly the mentions present in text.
func allowedMentions(text string) *discordgo.MessageAllowedMentions {
	am := &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{},
		Users: []string{},
		Roles: []string{},
	}
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		if m[1] == "&" {
			am.Roles = append(am.Roles, m[2])
		} else {
			am.Users = append(am.Users, m[2])
		}
	}
	return am
}
