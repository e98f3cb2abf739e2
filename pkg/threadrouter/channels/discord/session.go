package discord

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/channels"
)

// api is the subset of the Discord REST surface the channel uses.
type api interface {
	UserChannelCreate(recipientID string) (*discordgo.Channel, error)
	Channel(channelID string) (*discordgo.Channel, error)
	ChannelEdit(channelID string, data *discordgo.ChannelEdit) (*discordgo.Channel, error)
	Role(guildID, roleID string) (*discordgo.Role, error)
	User(userID string) (*discordgo.User, error)

	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
	ChannelMessageEditComplex(edit *discordgo.MessageEdit) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string) error

	MessageReactionAdd(channelID, messageID, emoji string) error
	MessageReactionRemove(channelID, messageID, emoji, userID string) error
}

// sessionAPI serves api from a live session, preferring the gateway state
// cache over REST calls.
type sessionAPI struct {
	s *discordgo.Session
}

func (a sessionAPI) UserChannelCreate(recipientID string) (*discordgo.Channel, error) {
	return a.s.UserChannelCreate(recipientID)
}

func (a sessionAPI) Channel(channelID string) (*discordgo.Channel, error) {
	if a.s.State != nil {
		if ch, err := a.s.State.Channel(channelID); err == nil {
			return ch, nil
		}
	}
	ch, err := a.s.Channel(channelID)
	return ch, notFound(err)
}

func (a sessionAPI) ChannelEdit(channelID string, data *discordgo.ChannelEdit) (*discordgo.Channel, error) {
	return a.s.ChannelEdit(channelID, data)
}

func (a sessionAPI) Role(guildID, roleID string) (*discordgo.Role, error) {
	if a.s.State != nil {
		if role, err := a.s.State.Role(guildID, roleID); err == nil {
			return role, nil
		}
	}
	roles, err := a.s.GuildRoles(guildID)
	if err != nil {
		return nil, notFound(err)
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role, nil
		}
	}
	return nil, channels.ErrNotFound
}

func (a sessionAPI) User(userID string) (*discordgo.User, error) {
	u, err := a.s.User(userID)
	return u, notFound(err)
}

func (a sessionAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	return a.s.ChannelMessageSendComplex(channelID, data)
}

func (a sessionAPI) ChannelMessageEditComplex(edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	return a.s.ChannelMessageEditComplex(edit)
}

func (a sessionAPI) ChannelMessageDelete(channelID, messageID string) error {
	return a.s.ChannelMessageDelete(channelID, messageID)
}

func (a sessionAPI) MessageReactionAdd(channelID, messageID, emoji string) error {
	return a.s.MessageReactionAdd(channelID, messageID, emoji)
}

func (a sessionAPI) MessageReactionRemove(channelID, messageID, emoji, userID string) error {
	return a.s.MessageReactionRemove(channelID, messageID, emoji, userID)
}

// notFound maps Discord 404 responses to channels.ErrNotFound.
func notFound(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return channels.ErrNotFound
	}
	return err
}
