package messenger

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

const discordMaxImageSize = 8 * 1024 * 1024

// discordSession is the part of *discordgo.Session the bot uses.
type discordSession interface {
	User(userID string) (*discordgo.User, error)
	UserChannelCreate(recipientID string) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
}

// Discord sends documents as direct messages to the bot's owner.
type Discord struct {
	session discordSession
	owner   string
}

// NewDiscord creates a REST-only session; no gateway connection is opened.
func NewDiscord(token, owner string, client *http.Client) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}
	if client != nil {
		session.Client = client
	}
	return &Discord{session: session, owner: owner}, nil
}

// Resolve opens (or reuses) the DM channel with the owner.
func (d *Discord) Resolve(ctx context.Context) (Chat, error) {
	if err := ctx.Err(); err != nil {
		return Chat{}, err
	}

	owner, err := d.session.User(d.owner)
	if err != nil {
		return Chat{}, fmt.Errorf("discord owner %s: %w", d.owner, err)
	}

	channel, err := d.session.UserChannelCreate(owner.ID)
	if err != nil {
		return Chat{}, fmt.Errorf("discord DM channel: %w", err)
	}

	return Chat{ID: channel.ID, Name: owner.Username}, nil
}

func (d *Discord) SendDocument(ctx context.Context, chat Chat, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := d.session.ChannelMessageSendComplex(chat.ID, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:   name,
			Reader: bytes.NewReader(data),
		}},
	})
	if err != nil {
		return fmt.Errorf("discord send %s: %w", name, err)
	}
	return nil
}

func (d *Discord) MaxUploadBytes() int {
	return discordMaxImageSize
}
