package messenger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Alextopher/space-photos-bot/internal/config"
)

// ErrNoPendingUpdates is returned when the bot has no update to take the
// destination chat from. Someone has to message the bot first.
var ErrNoPendingUpdates = errors.New("bot has no pending updates to resolve the chat from")

// Chat is a resolved destination.
type Chat struct {
	ID   string
	Name string
}

func (c Chat) String() string {
	if c.Name == "" {
		return c.ID
	}
	return fmt.Sprintf("%s (%s)", c.ID, c.Name)
}

// Messenger delivers files to a chat.
type Messenger interface {
	// Resolve finds the chat documents are sent to.
	Resolve(ctx context.Context) (Chat, error)
	// SendDocument uploads data as a file called name.
	SendDocument(ctx context.Context, chat Chat, name string, data []byte) error
	// MaxUploadBytes is the largest document the backend accepts.
	MaxUploadBytes() int
}

// New builds the messenger selected by cfg.ChatBackend.
func New(cfg *config.Config, client *http.Client) (Messenger, error) {
	switch cfg.ChatBackend {
	case config.BackendTelegram:
		return NewTelegram(cfg.TelegramToken, cfg.TelegramAPIURL, client)
	case config.BackendDiscord:
		return NewDiscord(cfg.DiscordToken, cfg.DiscordOwner, client)
	default:
		return nil, fmt.Errorf("unknown chat backend %q", cfg.ChatBackend)
	}
}
