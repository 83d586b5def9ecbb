package messenger

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxUploadSize = 50 * 1024 * 1024

// Telegram sends documents through the Telegram Bot API.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

// NewTelegram authenticates the bot. endpoint is a format string taking the
// token and the method name, e.g. tgbotapi.APIEndpoint.
func NewTelegram(token, endpoint string, client *http.Client) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

// Resolve uses the sender of the first pending update as the destination.
func (t *Telegram) Resolve(ctx context.Context) (Chat, error) {
	if err := ctx.Err(); err != nil {
		return Chat{}, err
	}

	updates, err := t.bot.GetUpdates(tgbotapi.NewUpdate(0))
	if err != nil {
		return Chat{}, fmt.Errorf("telegram getUpdates: %w", err)
	}
	if len(updates) == 0 {
		return Chat{}, ErrNoPendingUpdates
	}

	from := sender(updates[0])
	if from == nil {
		return Chat{}, ErrNoPendingUpdates
	}

	return Chat{ID: strconv.FormatInt(from.ID, 10), Name: from.UserName}, nil
}

func sender(u tgbotapi.Update) *tgbotapi.User {
	switch {
	case u.Message != nil:
		return u.Message.From
	case u.EditedMessage != nil:
		return u.EditedMessage.From
	case u.CallbackQuery != nil:
		return u.CallbackQuery.From
	case u.InlineQuery != nil:
		return u.InlineQuery.From
	}
	return nil
}

func (t *Telegram) SendDocument(ctx context.Context, chat Chat, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := strconv.ParseInt(chat.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", chat.ID, err)
	}

	doc := tgbotapi.NewDocument(id, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("telegram sendDocument %s: %w", name, err)
	}
	return nil
}

func (t *Telegram) MaxUploadBytes() int {
	return telegramMaxUploadSize
}
