package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/dilfish/telegram-bot-api-up"
	"go.uber.org/zap"
)

// DefaultAPIURL of the Telegram Bot API
const DefaultAPIURL = "https://api.telegram.org"

// ErrCredentialMissing is returned when no bot token is configured
var ErrCredentialMissing = errors.New("telegram bot token not configured")

// RejectedError is returned when the Bot API answers with ok=false
type RejectedError struct {
	ErrorCode   int
	Description string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("telegram API rejected message (code %d): %s", e.ErrorCode, e.Description)
}

// Bot with all methods
type Bot struct {
	logger *zap.Logger
	client *http.Client
	api    tgbotapi.BotAPI
}

// New bot client. The BotAPI is built without calling getMe, so an empty token
// is accepted and every send fails with ErrCredentialMissing.
func New(logger *zap.Logger, client *http.Client, token string, apiURL string) *Bot {
	if client == nil {
		client = http.DefaultClient
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	api := tgbotapi.BotAPI{Token: token, Client: client}
	api.SetAPIEndpoint(strings.TrimRight(apiURL, "/") + "/bot%s/%s")

	return &Bot{
		logger: logger,
		client: client,
		api:    api,
	}
}

// contextClient binds outgoing Bot API requests to the caller's context
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// MessageOption tweaks a sendMessage request
type MessageOption func(*tgbotapi.MessageConfig)

// WithoutPreview disables link previews
func WithoutPreview() MessageOption {
	return func(msg *tgbotapi.MessageConfig) {
		msg.DisableWebPagePreview = true
	}
}

// WithKeyboard attaches an inline keyboard
func WithKeyboard(keyboard tgbotapi.InlineKeyboardMarkup) MessageOption {
	return func(msg *tgbotapi.MessageConfig) {
		msg.ReplyMarkup = keyboard
	}
}

// Send HTML formatted text to a chat
func (bot *Bot) Send(ctx context.Context, chatID int64, text string, opts ...MessageOption) error {
	if bot.api.Token == "" {
		return ErrCredentialMissing
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	for _, opt := range opts {
		opt(&msg)
	}

	api := bot.api
	api.Client = contextClient{ctx: ctx, client: bot.client}

	_, err := api.Send(msg)
	if err == nil {
		return nil
	}

	var apiErr tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &RejectedError{ErrorCode: apiErr.Code, Description: apiErr.Message}
	}
	// url.Error carries the endpoint, which contains the token
	return fmt.Errorf("sending message: %s", strings.ReplaceAll(err.Error(), bot.api.Token, "<token>"))
}

// Notify sends text and reports whether Telegram accepted it. Failures are
// logged here and never returned.
func (bot *Bot) Notify(ctx context.Context, chatID int64, text string, opts ...MessageOption) bool {
	err := bot.Send(ctx, chatID, text, opts...)
	if err == nil {
		return true
	}

	l := bot.logger.With(zap.Int64("chat_id", chatID))
	var rejected *RejectedError
	switch {
	case errors.Is(err, ErrCredentialMissing):
		l.Error("cannot send message", zap.Error(err))
	case errors.As(err, &rejected):
		l.Error("telegram API error",
			zap.Int("error_code", rejected.ErrorCode),
			zap.String("description", rejected.Description),
		)
	default:
		l.Error("send message error", zap.Error(err))
	}
	return false
}
