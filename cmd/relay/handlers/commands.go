package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/dilfish/telegram-bot-api-up"
	"github.com/gpng/edge-relay/services/telegram"
	"go.uber.org/zap"
)

// command answered inline, without the workflow engine
type command int

const (
	commandStart command = iota + 1
	commandHelp
	commandStatus
)

// commands by their exact, case sensitive, message text
var commands = map[string]command{
	"/start":  commandStart,
	"/help":   commandHelp,
	"/status": commandStatus,
}

func (c command) String() string {
	switch c {
	case commandStart:
		return "/start"
	case commandHelp:
		return "/help"
	case commandStatus:
		return "/status"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// complexPrefixes mark commands that always go to the workflow engine
var complexPrefixes = []string{"/complex", "/workflow", "/analytics"}

func isComplex(text string) bool {
	for _, prefix := range complexPrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// shouldDelegate reports whether message text belongs to the workflow engine:
// complex commands and any plain, non-command text.
func shouldDelegate(text string) bool {
	return isComplex(text) || (text != "" && !strings.HasPrefix(text, "/"))
}

// callback answered inline, keyed by inline button data
type callback int

const (
	callbackStatus callback = iota + 1
	callbackHelp
)

var callbacks = map[string]callback{
	"status": callbackStatus,
	"help":   callbackHelp,
}

func (c callback) String() string {
	switch c {
	case callbackStatus:
		return "status"
	case callbackHelp:
		return "help"
	}
	return fmt.Sprintf("callback(%d)", int(c))
}

// startKeyboard offers the quick callbacks as buttons
func startKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Status", callbackStatus.String()),
			tgbotapi.NewInlineKeyboardButtonData("Help", callbackHelp.String()),
		),
	)
}

// runCommand replies to a quick command and reports whether the reply was delivered
func (h *Handlers) runCommand(ctx context.Context, l *zap.Logger, cmd command, chatID int64) (bool, error) {
	switch cmd {
	case commandStart:
		return h.notifier.Notify(ctx, chatID, MsgStart, telegram.WithKeyboard(startKeyboard())), nil
	case commandHelp:
		return h.notifier.Notify(ctx, chatID, MsgHelp), nil
	case commandStatus:
		status := h.prober.Probe(ctx)
		l.Debug("system status",
			zap.Bool("backend", status.BackendReachable),
			zap.Bool("analytics", status.AnalyticsReachable),
		)
		text := MsgStatus(status.BackendReachable, status.AnalyticsReachable, time.Since(status.StartedAt))
		return h.notifier.Notify(ctx, chatID, text), nil
	}
	return false, fmt.Errorf("no handler for %v", cmd)
}

// runCallback replies to a quick callback and reports whether the reply was delivered
func (h *Handlers) runCallback(ctx context.Context, cb callback, chatID int64) (bool, error) {
	switch cb {
	case callbackStatus:
		status, err := json.Marshal(h.prober.Probe(ctx))
		if err != nil {
			return false, err
		}
		return h.notifier.Notify(ctx, chatID, "System status: "+html.EscapeString(string(status))), nil
	case callbackHelp:
		return h.notifier.Notify(ctx, chatID, MsgCallbackHelp), nil
	}
	return false, fmt.Errorf("no handler for %v", cb)
}
