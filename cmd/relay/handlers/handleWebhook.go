package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/gpng/edge-relay/models"
	"github.com/gpng/edge-relay/services/telemetry"
	"go.uber.org/zap"
)

// outcome of a webhook update, sent back as the "processed" field
type outcome string

const (
	outcomeNoAction      outcome = "no_action"
	outcomeQuick         outcome = "quick"
	outcomeQuickCallback outcome = "quick_callback"
	outcomeDelegated     outcome = "aws_delegation"
	outcomeFallback      outcome = "error_fallback"
	outcomeUnknown       outcome = "unknown_command"
	outcomeNotAllowed    outcome = "method_not_allowed"
	outcomeFault         outcome = "fault"
)

// maxUpdateBytes caps a webhook body. Telegram updates are a few KB at most.
const maxUpdateBytes = 1 << 20

var errNoChat = errors.New("message without chat")

// telemetry sources
const (
	sourceWebhook         = "telegram_webhook"
	sourceQuickCommand    = "telegram_quick_command"
	sourceQuickCallback   = "telegram_quick_callback"
	sourceDelegation      = "telegram_aws_delegation"
	sourceDelegationError = "aws_delegation"
)

// webhookRequest is one update on its way through the router
type webhookRequest struct {
	start  time.Time
	raw    []byte
	update *models.TelegramUpdate
	logger *zap.Logger
}

func (req *webhookRequest) elapsed() time.Duration {
	return time.Since(req.start)
}

// payload for telemetry: the update as received, or the raw text if it is not JSON
func (req *webhookRequest) payload() interface{} {
	if json.Valid(req.raw) {
		return json.RawMessage(req.raw)
	}
	return string(req.raw)
}

func (h *Handlers) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			respondWithStatus(w, http.StatusMethodNotAllowed, map[string]interface{}{
				"ok":        false,
				"processed": outcomeNotAllowed,
				"error":     msgMethodNotAllow,
				"allowed":   []string{http.MethodPost},
			})
			return
		}

		// Telegram hanging up must not abort a delegation halfway
		ctx := context.WithoutCancel(r.Context())
		req := &webhookRequest{start: time.Now(), logger: h.logger}

		raw, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
		if err != nil {
			h.fault(ctx, w, req, fmt.Errorf("reading body: %w", err))
			return
		}
		req.raw = raw

		res, err := h.route(ctx, req)
		if err != nil {
			h.fault(ctx, w, req, err)
			return
		}
		respond(w, res)
	}
}

// route decodes the update and dispatches it. Panics are returned as errors.
func (h *Handlers) route(ctx context.Context, req *webhookRequest) (res map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while routing update: %v", p)
		}
	}()

	update := &models.TelegramUpdate{}
	if err := json.Unmarshal(req.raw, update); err != nil {
		return nil, fmt.Errorf("decoding update: %w", err)
	}
	req.update = update
	req.logger = h.logger.With(zap.Int("update_id", update.UpdateID))

	switch {
	case update.Message != nil:
		return h.handleMessage(ctx, req)
	case update.CallbackQuery != nil:
		return h.handleCallbackQuery(ctx, req)
	}

	req.logger.Debug("update without message or callback query")
	return processed(outcomeNoAction, message(msgNoAction)), nil
}

func (h *Handlers) handleMessage(ctx context.Context, req *webhookRequest) (map[string]interface{}, error) {
	msg := req.update.Message
	chatID := msg.Chat.ID
	if chatID == 0 {
		return nil, fmt.Errorf("update %d: %w", req.update.UpdateID, errNoChat)
	}
	l := req.logger.With(zap.Int64("chat_id", chatID), zap.Int("message_id", msg.MessageID))
	l.Info("incoming telegram message", zap.String("text", msg.Text))

	if cmd, ok := commands[msg.Text]; ok {
		l = l.With(zap.String("command", cmd.String()))
		delivered, err := h.runCommand(ctx, l, cmd, chatID)
		if err != nil {
			return nil, err
		}
		res := processed(outcomeQuick, map[string]interface{}{"command": cmd.String()})
		_ = h.telemetry.Record(ctx, telemetry.KindExecution, telemetry.Record{
			Source:   sourceQuickCommand,
			Status:   telemetry.StatusCompleted,
			Input:    map[string]interface{}{"chat_id": chatID, "command": cmd.String()},
			Output:   map[string]interface{}{"processed": outcomeQuick, "delivered": delivered},
			Duration: req.elapsed(),
		})
		return res, nil
	}

	if shouldDelegate(msg.Text) {
		req.logger = l
		return h.delegate(ctx, req), nil
	}

	l.Info("unknown command", zap.String("text", msg.Text))
	_ = h.notifier.Notify(ctx, chatID, MsgUnknownCommand)
	return processed(outcomeUnknown, nil), nil
}

func (h *Handlers) handleCallbackQuery(ctx context.Context, req *webhookRequest) (map[string]interface{}, error) {
	cq := req.update.CallbackQuery
	l := req.logger.With(zap.String("callback_data", cq.Data))
	l.Info("incoming telegram callback query")

	cb, ok := callbacks[cq.Data]
	if !ok {
		req.logger = l
		return h.delegate(ctx, req), nil
	}

	delivered := false
	if cq.Message == nil {
		l.Warn("quick callback without message, nowhere to reply")
	} else {
		if cq.Message.Chat.ID == 0 {
			return nil, fmt.Errorf("update %d: callback %w", req.update.UpdateID, errNoChat)
		}
		var err error
		if delivered, err = h.runCallback(ctx, cb, cq.Message.Chat.ID); err != nil {
			return nil, err
		}
	}

	_ = h.telemetry.Record(ctx, telemetry.KindExecution, telemetry.Record{
		Source:   sourceQuickCallback,
		Status:   telemetry.StatusCompleted,
		Input:    map[string]interface{}{"callback": cb.String()},
		Output:   map[string]interface{}{"processed": outcomeQuickCallback, "delivered": delivered},
		Duration: req.elapsed(),
	})
	return processed(outcomeQuickCallback, map[string]interface{}{"callback": cb.String()}), nil
}

// fault answers 500 for anything the router could not handle and records it
func (h *Handlers) fault(ctx context.Context, w http.ResponseWriter, req *webhookRequest, err error) {
	h.logger.Error("telegram webhook error", zap.Error(err))

	_ = h.telemetry.Record(ctx, telemetry.KindError, telemetry.Record{
		Source:   sourceWebhook,
		Status:   telemetry.StatusFailed,
		Error:    err.Error(),
		Input:    req.payload(),
		Duration: req.elapsed(),
	})

	respondWithStatus(w, http.StatusInternalServerError, map[string]interface{}{
		"ok":        false,
		"processed": outcomeFault,
		"error":     msgInternalError,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
