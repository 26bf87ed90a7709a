package handlers

import (
	"context"

	"github.com/gpng/edge-relay/services/telemetry"
	"go.uber.org/zap"
)

// delegate forwards the update to the workflow engine. Failures are never
// passed on to Telegram, which would retry the update: the user gets an
// apology instead and the caller still sees 200.
func (h *Handlers) delegate(ctx context.Context, req *webhookRequest) map[string]interface{} {
	l := req.logger
	l.Info("delegating to workflow engine")

	result, err := h.backend.Forward(ctx, req.raw)
	if err != nil {
		l.Error("workflow engine delegation failed", zap.Error(err))

		if msg := req.update.Message; msg != nil {
			_ = h.notifier.Notify(ctx, msg.Chat.ID, MsgTemporaryFailure)
		}
		_ = h.telemetry.Record(ctx, telemetry.KindError, telemetry.Record{
			Source:   sourceDelegationError,
			Status:   telemetry.StatusFailed,
			Error:    err.Error(),
			Input:    req.payload(),
			Duration: req.elapsed(),
		})
		return processed(outcomeFallback, map[string]interface{}{"error": err.Error()})
	}

	_ = h.telemetry.Record(ctx, telemetry.KindExecution, telemetry.Record{
		Source: sourceDelegation,
		Status: telemetry.StatusCompleted,
		Input:  req.payload(),
		Output: map[string]interface{}{
			"delegated":    true,
			"aws_response": result,
		},
		Duration: req.elapsed(),
	})
	return processed(outcomeDelegated, map[string]interface{}{"aws_result": result})
}
