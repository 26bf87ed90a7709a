package handlers

import (
	"context"
	"encoding/json"

	"github.com/gpng/edge-relay/services/health"
	"github.com/gpng/edge-relay/services/telegram"
	"github.com/gpng/edge-relay/services/telemetry"
	"go.uber.org/zap"
)

// Notifier sends replies to a chat, reporting whether they were accepted
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string, opts ...telegram.MessageOption) bool
}

// Delegator forwards a raw update to the workflow engine
type Delegator interface {
	Forward(ctx context.Context, payload []byte) (json.RawMessage, error)
}

// Prober reports reachability of the relay's dependencies
type Prober interface {
	Probe(ctx context.Context) health.SystemStatus
}

// Handlers struct
type Handlers struct {
	logger    *zap.Logger
	notifier  Notifier
	backend   Delegator
	prober    Prober
	telemetry telemetry.Sink
}

// New service
func New(
	logger *zap.Logger,
	notifier Notifier,
	backend Delegator,
	prober Prober,
	sink telemetry.Sink,
) *Handlers {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Handlers{logger, notifier, backend, prober, sink}
}
