package handlers

import (
	"github.com/go-chi/chi"
)

// WebhookPath Telegram is configured to post updates to
const WebhookPath = "/api/webhook/telegram"

// Routes for app
func (h *Handlers) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", h.handleStatus())
	router.Get("/health", h.handleHealth())

	// all methods, the handler answers 405 itself
	router.HandleFunc(WebhookPath, h.handleWebhook())

	return router
}
