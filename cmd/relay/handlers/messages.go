package handlers

import (
	"fmt"
	"time"
)

// messages
const (
	MsgStart = "🚀 Hi! I'm ready to go.\n\n" +
		"Available commands:\n" +
		"/help - Help\n" +
		"/status - System status\n" +
		"/complex - Complex operations"
	MsgHelp = "📖 Command reference:\n\n" +
		"⚡ Quick commands (edge):\n" +
		"/start - Greeting\n" +
		"/help - This help\n" +
		"/status - System status\n\n" +
		"🔧 Complex commands (workflow engine):\n" +
		"/complex - Complex processing\n" +
		"/workflow - Run a workflow\n" +
		"/analytics - Analytics"
	MsgCallbackHelp     = "Quick help from the edge relay"
	MsgUnknownCommand   = "❓ Unknown command. Use /help to see what I can do."
	MsgTemporaryFailure = "⚠️ Temporary technical problems. Please try again later."

	msgNoAction       = "No action required"
	msgInternalError  = "Internal server error"
	msgMethodNotAllow = "Method not allowed"
)

// MsgStatus reports the result of a health probe
func MsgStatus(backend, analytics bool, elapsed time.Duration) string {
	return fmt.Sprintf("🖥️ System status:\n\n"+
		"Edge relay: ✅ Active\n"+
		"Workflow engine: %s\n"+
		"Supabase: %s\n"+
		"Response time: %dms",
		availability(backend), availability(analytics), elapsed.Milliseconds())
}

func availability(ok bool) string {
	if ok {
		return "✅ Active"
	}
	return "❌ Unavailable"
}
