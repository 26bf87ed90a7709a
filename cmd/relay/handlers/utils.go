package handlers

import (
	"encoding/json"
	"net/http"
)

// message maps message into JSON formatted string
func message(message string) map[string]interface{} {
	return map[string]interface{}{"message": message}
}

// dataMessage maps data and message into JSON formatted string
func dataMessage(data interface{}, message string) map[string]interface{} {
	return map[string]interface{}{"message": message, "data": data}
}

// processed maps a webhook outcome and its extra fields into JSON formatted string
func processed(o outcome, fields map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{"ok": true, "processed": o}
	for k, v := range fields {
		data[k] = v
	}
	return data
}

// respond encodes a JSON response to a http request
func respond(w http.ResponseWriter, data map[string]interface{}) {
	respondWithStatus(w, http.StatusOK, data)
}

// respondWithStatus encodes a JSON response to a http request and modifies response status code
func respondWithStatus(w http.ResponseWriter, statusCode int, data map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
