// Package api provides standardized helper functions for HTTP API responses.
package api

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response shape for every endpoint. Clients
// discriminate success and failure on the Success flag alone.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with optional JSON data.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, Envelope{Success: true, Data: data})
}

// SuccessList sends a successful response for list endpoints, including the
// number of returned items.
func SuccessList(w http.ResponseWriter, data interface{}, count int) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Count: &count})
}

// SuccessMessage sends a successful response carrying a human-readable status
// message alongside the data.
func SuccessMessage(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// Error sends an error response with consistent JSON format.
func Error(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, Envelope{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
