// Package httpx provides JSON response utilities shared by all API handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response shape every API endpoint emits.
type Envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Pagination any    `json:"pagination,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
}

// JSON sends a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// JSONMessage sends a success envelope carrying a human-readable message.
func JSONMessage(w http.ResponseWriter, status int, data any, message string) {
	write(w, status, Envelope{Success: true, Data: data, Message: message})
}

// Paginated sends a success envelope with listing metadata attached.
func Paginated(w http.ResponseWriter, status int, data, pagination any) {
	write(w, status, Envelope{Success: true, Data: data, Pagination: pagination})
}

// Error sends a failure envelope. The code is the stable machine-readable
// contract clients depend on; the message is informational only.
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Envelope{Success: false, Code: code, Message: message})
}

// Fail sends a failure envelope without a machine-readable code.
func Fail(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: false, Message: message})
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
