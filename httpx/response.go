// Package httpx holds the JSON response helpers shared by all handlers.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/ap-invoices/validation"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Message     string            `json:"message"`
	Errors      []validation.Item `json:"errors,omitempty"`
	NeedsAPIKey bool              `json:"needsApiKey,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"message":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorResponse{Message: msg})
}

// ValidationError writes a 400 listing every violation.
func ValidationError(w http.ResponseWriter, msg string, v validation.Violations) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Message: msg, Errors: v.Items()})
}
