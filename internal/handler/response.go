package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// WriteJSON encodes data as the response body with the given status.
// Encode failures happen after the header is committed, so they are
// dropped.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorResponse pairs a stable machine-readable code with a free-form
// message.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes the error envelope every failing endpoint uses.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

var (
	errWrongContentType = errors.New("expected Content-Type application/json")
	errMalformedBody    = errors.New("request body is not valid JSON")
)

// ParseJSON strictly decodes the request body into v: the Content-Type
// must be application/json and unknown fields are rejected.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/json") {
		return errWrongContentType
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errMalformedBody
	}
	return nil
}
