package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorEnvelope is the JSON body of every non-2xx API response, ours and the store's.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func (e *ErrorEnvelope) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message + " (" + e.Code + ")"
}

// DecodeError parses body as an envelope. Bodies without a code are not envelopes.
func DecodeError(body []byte) (*ErrorEnvelope, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, false
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || strings.TrimSpace(env.Code) == "" {
		return nil, false
	}
	return &env, true
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{Code: code, Message: message, Meta: meta})
}
