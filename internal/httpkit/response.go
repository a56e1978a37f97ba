// Package httpkit holds the small HTTP helpers shared by every handler:
// JSON decode/encode, the flat error payload the public API speaks, CORS,
// and Postgres error classification.
package httpkit

import (
	"encoding/json"
	"net/http"
	"strings"

	"abode/internal/pkg/errors"
)

func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps err to its HTTP status and writes the flat payload
// {"error": "<message>", ...fields}. Structured fields ride along at the
// top level (snake_case keys converted to the API's camelCase); internal
// errors are masked so nothing leaks to the caller.
func WriteError(w http.ResponseWriter, err error) {
	status := errors.GetHTTPStatus(err)

	body := map[string]any{"error": callerMessage(err, status)}
	if status < 500 {
		for k, v := range errors.GetFields(err) {
			body[camelKey(k)] = v
		}
	}

	WriteJSON(w, status, body)
}

func callerMessage(err error, status int) string {
	if status >= 500 {
		return "Internal server error"
	}
	var e *errors.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// camelKey converts a snake_case field name to the camelCase the API uses.
func camelKey(k string) string {
	parts := strings.Split(k, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
