package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cfdjournal/internal/ports"
)

// writeJSON marshals v as JSON and writes it with the given status code.
// If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response with the status mapped
// from the application error taxonomy.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ports.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ports.ErrStateConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// pathID extracts the {id} path parameter as an int64.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.Join(errors.New("invalid id in path"), ports.ErrValidation)
	}
	return id, nil
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errors.New("invalid request body"), ports.ErrValidation)
	}
	return nil
}

// parseTime parses an optional RFC3339 timestamp; empty means zero time.
func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.Join(errors.New("timestamps must be RFC3339"), ports.ErrValidation)
	}
	return t, nil
}
