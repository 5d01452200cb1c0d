// Package httputil provides the JSON response helpers used by the record
// server.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getmockd/pipeline/pkg/collection"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, ErrorBody{Error: errCode, Message: message})
}

// WriteCollectionError renders err with the status, code and hint it
// carries. Errors that are not collection errors become 500s.
func WriteCollectionError(w http.ResponseWriter, err error) {
	var cerr *collection.Error
	if !errors.As(err, &cerr) {
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	body := ErrorBody{Error: cerr.Kind.String(), Message: cerr.Error(), Hint: cerr.Hint()}
	WriteJSON(w, cerr.StatusCode(), body)
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteCreated writes a 201 Created response with the created record.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteUnauthorized writes a 401 response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}
