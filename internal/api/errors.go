package api

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// errorCode gives each error status a stable machine-readable name.
func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorised"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

// writeJSON sends v with the given status. A nil v sends the status alone.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// Encode failures mean the client went away mid-response.
	_ = json.NewEncoder(w).Encode(v)
}

// fail sends the structured error body for status.
func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{
		Code:    errorCode(status),
		Message: message,
		Status:  status,
	})
}

// Status-specific wrappers used throughout the handlers.

func writeBadRequest(w http.ResponseWriter, message string) {
	fail(w, http.StatusBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	fail(w, http.StatusUnauthorized, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	fail(w, http.StatusNotFound, message)
}

func writeConflict(w http.ResponseWriter, message string) {
	fail(w, http.StatusConflict, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	fail(w, http.StatusInternalServerError, message)
}
