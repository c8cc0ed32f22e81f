// Package web serves a Browser over a small JSON HTTP API for presentation clients.
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"refdash/internal/apperr"
)

// HandlerFunc is an http handler that returns its error instead of writing it.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// HandleError adapts h to http.HandlerFunc, writing returned errors with DefaultErrorHandler.
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

type errorResponse struct {
	ErrMsg     string `json:"error"`
	ErrMsgCode int    `json:"code"`
}

// DefaultErrorHandler writes err as {"error","code"} using the status of its kind.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.StatusCode(), &errorResponse{
			ErrMsg:     apperr.Message(appErr),
			ErrMsgCode: appErr.StatusCode(),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, &errorResponse{
		ErrMsg:     "unexpected error",
		ErrMsgCode: http.StatusInternalServerError,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
