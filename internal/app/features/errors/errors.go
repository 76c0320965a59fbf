// internal/app/features/errors/errors.go

// Package errors renders the API's JSON envelope and logs failures.
// Success responses are {success:true, message, data}; failures are
// {success:false, message} with optional per-field errors. Internal
// detail is included only in dev mode.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"go.uber.org/zap"
)

// Responder writes envelope responses and owns server-side error logging.
type Responder struct {
	log *zap.Logger
	dev bool
}

// NewResponder constructs a Responder. dev=true includes internal error
// detail in 500 responses.
func NewResponder(logger *zap.Logger, dev bool) *Responder {
	return &Responder{log: logger, dev: dev}
}

// envelope is the wire shape of every response.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// JSON writes a success envelope with the given status.
func (rp *Responder) JSON(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// OK writes a 200 success envelope.
func (rp *Responder) OK(w http.ResponseWriter, message string, data any) {
	rp.JSON(w, http.StatusOK, message, data)
}

// Created writes a 201 success envelope.
func (rp *Responder) Created(w http.ResponseWriter, message string, data any) {
	rp.JSON(w, http.StatusCreated, message, data)
}

// Error maps err through the taxonomy and writes the failure envelope.
// Internal errors are logged with full detail; the client sees a generic
// message unless dev mode is on.
func (rp *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)

	out := envelope{Success: false, Message: "internal server error"}

	var ae *apperr.Error
	if asAppErr(err, &ae) {
		out.Message = ae.Message
		out.Errors = ae.Fields
	}

	if status == http.StatusInternalServerError {
		rp.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if rp.dev {
			out.Error = err.Error()
		}
	} else {
		rp.log.Debug("request rejected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}

	writeJSON(w, status, out)
}

func asAppErr(err error, target **apperr.Error) bool {
	return stderrors.As(err, target)
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
