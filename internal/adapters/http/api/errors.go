package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/palco/internal/adapters/liveboard"
	"github.com/okian/palco/internal/adapters/repository"
	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/internal/domain/roster"
	"github.com/okian/palco/internal/domain/types"
	"github.com/okian/palco/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type errorKind struct {
	target error
	status int
	code   string
}

// errorKinds is checked in order; the first match wins.
var errorKinds = []errorKind{
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{event.ErrInvalidEvent, http.StatusBadRequest, "bad_request"},
	{roster.ErrInvalidName, http.StatusBadRequest, "bad_request"},
	{liveboard.ErrInvalidLimit, http.StatusBadRequest, "bad_request"},
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{ranking.ErrNotPublished, http.StatusForbidden, "not_published"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found"},
	{event.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{repository.ErrConflict, http.StatusConflict, "conflict"},
	{roster.ErrAlreadyAccepted, http.StatusConflict, "conflict"},
	{event.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{event.ErrRegistrationClosed, http.StatusConflict, "registration_closed"},
	{event.ErrNotEditable, http.StatusConflict, "not_editable"},
	{ranking.ErrEvaluationsIncomplete, http.StatusConflict, "evaluations_incomplete"},
	{evaluation.ErrInvalidScore, http.StatusUnprocessableEntity, "invalid_score"},
}

// classify maps err to a status and an error code.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// fail classifies err and writes it. Unclassified errors are logged and
// reported without their text.
func fail(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Error(err))
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}
