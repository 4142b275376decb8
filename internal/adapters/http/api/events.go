package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/types"
	"github.com/okian/palco/pkg/logger"
)

// IdempotencyHeader carries the client key of a transition request.
const IdempotencyHeader = "Idempotency-Key"

var errUnknownApprovalMode = errors.New("unknown approval_mode")

// EventsHandler serves event records and their lifecycle.
type EventsHandler struct {
	deps Dependencies
	log  logger.Logger
}

func (h *EventsHandler) details(w http.ResponseWriter, r *http.Request) (event.Details, error) {
	var req types.EventRequest
	if err := decode(w, r, &req, false); err != nil {
		return event.Details{}, err
	}
	d, ok := req.Details()
	if !ok {
		return event.Details{}, fmt.Errorf("%w: %w", ErrBadRequest, errUnknownApprovalMode)
	}
	return d, nil
}

// HandleCreate handles POST /events.
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	d, err := h.details(w, r)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	ev, err := h.deps.CreateEvent(r.Context(), d)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.FromEvent(ev))
}

// HandleGet handles GET /events/{id}.
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ev, err := h.deps.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromEvent(ev))
}

// HandleEdit handles PUT /events/{id}. Only drafts are editable.
func (h *EventsHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	d, err := h.details(w, r)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	ev, err := h.deps.EditEvent(r.Context(), r.PathValue("id"), d)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromEvent(ev))
}

// HandleCopy handles POST /events/{id}/copy.
func (h *EventsHandler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	ev, err := h.deps.CopyEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.FromEvent(ev))
}

// HandleTransition handles POST /events/{id}/transitions.
func (h *EventsHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	var req types.TransitionRequest
	if err := decode(w, r, &req, false); err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	action, ok := event.ParseAction(req.Action)
	if !ok {
		fail(r.Context(), h.log, w, fmt.Errorf("%w: unknown action %q", ErrBadRequest, req.Action))
		return
	}

	ev, err := h.deps.Transition(r.Context(), r.PathValue("id"), event.Request{
		Action:   action,
		Reason:   req.Reason,
		Override: req.Override,
	}, r.Header.Get(IdempotencyHeader))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromEvent(ev))
}

// HandleWindow handles GET /events/{id}/window.
func (h *EventsHandler) HandleWindow(w http.ResponseWriter, r *http.Request) {
	open, active, ev, err := h.deps.Window(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Window{
		RegistrationOpen: open,
		Active:           active,
		Status:           string(ev.Status),
		At:               h.deps.Now(),
	})
}
