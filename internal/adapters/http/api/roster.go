package api

import (
	"net/http"

	"github.com/okian/palco/internal/domain/types"
	"github.com/okian/palco/pkg/logger"
)

// RosterHandler serves participants and judges.
type RosterHandler struct {
	deps Dependencies
	log  logger.Logger
}

// HandleRegister handles POST /events/{id}/participants.
func (h *RosterHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.NameRequest
	if err := decode(w, r, &req, false); err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	p, err := h.deps.Register(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.FromParticipant(p))
}

// HandleApprove handles POST /events/{id}/participants/{pid}/approve.
func (h *RosterHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Approve(r.Context(), r.PathValue("id"), r.PathValue("pid"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromParticipant(p))
}

// HandleListParticipants handles GET /events/{id}/participants.
func (h *RosterHandler) HandleListParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := h.deps.ListParticipants(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	out := make([]types.Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, types.FromParticipant(p))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleAddJudge handles POST /events/{id}/judges.
func (h *RosterHandler) HandleAddJudge(w http.ResponseWriter, r *http.Request) {
	var req types.JudgeRequest
	if err := decode(w, r, &req, false); err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	j, err := h.deps.AddJudge(r.Context(), r.PathValue("id"), req.ID, req.Name)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.FromJudge(j))
}

// HandleListJudges handles GET /events/{id}/judges.
func (h *RosterHandler) HandleListJudges(w http.ResponseWriter, r *http.Request) {
	js, err := h.deps.ListJudges(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromJudges(js))
}
