package api

import (
	"fmt"
	"net/http"

	"github.com/okian/palco/internal/domain/types"
	"github.com/okian/palco/pkg/logger"
)

// EvaluationsHandler serves judge submissions and progress.
type EvaluationsHandler struct {
	deps Dependencies
	log  logger.Logger
}

// HandleSubmit handles POST /events/{id}/evaluations. Judges may only
// submit under their own subject. A new record answers 201, a replacement 200.
func (h *EvaluationsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.EvaluationRequest
	if err := decode(w, r, &req, false); err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	if p := PrincipalFrom(r.Context()); p.Role == RoleJudge && p.Subject != req.JudgeID {
		fail(r.Context(), h.log, w, fmt.Errorf("%w: judge %s cannot submit as %s", ErrForbidden, p.Subject, req.JudgeID))
		return
	}

	rec, err := h.deps.Submit(r.Context(), req.Submission(r.PathValue("id")))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	status := http.StatusCreated
	if rec.Revision > 1 {
		status = http.StatusOK
	}
	writeJSON(w, status, types.FromRecord(rec))
}

// HandleList handles GET /events/{id}/participants/{pid}/evaluations.
func (h *EvaluationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.deps.ListForParticipant(r.Context(), r.PathValue("id"), r.PathValue("pid"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromRecords(recs))
}

// HandleAvailableJudges handles GET /events/{id}/participants/{pid}/available-judges.
func (h *EvaluationsHandler) HandleAvailableJudges(w http.ResponseWriter, r *http.Request) {
	js, err := h.deps.ListAvailableJudges(r.Context(), r.PathValue("id"), r.PathValue("pid"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromJudges(js))
}

// HandleProgress handles GET /events/{id}/progress.
func (h *EvaluationsHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromSnapshot(snap))
}
