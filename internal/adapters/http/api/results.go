package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/palco/internal/domain/types"
	"github.com/okian/palco/pkg/logger"
)

// ResultsHandler serves rankings, publication and the live board.
type ResultsHandler struct {
	deps Dependencies
	log  logger.Logger
}

// HandleRanking handles GET /events/{id}/ranking. Operators get a fresh
// board unless they ask for ?view=public; everyone else gets the published one.
func (h *ResultsHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	operator := PrincipalFrom(r.Context()).Role == RoleOperator && r.URL.Query().Get("view") != "public"

	board, err := h.deps.Ranking(r.Context(), id, operator)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	published := true
	if operator {
		ev, err := h.deps.GetEvent(r.Context(), id)
		if err != nil {
			fail(r.Context(), h.log, w, err)
			return
		}
		published = ev.ResultsPublished()
	}
	writeJSON(w, http.StatusOK, types.FromBoard(board, published))
}

// HandlePublish handles POST /events/{id}/results/publish. The body is optional.
func (h *ResultsHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var req types.PublishRequest
	if err := decode(w, r, &req, true); err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	_, board, err := h.deps.Publish(r.Context(), r.PathValue("id"), req.Force)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromBoard(board, true))
}

// HandleLive handles GET /events/{id}/live?limit=N.
func (h *ResultsHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(r.Context(), h.log, w, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, raw))
			return
		}
		limit = n
	}
	rows, err := h.deps.Live(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.FromLiveScores(rows))
}
