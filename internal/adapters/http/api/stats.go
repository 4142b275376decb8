package api

import (
	"context"
	"net/http"
)

// StatsHandler handles stats requests.
type StatsHandler struct {
	stats func(context.Context) any
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(stats func(context.Context) any) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats(r.Context()))
}
