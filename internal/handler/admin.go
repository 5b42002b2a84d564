package handler

import (
	"net/http"
)

// ForcePrune triggers an eviction pass directly, independent of the timer
// and of current storage pressure.
func (h *Handler) ForcePrune(w http.ResponseWriter, r *http.Request) {
	pruned, err := h.pruner.ForcePrune(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"threads_pruned": pruned})
}

func (h *Handler) PruneStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.pruner.LastSweepStats())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
