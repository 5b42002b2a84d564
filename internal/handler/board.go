package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/dn5s/lthread/internal/domain"
)

const defaultPage = 1

type boardResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func (h *Handler) GetBoards(w http.ResponseWriter, r *http.Request) {
	boards := lo.Map(h.board.Boards(), func(b domain.Board, _ int) boardResponse {
		return boardResponse{Name: b.Name, DisplayName: b.DisplayName, Description: b.Description}
	})
	writeJSON(w, map[string]any{"boards": boards})
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board := chi.URLParam(r, "board")

	page := defaultPage
	if pageQuery := r.URL.Query().Get("page"); pageQuery != "" {
		var err error
		if page, err = parseIntParam(pageQuery, "page"); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	list, err := h.board.GetThreadList(r.Context(), board, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, list)
}
