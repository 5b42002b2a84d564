package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dn5s/lthread/internal/domain"
	internal_errors "github.com/dn5s/lthread/internal/errors"
)

func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadId, err := parseIdParam(chi.URLParam(r, "thread"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	detail, err := h.board.GetThreadDetail(r.Context(), threadId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, detail)
}

func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	board := chi.URLParam(r, "board")

	data, err := parsePostForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	thread, err := h.board.CreateThread(r.Context(), board, data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, thread)
}

func (h *Handler) CreateReply(w http.ResponseWriter, r *http.Request) {
	threadId, err := parseIdParam(chi.URLParam(r, "thread"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := parsePostForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.board.PostReply(r.Context(), threadId, data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, post)
}

func parsePostForm(r *http.Request) (domain.PostCreationData, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return domain.PostCreationData{}, &internal_errors.ValidationError{Message: "malformed multipart form"}
	}

	data := domain.PostCreationData{
		Text:      r.FormValue("text"),
		NameInput: r.FormValue("name"),
	}

	upload, filename, err := readUpload(r, "image")
	if err != nil {
		return domain.PostCreationData{}, err
	}
	if len(upload) > 0 {
		data.Image = &domain.PendingImage{Filename: filename, Data: upload}
	}
	return data, nil
}
