package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleAvatar serves avatar bytes from the cache
func (h *Handlers) handleAvatar(w http.ResponseWriter, r *http.Request) {
	if h.Avatars == nil {
		respondError(w, NotFound("Avatar storage is not configured"))
		return
	}

	data, err := h.Avatars.Get(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=600")
	respondBytes(w, http.DetectContentType(data), data)
}
