package handlers

import (
	"net/http"
	"strings"

	"github.com/penne-app/penne/internal/auth"
)

// handleListFeed returns the newest comments, optionally for one hall
func (h *Handlers) handleListFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, err)
		return
	}

	comments, err := h.Feed.ListComments(r.Context(), strings.TrimSpace(r.URL.Query().Get("hall")), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, comments)
}

// handlePostComment adds a comment as the caller
func (h *Handlers) handlePostComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	comment, err := h.Feed.PostComment(r.Context(), auth.UserID(r.Context()), req.DiningHallName, req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, comment)
}
