package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/penne-app/penne/internal/auth"
)

func (h *Handlers) handleListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.Friends.ListFriends(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, friends)
}

func (h *Handlers) handleSearchFriends(w http.ResponseWriter, r *http.Request) {
	hits, err := h.Friends.Search(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, hits)
}

func (h *Handlers) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "id")
	if err := h.Friends.AddFriend(r.Context(), auth.UserID(r.Context()), friendID); err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, FriendResponse{FriendID: friendID})
}

func (h *Handlers) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	friendID := chi.URLParam(r, "id")
	removed, err := h.Friends.RemoveFriend(r.Context(), auth.UserID(r.Context()), friendID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !removed {
		respondError(w, NotFound("Not following "+friendID))
		return
	}
	respondDeleted(w)
}
