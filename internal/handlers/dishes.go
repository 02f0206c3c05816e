package handlers

import (
	"net/http"
	"strings"

	"github.com/penne-app/penne/internal/auth"
	"github.com/penne-app/penne/internal/votes"
)

func (h *Handlers) handleUpvote(w http.ResponseWriter, r *http.Request) {
	h.toggleVote(w, r, votes.TapUpvote)
}

func (h *Handlers) handleDownvote(w http.ResponseWriter, r *http.Request) {
	h.toggleVote(w, r, votes.TapDownvote)
}

// toggleVote applies a tap and answers with the optimistic state without
// waiting for the store. Anonymous taps answer 200 with skipped set.
func (h *Handlers) toggleVote(w http.ResponseWriter, r *http.Request, tap votes.Tap) {
	dishID, err := parseIDParam(r, "id")
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.Votes.Toggle(r.Context(), auth.UserID(r.Context()), dishID, tap)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, result)
}

// handleMyVotes reloads a hall's counters and the caller's votes
func (h *Handlers) handleMyVotes(w http.ResponseWriter, r *http.Request) {
	hall := strings.TrimSpace(r.URL.Query().Get("hall"))
	if hall == "" {
		respondError(w, BadRequest("Missing hall parameter"))
		return
	}

	snap, err := h.Votes.Refresh(r.Context(), auth.UserID(r.Context()), hall)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, snap)
}
