package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/penne-app/penne/internal/auth"
)

// handleLeaderboard returns the global hall ranking
func (h *Handlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.Ratings.Leaderboard(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, board)
}

// handleHallsRanked returns the ranking with the caller's own scores in
// place of the means. Anonymous callers get the plain leaderboard.
func (h *Handlers) handleHallsRanked(w http.ResponseWriter, r *http.Request) {
	listing, err := h.Ratings.HallListing(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, listing)
}

// handleSubmitRating stores the caller's score for a hall. It answers only
// after the store has accepted the write.
func (h *Handlers) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	var req RatingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	rating, err := h.Ratings.SubmitRating(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "name"), req.Score)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, RatingResponse{Rating: rating})
}

// handleGetRating returns the caller's score for a hall, or null
func (h *Handlers) handleGetRating(w http.ResponseWriter, r *http.Request) {
	rating, err := h.Ratings.GetUserRating(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, RatingResponse{Rating: rating})
}
