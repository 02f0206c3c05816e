package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/penne-app/penne/internal/auth"
	"github.com/penne-app/penne/internal/services"
)

func (h *Handlers) handleGetMyProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Profiles.GetProfile(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, profile)
}

func (h *Handlers) handleUpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	profile, err := h.Profiles.UpdateProfile(r.Context(), auth.UserID(r.Context()), services.ProfileUpdate{
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, profile)
}

func (h *Handlers) handleChangeUsername(w http.ResponseWriter, r *http.Request) {
	var req UsernameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	profile, err := h.Profiles.ChangeUsername(r.Context(), auth.UserID(r.Context()), req.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, profile)
}

// handleUsernameAvailable is used by the sign-up form
func (h *Handlers) handleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := services.NormalizeUsername(chi.URLParam(r, "username"))
	ok, err := h.Profiles.UsernameAvailable(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, UsernameAvailableResponse{Username: username, Available: ok})
}

// handleProfileQR serves the PNG a friend scans to add the user
func (h *Handlers) handleProfileQR(w http.ResponseWriter, r *http.Request) {
	png, err := h.Profiles.ProfileQR(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	respondBytes(w, "image/png", png)
}
