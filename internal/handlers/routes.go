package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/penne-app/penne/internal/auth"
	"github.com/penne-app/penne/internal/remote"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// forwardToken passes the caller's access token on to the remote store so
// row-level policies see the same user
func forwardToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.FromContext(r.Context()); ok && id.Token != "" {
			r = r.WithContext(remote.WithAccessToken(r.Context(), id.Token))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.Hub != nil {
		resp.WSClients = h.Hub.ClientCount()
	}
	if h.Avatars != nil {
		stats := h.Avatars.Stats()
		resp.Avatars = &stats
	}
	respondOK(w, resp)
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	r.Get("/healthz", h.handleHealth)

	// WebSocket (long-lived, outside the request timeout)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		// Public, identity attached when a token is sent
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Optional)
			r.Use(forwardToken)

			r.Get("/halls", h.handleListHalls)
			r.Get("/halls/{name}", h.handleGetHall)
			r.Get("/halls/{name}/menu", h.handleGetMenu)
			r.Get("/leaderboard", h.handleLeaderboard)
			r.Get("/halls-ranked", h.handleHallsRanked)

			// Anonymous taps are answered as skipped
			r.Post("/dishes/{id}/upvote", h.handleUpvote)
			r.Post("/dishes/{id}/downvote", h.handleDownvote)
			r.Get("/me/votes", h.handleMyVotes)

			r.Get("/feed", h.handleListFeed)
			r.Get("/usernames/{username}/available", h.handleUsernameAvailable)
			r.Get("/profiles/{username}/qr", h.handleProfileQR)
			r.Get("/avatars/*", h.handleAvatar)
		})

		// Signed-in users only
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Required)
			r.Use(forwardToken)

			r.Post("/halls/{name}/rating", h.handleSubmitRating)
			r.Get("/halls/{name}/rating", h.handleGetRating)

			r.Post("/feed", h.handlePostComment)

			r.Get("/me/profile", h.handleGetMyProfile)
			r.Put("/me/profile", h.handleUpdateMyProfile)
			r.Put("/me/username", h.handleChangeUsername)

			r.Get("/friends", h.handleListFriends)
			r.Get("/friends/search", h.handleSearchFriends)
			r.Post("/friends/{id}", h.handleAddFriend)
			r.Delete("/friends/{id}", h.handleRemoveFriend)
		})
	})

	return r
}
