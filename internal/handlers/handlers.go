package handlers

import (
	"github.com/penne-app/penne/internal/auth"
	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/services"
	"github.com/penne-app/penne/internal/websocket"
)

// Services groups the service dependencies of the HTTP layer
type Services struct {
	Halls    services.HallServicer
	Ratings  services.RatingServicer
	Menu     services.MenuServicer
	Votes    services.VoteServicer
	Feed     services.FeedServicer
	Profiles services.ProfileServicer
	Friends  services.FriendServicer
	Avatars  services.AvatarServicer
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Services
	Auth *auth.Auth
	Hub  *websocket.Hub
	Log  logger.Logger
}

// New creates a new Handlers instance with all dependencies. Avatars may be
// nil, in which case the avatar route answers 404.
func New(svc Services, authn *auth.Auth, hub *websocket.Hub, log logger.Logger) *Handlers {
	return &Handlers{
		Services: svc,
		Auth:     authn,
		Hub:      hub,
		Log:      log,
	}
}
