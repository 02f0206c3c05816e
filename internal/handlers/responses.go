package handlers

import (
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/services"
)

// HealthResponse is the health check body
type HealthResponse struct {
	Status    string                `json:"status"`
	WSClients int                   `json:"ws_clients"`
	Avatars   *services.AvatarStats `json:"avatar_cache,omitempty"`
}

// MenuResponse is a hall's menu for one meal, grouped by station
type MenuResponse struct {
	Hall      string                 `json:"dining_hall_name"`
	MealType  string                 `json:"meal_type,omitempty"`
	MealTypes []string               `json:"meal_types"`
	Stations  []services.StationMenu `json:"stations"`
}

// RatingResponse wraps the caller's rating, which may be absent
type RatingResponse struct {
	Rating *models.Rating `json:"rating"`
}

// UsernameAvailableResponse answers a username availability check
type UsernameAvailableResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// FriendResponse reports the outcome of a friend change
type FriendResponse struct {
	FriendID string `json:"friend_id"`
	Removed  bool   `json:"removed,omitempty"`
}
