package services

import (
	"context"

	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/votes"
)

// HallServicer defines the interface for dining hall operations
type HallServicer interface {
	ListHalls(ctx context.Context) ([]models.DiningHall, error)
	HallNames(ctx context.Context) ([]string, error)
	GetHall(ctx context.Context, name string) (*HallStatus, error)
	HallExists(ctx context.Context, name string) (bool, error)
	SeedHalls(ctx context.Context, data []byte) (int, error)
}

// RatingServicer defines the interface for rating and leaderboard operations
type RatingServicer interface {
	SubmitRating(ctx context.Context, userID, hall string, score int) (*models.Rating, error)
	GetUserRating(ctx context.Context, userID, hall string) (*models.Rating, error)
	Leaderboard(ctx context.Context) ([]models.AggregatedRanking, error)
	HallListing(ctx context.Context, userID string) ([]models.AggregatedRanking, error)
	SetBroadcaster(b Broadcaster)
}

// MenuServicer defines the interface for menu operations
type MenuServicer interface {
	ListMenu(ctx context.Context, hall, mealType string) ([]models.Dish, error)
	GetDish(ctx context.Context, id int64) (*models.Dish, error)
	MealTypes(ctx context.Context, hall string) ([]string, error)
}

// VoteServicer defines the interface for dish vote operations
type VoteServicer interface {
	Toggle(ctx context.Context, userID string, dishID int64, tap votes.Tap) (*VoteResult, error)
	Refresh(ctx context.Context, userID, hall string) (*VoteSnapshot, error)
}

// FeedServicer defines the interface for comment feed operations
type FeedServicer interface {
	ListComments(ctx context.Context, hall string, limit int) ([]models.Comment, error)
	PostComment(ctx context.Context, userID, hall, content string) (*models.Comment, error)
}

// ProfileServicer defines the interface for profile operations
type ProfileServicer interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.Profile, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	ChangeUsername(ctx context.Context, userID, username string) (*models.Profile, error)
	ProfileQR(ctx context.Context, username string) ([]byte, error)
}

// FriendServicer defines the interface for friend operations
type FriendServicer interface {
	Search(ctx context.Context, userID, term string) ([]FriendCandidate, error)
	AddFriend(ctx context.Context, userID, friendID string) error
	RemoveFriend(ctx context.Context, userID, friendID string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]models.Profile, error)
}

// AvatarServicer defines the interface for avatar lookups
type AvatarServicer interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Invalidate(path string)
	Stats() AvatarStats
}

// Ensure concrete types implement interfaces
var (
	_ HallServicer    = (*HallService)(nil)
	_ RatingServicer  = (*RatingService)(nil)
	_ MenuServicer    = (*MenuService)(nil)
	_ VoteServicer    = (*VoteService)(nil)
	_ FeedServicer    = (*FeedService)(nil)
	_ ProfileServicer = (*ProfileService)(nil)
	_ FriendServicer  = (*FriendService)(nil)
	_ AvatarServicer  = (*AvatarCache)(nil)
	_ VoteTracker     = (*votes.Tracker)(nil)
)
