package models

import "time"

// Score bounds for a dining hall rating
const (
	MinScore = 1
	MaxScore = 10
)

// DiningHall is a campus dining hall
type DiningHall struct {
	Name           string           `json:"name" yaml:"name"`
	OperatingHours map[string]Hours `json:"operating_hours" yaml:"operating_hours"` // lower-case weekday -> hours
}

// Hours is an open/close pair in 24h "HH:MM" form
type Hours struct {
	Open  string `json:"open" yaml:"open"`
	Close string `json:"close" yaml:"close"`
}

// Rating is one user's score for one dining hall
type Rating struct {
	DiningHallName string `json:"dining_hall_name"`
	UserID         string `json:"user_id"`
	Score          int    `json:"score"`
}

// AggregatedRanking is a derived leaderboard row
type AggregatedRanking struct {
	DiningHallName string  `json:"dining_hall_name"`
	MeanScore      float64 `json:"average_score"`
	Count          int     `json:"count"`
	Rank           int     `json:"rank"`
	Personal       bool    `json:"personal,omitempty"` // score is the viewer's own rating
}

// Dish is a row of the menus relation
type Dish struct {
	ID             int64     `json:"id"`
	Dish           string    `json:"dish"`
	Upvotes        int       `json:"dish_upvote"`
	Downvotes      int       `json:"dish_downvote"`
	MealType       string    `json:"meal_type"`
	Station        string    `json:"station"`
	DiningHallName string    `json:"dining_hall_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Counter returns the dish's vote tally
func (d Dish) Counter() DishVoteCounter {
	return DishVoteCounter{DishID: d.ID, Upvotes: d.Upvotes, Downvotes: d.Downvotes}
}

// DishVoteCounter is the aggregate tally for one dish
type DishVoteCounter struct {
	DishID    int64 `json:"dish_id"`
	Upvotes   int   `json:"upvotes"`
	Downvotes int   `json:"downvotes"`
}

// UserDishVote is one user's ledger row for one dish
type UserDishVote struct {
	DishID    int64  `json:"dish_id"`
	UserID    string `json:"user_id"`
	Upvoted   bool   `json:"upvote"`
	Downvoted bool   `json:"downvote"`
}

// State converts the boolean pair to a VoteState. An invalid pair with both
// flags set is read as None.
func (v UserDishVote) State() VoteState {
	switch {
	case v.Upvoted && !v.Downvoted:
		return VoteUpvoted
	case v.Downvoted && !v.Upvoted:
		return VoteDownvoted
	default:
		return VoteNone
	}
}

// VoteState is the per (user, dish) vote state
type VoteState int

const (
	VoteNone VoteState = iota
	VoteUpvoted
	VoteDownvoted
)

func (s VoteState) String() string {
	switch s {
	case VoteUpvoted:
		return "upvoted"
	case VoteDownvoted:
		return "downvoted"
	default:
		return "none"
	}
}

// Flags returns the ledger boolean pair for the state
func (s VoteState) Flags() (upvoted, downvoted bool) {
	return s == VoteUpvoted, s == VoteDownvoted
}

// Profile is a user's public profile
type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Comment is a post on the dining hall feed
type Comment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	DiningHallName string    `json:"dining_hall_name"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Author         *Profile  `json:"profiles,omitempty"`
}

// Friendship is a directed follow edge
type Friendship struct {
	UserID    string    `json:"user_id"`
	FriendID  string    `json:"friend_id"`
	CreatedAt time.Time `json:"created_at"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
