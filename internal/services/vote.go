package services

import (
	"context"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/votes"
)

// VoteTracker is the part of votes.Tracker the service drives
type VoteTracker interface {
	Toggle(ctx context.Context, dishID int64, userID string, tap votes.Tap) *votes.Sync
	LoadUserVotes(ctx context.Context, userID string) (map[int64]models.UserDishVote, error)
	UserLoaded(userID string) bool
	LoadCounters(ctx context.Context, hall string) ([]models.Dish, error)
	SetCounters(dishes []models.Dish)
	Counter(dishID int64) (models.DishVoteCounter, bool)
}

// VoteService applies dish vote taps for the HTTP layer
type VoteService struct {
	log     logger.Logger
	tracker VoteTracker
	menu    MenuServicer
}

// NewVoteService creates a new VoteService
func NewVoteService(log logger.Logger, tracker VoteTracker, menu MenuServicer) *VoteService {
	return &VoteService{log: log, tracker: tracker, menu: menu}
}

// VoteResult is the optimistic outcome of a tap
type VoteResult struct {
	DishID    int64       `json:"dish_id"`
	State     string      `json:"state"`
	Upvotes   int         `json:"upvotes"`
	Downvotes int         `json:"downvotes"`
	Skipped   bool        `json:"skipped,omitempty"`
	Sync      *votes.Sync `json:"-"`
}

// VoteSnapshot is the reconciled view of a hall's dishes for one user
type VoteSnapshot struct {
	Dishes []models.Dish    `json:"dishes"`
	Votes  map[int64]string `json:"votes"`
}

// Toggle applies a tap and returns the optimistic state right away. The
// remote writes continue in the background through the returned Sync. An
// anonymous tap is skipped without touching the store.
func (s *VoteService) Toggle(ctx context.Context, userID string, dishID int64, tap votes.Tap) (*VoteResult, error) {
	if userID == "" {
		return &VoteResult{DishID: dishID, State: models.VoteNone.String(), Skipped: true}, nil
	}

	// The first tap of a user must start from their stored votes.
	if !s.tracker.UserLoaded(userID) {
		if _, err := s.tracker.LoadUserVotes(ctx, userID); err != nil {
			return nil, err
		}
	}
	if _, ok := s.tracker.Counter(dishID); !ok {
		dish, err := s.menu.GetDish(ctx, dishID)
		if err != nil {
			return nil, err
		}
		s.tracker.SetCounters([]models.Dish{*dish})
	}

	sync := s.tracker.Toggle(ctx, dishID, userID, tap)
	s.log.Debug("Dish vote tapped", "dish_id", dishID, "user_id", userID, "tap", tap.String(), "state", sync.State.String())
	return &VoteResult{
		DishID:    dishID,
		State:     sync.State.String(),
		Upvotes:   sync.Counter.Upvotes,
		Downvotes: sync.Counter.Downvotes,
		Sync:      sync,
	}, nil
}

// Refresh reloads a hall's counters and, for a signed-in user, their votes
func (s *VoteService) Refresh(ctx context.Context, userID, hall string) (*VoteSnapshot, error) {
	dishes, err := s.tracker.LoadCounters(ctx, hall)
	if err != nil {
		return nil, err
	}
	snap := &VoteSnapshot{Dishes: dishes, Votes: make(map[int64]string)}
	if userID == "" {
		return snap, nil
	}
	ledger, err := s.tracker.LoadUserVotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, d := range dishes {
		if v, ok := ledger[d.ID]; ok && v.State() != models.VoteNone {
			snap.Votes[d.ID] = v.State().String()
		}
	}
	return snap, nil
}
