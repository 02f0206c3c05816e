package services

import (
	"context"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/ranking"
	"github.com/penne-app/penne/internal/remote"
)

// Broadcaster pushes leaderboard changes to connected clients
type Broadcaster interface {
	BroadcastLeaderboard(rankings []models.AggregatedRanking)
}

// RatingService handles hall ratings and the leaderboard built from them
type RatingService struct {
	log         logger.Logger
	store       remote.Store
	halls       HallServicer
	broadcaster Broadcaster
}

// NewRatingService creates a new RatingService
func NewRatingService(log logger.Logger, store remote.Store, halls HallServicer) *RatingService {
	return &RatingService{
		log:   log,
		store: store,
		halls: halls,
	}
}

// SetBroadcaster sets the broadcaster notified after a rating is stored
func (s *RatingService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SubmitRating stores userID's score for a hall, replacing any earlier score.
// It returns only after the store has confirmed the write.
func (s *RatingService) SubmitRating(ctx context.Context, userID, hall string, score int) (*models.Rating, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	if score < models.MinScore || score > models.MaxScore {
		return nil, ErrScoreOutOfRange
	}
	exists, err := s.halls.HallExists(ctx, hall)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrHallNotFound
	}

	rating := models.Rating{UserID: userID, DiningHallName: hall, Score: score}
	if err := s.store.Upsert(ctx, remote.RelHallRatings, remote.RatingRecord(rating), []string{"user_id", "dining_hall_name"}); err != nil {
		s.log.Error("Failed to submit rating", "user_id", userID, "hall", hall, "error", err)
		return nil, err
	}
	s.log.Info("Rating submitted", "user_id", userID, "hall", hall, "score", score)

	if s.broadcaster != nil {
		if board, err := s.Leaderboard(ctx); err != nil {
			s.log.Warn("Leaderboard refresh after rating failed", "error", err)
		} else {
			s.broadcaster.BroadcastLeaderboard(board)
		}
	}
	return &rating, nil
}

// GetUserRating returns userID's rating for a hall, or nil if there is none
func (s *RatingService) GetUserRating(ctx context.Context, userID, hall string) (*models.Rating, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	rows, err := s.store.Select(ctx, remote.From(remote.RelHallRatings).
		Eq("user_id", userID).
		Eq("dining_hall_name", hall).
		LimitTo(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := remote.RatingFromRecord(rows[0])
	return &r, nil
}

// Leaderboard ranks every hall by the mean of all ratings
func (s *RatingService) Leaderboard(ctx context.Context) ([]models.AggregatedRanking, error) {
	ratings, names, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.AggregateAndRank(ratings, names), nil
}

// HallListing ranks every hall as userID sees it: halls the user rated show
// the user's own score. An anonymous viewer gets the plain leaderboard.
func (s *RatingService) HallListing(ctx context.Context, userID string) ([]models.AggregatedRanking, error) {
	ratings, names, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return ranking.AggregateAndRank(ratings, names), nil
	}
	return ranking.Personalized(ratings, names, userID), nil
}

func (s *RatingService) load(ctx context.Context) ([]models.Rating, []string, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelHallRatings).Select("user_id", "dining_hall_name", "score"))
	if err != nil {
		return nil, nil, err
	}
	ratings := make([]models.Rating, 0, len(rows))
	for _, row := range rows {
		ratings = append(ratings, remote.RatingFromRecord(row))
	}
	names, err := s.halls.HallNames(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ratings, names, nil
}
