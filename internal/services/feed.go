package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
)

const (
	// MaxCommentLength is the longest comment accepted, in characters
	MaxCommentLength = 280
	// DefaultFeedLimit caps the feed when the caller gives no limit
	DefaultFeedLimit = 50
	maxFeedLimit     = 200
)

// unknownAuthor stands in for a comment whose author has no profile
var unknownAuthor = models.Profile{Username: "unknown", FullName: "Unknown User"}

// FeedService handles the dining hall comment feed
type FeedService struct {
	log   logger.Logger
	store remote.Store
	halls HallServicer
}

// NewFeedService creates a new FeedService
func NewFeedService(log logger.Logger, store remote.Store, halls HallServicer) *FeedService {
	return &FeedService{log: log, store: store, halls: halls}
}

// ListComments returns the newest comments first, optionally for one hall,
// with their authors attached
func (s *FeedService) ListComments(ctx context.Context, hall string, limit int) ([]models.Comment, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	q := remote.From(remote.RelComments)
	if hall != "" {
		q = q.Eq("dining_hall_name", hall)
	}
	rows, err := s.store.Select(ctx, q.OrderBy("created_at", true).LimitTo(limit))
	if err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(rows))
	var authorIDs []string
	seen := make(map[string]bool)
	for _, row := range rows {
		c := remote.CommentFromRecord(row)
		comments = append(comments, c)
		if !seen[c.UserID] {
			seen[c.UserID] = true
			authorIDs = append(authorIDs, c.UserID)
		}
	}
	if len(authorIDs) == 0 {
		return comments, nil
	}

	profiles, err := s.store.Select(ctx, remote.From(remote.RelProfiles).
		Select("id", "username", "full_name", "avatar_url").
		In("id", remote.Strings(authorIDs)...))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Profile, len(profiles))
	for _, row := range profiles {
		p := remote.ProfileFromRecord(row)
		byID[p.ID] = p
	}
	for i := range comments {
		author, ok := byID[comments[i].UserID]
		if !ok {
			author = unknownAuthor
		}
		comments[i].Author = &author
	}
	return comments, nil
}

// PostComment adds a comment to a hall's feed
func (s *FeedService) PostComment(ctx context.Context, userID, hall, content string) (*models.Comment, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}
	exists, err := s.halls.HallExists(ctx, hall)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrHallNotFound
	}

	row, err := s.store.Insert(ctx, remote.RelComments, remote.Record{
		"user_id":          userID,
		"dining_hall_name": hall,
		"content":          content,
	})
	if err != nil {
		s.log.Error("Failed to post comment", "user_id", userID, "hall", hall, "error", err)
		return nil, err
	}
	c := remote.CommentFromRecord(row)
	s.log.Info("Comment posted", "id", c.ID, "user_id", userID, "hall", hall)
	return &c, nil
}
