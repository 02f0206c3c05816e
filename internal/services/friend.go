package services

import (
	"context"
	"sort"
	"strings"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
)

// SearchLimit caps the results of a friend search
const SearchLimit = 20

// FriendService manages the friends list
type FriendService struct {
	log   logger.Logger
	store remote.Store
}

// NewFriendService creates a new FriendService
func NewFriendService(log logger.Logger, store remote.Store) *FriendService {
	return &FriendService{log: log, store: store}
}

// FriendCandidate is a search hit and whether the searcher already follows it
type FriendCandidate struct {
	models.Profile
	IsFriend bool `json:"is_friend"`
}

// Search finds users whose username contains term, excluding the searcher
func (s *FriendService) Search(ctx context.Context, userID, term string) ([]FriendCandidate, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []FriendCandidate{}, nil
	}
	q := remote.From(remote.RelProfiles).
		Select("id", "username", "full_name", "avatar_url").
		ILike("username", "%"+term+"%")
	if userID != "" {
		q = q.Neq("id", userID)
	}
	rows, err := s.store.Select(ctx, q.OrderBy("username", false).LimitTo(SearchLimit))
	if err != nil {
		return nil, err
	}

	following := map[string]bool{}
	if userID != "" && len(rows) > 0 {
		if following, err = s.followedIDs(ctx, userID); err != nil {
			return nil, err
		}
	}
	out := make([]FriendCandidate, 0, len(rows))
	for _, row := range rows {
		p := remote.ProfileFromRecord(row)
		out = append(out, FriendCandidate{Profile: p, IsFriend: following[p.ID]})
	}
	return out, nil
}

// AddFriend makes userID follow friendID. Adding an existing friend is a no-op.
func (s *FriendService) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == "" {
		return ErrNotSignedIn
	}
	if userID == friendID {
		return ErrSelfFriend
	}
	rows, err := s.store.Select(ctx, remote.From(remote.RelProfiles).Select("id").Eq("id", friendID).LimitTo(1))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrUserNotFound
	}
	row := remote.Record{"user_id": userID, "friend_id": friendID}
	if err := s.store.Upsert(ctx, remote.RelFriends, row, []string{"user_id", "friend_id"}); err != nil {
		s.log.Error("Failed to add friend", "user_id", userID, "friend_id", friendID, "error", err)
		return err
	}
	s.log.Info("Friend added", "user_id", userID, "friend_id", friendID)
	return nil
}

// RemoveFriend stops userID following friendID and reports whether a
// friendship existed
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID string) (bool, error) {
	if userID == "" {
		return false, ErrNotSignedIn
	}
	n, err := s.store.Delete(ctx, remote.From(remote.RelFriends).Eq("user_id", userID).Eq("friend_id", friendID))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFriends returns the profiles userID follows, ordered by username
func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]models.Profile, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	following, err := s.followedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(following) == 0 {
		return []models.Profile{}, nil
	}
	ids := make([]string, 0, len(following))
	for id := range following {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows, err := s.store.Select(ctx, remote.From(remote.RelProfiles).
		Select("id", "username", "full_name", "avatar_url").
		In("id", remote.Strings(ids)...).
		OrderBy("username", false))
	if err != nil {
		return nil, err
	}
	out := make([]models.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, remote.ProfileFromRecord(row))
	}
	return out, nil
}

func (s *FriendService) followedIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelFriends).Select("friend_id").Eq("user_id", userID))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(rows))
	for _, row := range rows {
		ids[row.String("friend_id")] = true
	}
	return ids, nil
}
