package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/penne-app/penne/internal/errors"
	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
)

// ProfileLinkPrefix starts the link encoded in a profile QR code
const ProfileLinkPrefix = "penne://profile/"

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// ProfileService manages user profiles
type ProfileService struct {
	log   logger.Logger
	store remote.Store
}

// NewProfileService creates a new ProfileService
func NewProfileService(log logger.Logger, store remote.Store) *ProfileService {
	return &ProfileService{log: log, store: store}
}

// ProfileUpdate holds the editable profile fields. Nil fields are left as
// they are.
type ProfileUpdate struct {
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// NormalizeUsername lower-cases and trims a username
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidUsername reports whether a normalized username is acceptable
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// GetProfile returns a user's profile
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	return s.findOne(ctx, "id", userID)
}

// GetProfileByUsername returns the profile with this username
func (s *ProfileService) GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return s.findOne(ctx, "username", NormalizeUsername(username))
}

func (s *ProfileService) findOne(ctx context.Context, column, value string) (*models.Profile, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelProfiles).Eq(column, value).LimitTo(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrUserNotFound
	}
	p := remote.ProfileFromRecord(rows[0])
	return &p, nil
}

// UpdateProfile creates or updates the caller's profile
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	row := remote.Record{"id": userID}
	if update.FullName != nil {
		row["full_name"] = strings.TrimSpace(*update.FullName)
	}
	if update.AvatarURL != nil {
		row["avatar_url"] = strings.TrimSpace(*update.AvatarURL)
	}
	if err := s.store.Upsert(ctx, remote.RelProfiles, row, []string{"id"}); err != nil {
		s.log.Error("Failed to update profile", "user_id", userID, "error", err)
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

// UsernameAvailable reports whether nobody holds username, ignoring case
func (s *ProfileService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = NormalizeUsername(username)
	if !ValidUsername(username) {
		return false, ErrInvalidUsername
	}
	owner, err := s.usernameOwner(ctx, username)
	if err != nil {
		return false, err
	}
	return owner == "", nil
}

func (s *ProfileService) usernameOwner(ctx context.Context, username string) (string, error) {
	rows, err := s.store.Select(ctx, remote.From(remote.RelProfiles).Select("id").Eq("username", username).LimitTo(1))
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].String("id"), nil
}

// ChangeUsername sets the caller's username. Usernames are stored lower-case.
func (s *ProfileService) ChangeUsername(ctx context.Context, userID, username string) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrNotSignedIn
	}
	username = NormalizeUsername(username)
	if !ValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	owner, err := s.usernameOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	if owner != "" && owner != userID {
		return nil, ErrUsernameTaken
	}

	err = s.store.Upsert(ctx, remote.RelProfiles, remote.Record{"id": userID, "username": username}, []string{"id"})
	if errors.IsKind(err, errors.ErrConflict) {
		// lost a race with another claim
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("Username changed", "user_id", userID, "username", username)
	return s.GetProfile(ctx, userID)
}

// ProfileQR renders a PNG QR code that links to a user's profile, for adding
// friends in person
func (s *ProfileService) ProfileQR(ctx context.Context, username string) ([]byte, error) {
	p, err := s.GetProfileByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if p.Username == "" {
		return nil, ErrNoUsername
	}
	return qrcode.Encode(ProfileLinkPrefix+p.Username, qrcode.Medium, 256)
}
