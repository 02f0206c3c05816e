package testutil

import (
	"context"
	"testing"

	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
	"github.com/penne-app/penne/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// SeedHall inserts a dining hall with no operating hours
func SeedHall(t *testing.T, store remote.Store, name string) {
	t.Helper()
	err := store.Upsert(context.Background(), remote.RelHalls, remote.HallRecord(models.DiningHall{Name: name}), []string{"name"})
	if err != nil {
		t.Fatalf("failed to seed hall %q: %v", name, err)
	}
}

// SeedDish inserts a menu row and returns its id
func SeedDish(t *testing.T, store remote.Store, hall, meal, station, dish string) int64 {
	t.Helper()
	rec, err := store.Insert(context.Background(), remote.RelMenus, remote.DishRecord(models.Dish{
		Dish:           dish,
		MealType:       meal,
		Station:        station,
		DiningHallName: hall,
	}))
	if err != nil {
		t.Fatalf("failed to seed dish %q: %v", dish, err)
	}
	return rec.Int64("id")
}

// SeedRating upserts a hall rating
func SeedRating(t *testing.T, store remote.Store, userID, hall string, score int) {
	t.Helper()
	err := store.Upsert(context.Background(), remote.RelHallRatings,
		remote.RatingRecord(models.Rating{UserID: userID, DiningHallName: hall, Score: score}),
		[]string{"user_id", "dining_hall_name"})
	if err != nil {
		t.Fatalf("failed to seed rating: %v", err)
	}
}

// SeedProfile upserts a profile
func SeedProfile(t *testing.T, store remote.Store, id, username, fullName string) {
	t.Helper()
	row := remote.ProfileRecord(models.Profile{ID: id, Username: username, FullName: fullName})
	if username == "" {
		row["username"] = nil
	}
	if err := store.Upsert(context.Background(), remote.RelProfiles, row, []string{"id"}); err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
}

// GetDish reads a menu row back from the store
func GetDish(t *testing.T, store remote.Store, id int64) models.Dish {
	t.Helper()
	rows, err := store.Select(context.Background(), remote.From(remote.RelMenus).Eq("id", id))
	if err != nil {
		t.Fatalf("failed to read dish %d: %v", id, err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 dish row for %d, got %d", id, len(rows))
	}
	return remote.DishFromRecord(rows[0])
}
