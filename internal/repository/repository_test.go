package repository

import (
	"context"
	"testing"
	"time"

	"github.com/penne-app/penne/internal/errors"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
)

// newTestRepo creates a new in-memory repository for testing.
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func insertDish(t *testing.T, repo *Repository, hall, meal, station, name string) int64 {
	t.Helper()
	rec, err := repo.Insert(context.Background(), remote.RelMenus, remote.DishRecord(models.Dish{
		Dish: name, MealType: meal, Station: station, DiningHallName: hall,
	}))
	if err != nil {
		t.Fatalf("Insert dish failed: %v", err)
	}
	id := rec.Int64("id")
	if id == 0 {
		t.Fatalf("expected generated id, got %v", rec)
	}
	return id
}

func readDish(t *testing.T, repo *Repository, id int64) models.Dish {
	t.Helper()
	rows, err := repo.Select(context.Background(), remote.From(remote.RelMenus).Eq("id", id))
	if err != nil {
		t.Fatalf("Select dish failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	return remote.DishFromRecord(rows[0])
}

// ==================== Migration Tests ====================

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

// ==================== Rating Tests ====================

func TestUpsert_RatingOverwritesSameUserAndHall(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	conflict := []string{"user_id", "dining_hall_name"}

	for _, score := range []int{4, 9} {
		row := remote.RatingRecord(models.Rating{UserID: "u1", DiningHallName: "Covel", Score: score})
		if err := repo.Upsert(ctx, remote.RelHallRatings, row, conflict); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	rows, err := repo.Select(ctx, remote.From(remote.RelHallRatings).Eq("user_id", "u1"))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one rating row, got %d", len(rows))
	}
	if got := rows[0].Int("score"); got != 9 {
		t.Errorf("expected score 9, got %d", got)
	}
}

func TestUpsert_RatingOutOfRangeRejected(t *testing.T) {
	repo := newTestRepo(t)
	row := remote.RatingRecord(models.Rating{UserID: "u1", DiningHallName: "Covel", Score: 11})
	err := repo.Upsert(context.Background(), remote.RelHallRatings, row, []string{"user_id", "dining_hall_name"})
	if !errors.IsKind(err, errors.ErrValidation) {
		t.Errorf("expected validation error from check constraint, got %v", err)
	}
}

func TestUpsert_Validation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		relation string
		row      remote.Record
		conflict []string
	}{
		{"unknown relation", "users", remote.Record{"id": 1}, []string{"id"}},
		{"unknown column", remote.RelProfiles, remote.Record{"id": "a", "password": "x"}, []string{"id"}},
		{"no conflict columns", remote.RelProfiles, remote.Record{"id": "a"}, nil},
		{"key not in row", remote.RelProfiles, remote.Record{"full_name": "A"}, []string{"id"}},
		{"empty row", remote.RelProfiles, remote.Record{}, []string{"id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Upsert(ctx, tt.relation, tt.row, tt.conflict)
			if !errors.IsKind(err, errors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

// ==================== Query Tests ====================

func TestSelect_FiltersOrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertDish(t, repo, "Covel", "lunch", "Grill", "Burger")
	insertDish(t, repo, "Covel", "lunch", "Bakery", "Croissant")
	insertDish(t, repo, "Covel", "dinner", "Grill", "Steak")
	insertDish(t, repo, "BPlate", "lunch", "Salad", "Kale Bowl")

	rows, err := repo.Select(ctx, remote.From(remote.RelMenus).
		Select("dish", "station").
		Eq("dining_hall_name", "Covel").
		Eq("meal_type", "lunch").
		OrderBy("station", false))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].String("dish") != "Croissant" || rows[1].String("dish") != "Burger" {
		t.Errorf("unexpected order: %v", rows)
	}
	if rows[0].Has("id") {
		t.Error("expected only selected columns")
	}

	rows, err = repo.Select(ctx, remote.From(remote.RelMenus).OrderBy("dish", true).LimitTo(1))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 1 || rows[0].String("dish") != "Steak" {
		t.Errorf("expected Steak first, got %v", rows)
	}
}

func TestSelect_InAndILike(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, p := range []models.Profile{
		{ID: "a", Username: "GrillMaster"},
		{ID: "b", Username: "grillfan"},
		{ID: "c", Username: "saladlover"},
	} {
		if err := repo.Upsert(ctx, remote.RelProfiles, remote.ProfileRecord(p), []string{"id"}); err != nil {
			t.Fatalf("Upsert profile failed: %v", err)
		}
	}

	rows, err := repo.Select(ctx, remote.From(remote.RelProfiles).ILike("username", "%GRILL%").OrderBy("id", false))
	if err != nil {
		t.Fatalf("Select ilike failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 ilike matches, got %d", len(rows))
	}

	rows, err = repo.Select(ctx, remote.From(remote.RelProfiles).In("id", remote.Strings([]string{"a", "c", "zzz"})...))
	if err != nil {
		t.Fatalf("Select in failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 in matches, got %d", len(rows))
	}

	rows, err = repo.Select(ctx, remote.From(remote.RelProfiles).In("id"))
	if err != nil {
		t.Fatalf("Select empty in failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows for empty in, got %d", len(rows))
	}
}

func TestSelect_RejectsUnknownIdentifiers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	queries := []remote.Query{
		remote.From("sqlite_master"),
		remote.From(remote.RelMenus).Select("dish; DROP TABLE menus"),
		remote.From(remote.RelMenus).Eq("1=1 OR id", 1),
		remote.From(remote.RelMenus).OrderBy("random()", false),
	}
	for _, q := range queries {
		if _, err := repo.Select(ctx, q); !errors.IsKind(err, errors.ErrValidation) {
			t.Errorf("expected validation error for %v, got %v", q, err)
		}
	}
}

// ==================== Insert / Delete Tests ====================

func TestInsert_CommentGetsIDAndTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	fixed := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	rec, err := repo.Insert(context.Background(), remote.RelComments, remote.Record{
		"user_id":          "u1",
		"dining_hall_name": "Covel",
		"content":          "great pasta",
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	c := remote.CommentFromRecord(rec)
	if len(c.ID) != 36 {
		t.Errorf("expected uuid id, got %q", c.ID)
	}
	if !c.CreatedAt.Equal(fixed) {
		t.Errorf("expected created_at %v, got %v", fixed, c.CreatedAt)
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, f := range []string{"b", "c"} {
		_, err := repo.Insert(ctx, remote.RelFriends, remote.Record{"user_id": "a", "friend_id": f})
		if err != nil {
			t.Fatalf("Insert friend failed: %v", err)
		}
	}

	n, err := repo.Delete(ctx, remote.From(remote.RelFriends).Eq("user_id", "a").Eq("friend_id", "b"))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted row, got %d", n)
	}

	if _, err := repo.Delete(ctx, remote.From(remote.RelFriends)); !errors.IsKind(err, errors.ErrValidation) {
		t.Errorf("expected validation error for unfiltered delete, got %v", err)
	}
}

func TestInsert_DuplicateIsConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	row := remote.Record{"user_id": "a", "friend_id": "b"}

	if _, err := repo.Insert(ctx, remote.RelFriends, row); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	if _, err := repo.Insert(ctx, remote.RelFriends, row); !errors.IsKind(err, errors.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestProfiles_UsernameUniqueIgnoringCase(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, remote.RelProfiles, remote.Record{"id": "a", "username": "bruin"}, []string{"id"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	err := repo.Upsert(ctx, remote.RelProfiles, remote.Record{"id": "b", "username": "BRUIN"}, []string{"id"})
	if !errors.IsKind(err, errors.ErrConflict) {
		t.Errorf("expected conflict for duplicate username, got %v", err)
	}
}

// ==================== Dish Vote Tests ====================

func TestCall_CounterRPCs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := insertDish(t, repo, "Covel", "lunch", "Grill", "Burger")
	args := remote.Record{"dish_id": id}

	for _, fn := range []string{remote.RPCIncrementUpvote, remote.RPCIncrementUpvote, remote.RPCIncrementDownvote, remote.RPCDecrementUpvote} {
		if err := repo.Call(ctx, fn, args); err != nil {
			t.Fatalf("%s failed: %v", fn, err)
		}
	}

	d := readDish(t, repo, id)
	if d.Upvotes != 1 || d.Downvotes != 1 {
		t.Errorf("expected 1/1, got %d/%d", d.Upvotes, d.Downvotes)
	}
}

func TestCall_DecrementStopsAtZero(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := insertDish(t, repo, "Covel", "lunch", "Grill", "Burger")

	for i := 0; i < 3; i++ {
		if err := repo.Call(ctx, remote.RPCDecrementDownvote, remote.Record{"dish_id": id}); err != nil {
			t.Fatalf("decrement failed: %v", err)
		}
	}
	if d := readDish(t, repo, id); d.Downvotes != 0 {
		t.Errorf("expected downvotes to stay at 0, got %d", d.Downvotes)
	}
}

func TestCall_Errors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Call(ctx, "drop_everything", remote.Record{"dish_id": 1}); !errors.IsKind(err, errors.ErrValidation) {
		t.Errorf("expected validation error for unknown rpc, got %v", err)
	}
	if err := repo.Call(ctx, remote.RPCIncrementUpvote, remote.Record{}); !errors.IsKind(err, errors.ErrValidation) {
		t.Errorf("expected validation error for missing dish_id, got %v", err)
	}
	if err := repo.Call(ctx, remote.RPCIncrementUpvote, remote.Record{"dish_id": 999}); !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected not found for missing dish, got %v", err)
	}
}

func TestDishRatings_UpsertAndRead(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := insertDish(t, repo, "Covel", "lunch", "Grill", "Burger")
	conflict := []string{"dish_id", "user_id"}

	up := models.UserDishVote{DishID: id, UserID: "u1", Upvoted: true}
	if err := repo.Upsert(ctx, remote.RelDishRatings, remote.UserVoteRecord(up), conflict); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	down := models.UserDishVote{DishID: id, UserID: "u1", Downvoted: true}
	if err := repo.Upsert(ctx, remote.RelDishRatings, remote.UserVoteRecord(down), conflict); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rows, err := repo.Select(ctx, remote.From(remote.RelDishRatings).Eq("user_id", "u1"))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(rows))
	}
	if got := remote.UserVoteFromRecord(rows[0]); got != down {
		t.Errorf("got %+v, want %+v", got, down)
	}
}

func TestDishRatings_BothFlagsRejected(t *testing.T) {
	repo := newTestRepo(t)
	id := insertDish(t, repo, "Covel", "lunch", "Grill", "Burger")
	row := remote.UserVoteRecord(models.UserDishVote{DishID: id, UserID: "u1", Upvoted: true, Downvoted: true})
	err := repo.Upsert(context.Background(), remote.RelDishRatings, row, []string{"dish_id", "user_id"})
	if !errors.IsKind(err, errors.ErrValidation) {
		t.Errorf("expected check violation, got %v", err)
	}
}

func TestDishRatings_UnknownDish(t *testing.T) {
	repo := newTestRepo(t)
	row := remote.UserVoteRecord(models.UserDishVote{DishID: 404, UserID: "u1", Upvoted: true})
	err := repo.Upsert(context.Background(), remote.RelDishRatings, row, []string{"dish_id", "user_id"})
	if !errors.IsKind(err, errors.ErrNotFound) {
		t.Errorf("expected not found for missing dish, got %v", err)
	}
}

// ==================== Dining Hall Tests ====================

func TestHalls_OperatingHoursRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	hall := models.DiningHall{Name: "De Neve", OperatingHours: map[string]models.Hours{
		"monday": {Open: "07:00", Close: "21:00"},
	}}

	if err := repo.Upsert(ctx, remote.RelHalls, remote.HallRecord(hall), []string{"name"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	rows, err := repo.Select(ctx, remote.From(remote.RelHalls).Eq("name", "De Neve"))
	if err != nil || len(rows) != 1 {
		t.Fatalf("Select failed: %v (%d rows)", err, len(rows))
	}
	got, err := remote.HallFromRecord(rows[0])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.OperatingHours["monday"] != hall.OperatingHours["monday"] {
		t.Errorf("got %v", got.OperatingHours)
	}
}

func TestDialectPlaceholders(t *testing.T) {
	if sqliteDialect.placeholder(3) != "?" {
		t.Error("sqlite placeholder")
	}
	if postgresDialect.placeholder(3) != "$3" {
		t.Error("postgres placeholder")
	}

	r := &Repository{dialect: postgresDialect}
	q := remote.From(remote.RelMenus).Eq("dining_hall_name", "Covel").In("id", int64(1), int64(2)).ILike("dish", "%a%")
	sql, args, err := r.buildSelect(q)
	if err != nil {
		t.Fatalf("buildSelect failed: %v", err)
	}
	want := "SELECT * FROM menus WHERE dining_hall_name = $1 AND id IN ($2, $3) AND LOWER(dish) LIKE LOWER($4)"
	if sql != want {
		t.Errorf("got  %q\nwant %q", sql, want)
	}
	if len(args) != 4 {
		t.Errorf("expected 4 args, got %d", len(args))
	}
}
