package services_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/penne-app/penne/internal/errors"
	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
	"github.com/penne-app/penne/internal/remote"
	"github.com/penne-app/penne/internal/repository/mock"
	"github.com/penne-app/penne/internal/services"
	"github.com/penne-app/penne/internal/testutil"
)

type recordingBroadcaster struct {
	boards [][]models.AggregatedRanking
}

func (b *recordingBroadcaster) BroadcastLeaderboard(r []models.AggregatedRanking) {
	b.boards = append(b.boards, r)
}

func setupRatingService(t *testing.T) (*services.RatingService, *mock.Repository) {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	for _, h := range []string{"Covel", "De Neve", "Epicuria"} {
		testutil.SeedHall(t, repo, h)
	}
	m := mock.NewRepository(repo)
	log := logger.Discard()
	return services.NewRatingService(log, m, services.NewHallService(log, m)), m
}

func countRatings(t *testing.T, store remote.Store) int {
	t.Helper()
	rows, err := store.Select(context.Background(), remote.From(remote.RelHallRatings))
	if err != nil {
		t.Fatalf("select ratings failed: %v", err)
	}
	return len(rows)
}

func TestSubmitRating_Success(t *testing.T) {
	svc, m := setupRatingService(t)
	ctx := context.Background()

	r, err := svc.SubmitRating(ctx, "u1", "Covel", 8)
	if err != nil {
		t.Fatalf("SubmitRating failed: %v", err)
	}
	if r.Score != 8 || r.DiningHallName != "Covel" {
		t.Errorf("unexpected rating %+v", r)
	}

	got, err := svc.GetUserRating(ctx, "u1", "Covel")
	if err != nil {
		t.Fatalf("GetUserRating failed: %v", err)
	}
	if got == nil || got.Score != 8 {
		t.Errorf("expected stored score 8, got %+v", got)
	}
	if countRatings(t, m) != 1 {
		t.Errorf("expected 1 rating row")
	}
}

func TestSubmitRating_ResubmitOverwrites(t *testing.T) {
	svc, m := setupRatingService(t)
	ctx := context.Background()

	for _, score := range []int{3, 9} {
		if _, err := svc.SubmitRating(ctx, "u1", "Covel", score); err != nil {
			t.Fatalf("SubmitRating(%d) failed: %v", score, err)
		}
	}
	if n := countRatings(t, m); n != 1 {
		t.Errorf("expected exactly 1 row after resubmission, got %d", n)
	}
	got, _ := svc.GetUserRating(ctx, "u1", "Covel")
	if got.Score != 9 {
		t.Errorf("expected latest score 9, got %d", got.Score)
	}
}

func TestSubmitRating_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		hall   string
		score  int
		kind   errors.Kind
	}{
		{"zero", "u1", "Covel", 0, errors.ErrValidation},
		{"eleven", "u1", "Covel", 11, errors.ErrValidation},
		{"anonymous", "", "Covel", 5, errors.ErrUnauthenticated},
		{"unknown hall", "u1", "Nowhere", 5, errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := setupRatingService(t)
			_, err := svc.SubmitRating(context.Background(), tt.userID, tt.hall, tt.score)
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
			if len(m.CallsOf(mock.OpUpsert)) != 0 {
				t.Error("rejected rating must not write")
			}
		})
	}
}

func TestSubmitRating_StoreError(t *testing.T) {
	svc, m := setupRatingService(t)
	m.UpsertErrors[remote.RelHallRatings] = errors.Remote("upsert", stderrors.New("connection reset"))

	_, err := svc.SubmitRating(context.Background(), "u1", "Covel", 7)
	if !errors.IsKind(err, errors.ErrRemote) {
		t.Errorf("expected remote error, got %v", err)
	}
}

func TestLeaderboard(t *testing.T) {
	svc, _ := setupRatingService(t)
	ctx := context.Background()

	submit := func(user, hall string, score int) {
		t.Helper()
		if _, err := svc.SubmitRating(ctx, user, hall, score); err != nil {
			t.Fatalf("SubmitRating failed: %v", err)
		}
	}
	submit("u1", "Covel", 8)
	submit("u2", "Covel", 6)
	submit("u1", "De Neve", 9)

	board, err := svc.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	want := []struct {
		hall  string
		mean  float64
		count int
	}{
		{"De Neve", 9, 1},
		{"Covel", 7, 2},
		{"Epicuria", 0, 0},
	}
	if len(board) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(board))
	}
	for i, w := range want {
		row := board[i]
		if row.DiningHallName != w.hall || row.MeanScore != w.mean || row.Count != w.count || row.Rank != i+1 {
			t.Errorf("row %d: got %+v, want %+v", i, row, w)
		}
	}
}

func TestHallListing_Personal(t *testing.T) {
	svc, _ := setupRatingService(t)
	ctx := context.Background()

	svc.SubmitRating(ctx, "u1", "Covel", 2)
	svc.SubmitRating(ctx, "u2", "Covel", 10)
	svc.SubmitRating(ctx, "u2", "De Neve", 6)

	rows, err := svc.HallListing(ctx, "u1")
	if err != nil {
		t.Fatalf("HallListing failed: %v", err)
	}
	if rows[0].DiningHallName != "De Neve" || rows[0].MeanScore != 6 {
		t.Errorf("expected De Neve first with 6, got %+v", rows[0])
	}
	if rows[1].DiningHallName != "Covel" || rows[1].MeanScore != 2 || !rows[1].Personal {
		t.Errorf("expected Covel to show the viewer's own 2, got %+v", rows[1])
	}

	anon, err := svc.HallListing(ctx, "")
	if err != nil {
		t.Fatalf("HallListing anonymous failed: %v", err)
	}
	// Covel and De Neve both average 6; the tie goes to the name
	if anon[0].DiningHallName != "Covel" || anon[0].MeanScore != 6 {
		t.Errorf("unexpected anonymous first row %+v", anon[0])
	}
	for _, r := range anon {
		if r.Personal {
			t.Errorf("anonymous listing must not be personal: %+v", r)
		}
	}
}

func TestSubmitRating_BroadcastsLeaderboard(t *testing.T) {
	svc, _ := setupRatingService(t)
	b := &recordingBroadcaster{}
	svc.SetBroadcaster(b)

	if _, err := svc.SubmitRating(context.Background(), "u1", "Epicuria", 10); err != nil {
		t.Fatalf("SubmitRating failed: %v", err)
	}
	if len(b.boards) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(b.boards))
	}
	if b.boards[0][0].DiningHallName != "Epicuria" {
		t.Errorf("expected Epicuria on top, got %+v", b.boards[0][0])
	}
}

func TestGetUserRating_None(t *testing.T) {
	svc, _ := setupRatingService(t)
	r, err := svc.GetUserRating(context.Background(), "u1", "Covel")
	if err != nil {
		t.Fatalf("GetUserRating failed: %v", err)
	}
	if r != nil {
		t.Errorf("expected nil rating, got %+v", r)
	}
}
