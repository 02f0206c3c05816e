package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/penne-app/penne/internal/auth"
	"github.com/penne-app/penne/internal/handlers"
	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/remote"
	"github.com/penne-app/penne/internal/repository/mock"
	"github.com/penne-app/penne/internal/services"
	"github.com/penne-app/penne/internal/testutil"
	"github.com/penne-app/penne/internal/votes"
	"github.com/penne-app/penne/internal/websocket"
	"github.com/penne-app/penne/pkg/backend"
)

const testSecret = "handler-test-secret"

// testSetup holds a router wired to real services over an in-memory store
type testSetup struct {
	repo    *mock.Repository
	store   remote.Store
	tracker *votes.Tracker
	hub     *websocket.Hub
	auth    *auth.Auth
	router  chi.Router
	tokens  map[string]string
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()

	real := testutil.NewTestRepository(t)
	repo := mock.NewRepository(real)
	log := logger.Discard()

	tracker := votes.NewTracker(repo, log, votes.Options{Serialize: true})
	halls := services.NewHallService(log, repo)
	ratings := services.NewRatingService(log, repo, halls)
	menu := services.NewMenuService(log, repo)

	hub := websocket.New(log, ratings)
	hub.Start()
	t.Cleanup(hub.Stop)
	ratings.SetBroadcaster(hub)
	tracker.OnChange(hub.BroadcastDishVotes)

	avatarStore := backend.NewMockClient(backend.WithObject(backend.AvatarBucket, "u1/me.png", []byte("\x89PNG\r\n\x1a\nfake")))

	authn := auth.New(testSecret, "")
	h := handlers.New(handlers.Services{
		Halls:    halls,
		Ratings:  ratings,
		Menu:     menu,
		Votes:    services.NewVoteService(log, tracker, menu),
		Feed:     services.NewFeedService(log, repo, halls),
		Profiles: services.NewProfileService(log, repo),
		Friends:  services.NewFriendService(log, repo),
		Avatars:  services.NewAvatarCache(log, avatarStore, backend.AvatarBucket, 8, time.Minute),
	}, authn, hub, log)

	s := &testSetup{
		repo:    repo,
		store:   real,
		tracker: tracker,
		hub:     hub,
		auth:    authn,
		router:  h.Router(),
		tokens:  map[string]string{},
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		tracker.Drain(ctx)
	})
	return s
}

// token returns a signed access token for userID
func (s *testSetup) token(t *testing.T, userID string) string {
	t.Helper()
	if tok, ok := s.tokens[userID]; ok {
		return tok
	}
	tok, err := s.auth.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	s.tokens[userID] = tok
	return tok
}

// do sends a request as userID ("" for anonymous) and returns the recorder
func (s *testSetup) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("failed to marshal body: %v", err)
			}
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
