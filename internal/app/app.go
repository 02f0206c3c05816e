package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/penne-app/penne/internal/auth"
	"github.com/penne-app/penne/internal/config"
	"github.com/penne-app/penne/internal/handlers"
	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/realtime"
	"github.com/penne-app/penne/internal/remote"
	"github.com/penne-app/penne/internal/repository"
	"github.com/penne-app/penne/internal/services"
	"github.com/penne-app/penne/internal/votes"
	"github.com/penne-app/penne/internal/websocket"
	"github.com/penne-app/penne/pkg/backend"
)

// shutdownTimeout bounds the graceful stop of the server and pending vote writes
const shutdownTimeout = 15 * time.Second

// App holds all application dependencies
type App struct {
	log      logger.Logger
	cfg      *config.Config
	store    remote.Store
	closer   io.Closer
	auth     *auth.Auth
	tracker  *votes.Tracker
	hub      *websocket.Hub
	bus      *realtime.RedisBus
	handlers *handlers.Handlers

	closeOnce sync.Once
}

// New creates and initializes a new application instance
func New(ctx context.Context, log logger.Logger, cfg *config.Config) (*App, error) {
	store, closer, fetcher, err := openStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{log: log, cfg: cfg, store: store, closer: closer}

	halls := services.NewHallService(log, store)
	if err := a.seedHalls(ctx, halls); err != nil {
		a.Close()
		return nil, err
	}

	policy, ok := votes.ParsePolicy(cfg.VotePolicy)
	if !ok {
		a.Close()
		return nil, fmt.Errorf("unknown vote policy %q", cfg.VotePolicy)
	}
	a.tracker = votes.NewTracker(store, log, votes.Options{
		Policy:    policy,
		Serialize: cfg.VoteSerialize,
		Timeout:   cfg.BackendTimeout,
		IdleTTL:   cfg.VoteIdleTTL,
	})

	ratings := services.NewRatingService(log, store, halls)
	menu := services.NewMenuService(log, store)

	a.hub = websocket.New(log, ratings)
	a.hub.Start()
	ratings.SetBroadcaster(a.hub)
	a.tracker.OnChange(a.hub.BroadcastDishVotes)

	if cfg.RedisAddr != "" {
		if err := a.startRelay(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	var avatars services.AvatarServicer
	if fetcher != nil {
		avatars = services.NewAvatarCache(log, fetcher, backend.AvatarBucket, cfg.AvatarCacheEntries, cfg.AvatarCacheTTL)
	} else {
		log.Warn("No storage backend configured, avatar route disabled")
	}

	a.auth = auth.New(cfg.JWTSecret, cfg.JWTIssuer)
	if !a.auth.Enabled() {
		log.Warn("JWT_SECRET not set, every request is anonymous")
	}

	a.handlers = handlers.New(handlers.Services{
		Halls:    halls,
		Ratings:  ratings,
		Menu:     menu,
		Votes:    services.NewVoteService(log, a.tracker, menu),
		Feed:     services.NewFeedService(log, store, halls),
		Profiles: services.NewProfileService(log, store),
		Friends:  services.NewFriendService(log, store),
		Avatars:  avatars,
	}, a.auth, a.hub, log)

	return a, nil
}

// openStore picks the store backend. The fetcher serves avatar downloads and
// is nil when no hosted backend is configured.
func openStore(ctx context.Context, log logger.Logger, cfg *config.Config) (remote.Store, io.Closer, services.Fetcher, error) {
	var client *backend.HTTPClient
	if cfg.BackendURL != "" {
		client = backend.NewHTTPClient(cfg.BackendURL, cfg.BackendAPIKey, cfg.BackendTimeout, log)
	}

	switch cfg.Store {
	case config.StoreRemote:
		if client == nil {
			return nil, nil, nil, fmt.Errorf("remote store needs BACKEND_URL")
		}
		log.Info("Using hosted backend", "url", client.BaseURL())
		return client, nil, client, nil

	case config.StorePostgres:
		repo, err := repository.NewPostgres(ctx, cfg.DBURL, repository.PostgresOptions{
			MaxConns:    cfg.DBMaxConns,
			MinConns:    cfg.DBMinConns,
			ConnTimeout: cfg.DBConnectTimeout,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		log.Info("Using postgres store")
		return repo, repo, fetcherOrNil(client), nil

	default:
		repo, err := repository.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		log.Info("Using sqlite store", "path", cfg.SQLitePath)
		return repo, repo, fetcherOrNil(client), nil
	}
}

func fetcherOrNil(c *backend.HTTPClient) services.Fetcher {
	if c == nil {
		return nil
	}
	return c
}

// seedHalls loads operating hours. Self-hosted stores always get the embedded
// defaults; the hosted backend is only written when a file is given.
func (a *App) seedHalls(ctx context.Context, halls *services.HallService) error {
	var data []byte
	if a.cfg.HallsFile != "" {
		b, err := os.ReadFile(a.cfg.HallsFile)
		if err != nil {
			return fmt.Errorf("read halls file: %w", err)
		}
		data = b
	} else if a.cfg.Store == config.StoreRemote {
		return nil
	}

	n, err := halls.SeedHalls(ctx, data)
	if err != nil {
		return fmt.Errorf("seed halls: %w", err)
	}
	a.log.Info("Dining halls loaded", "count", n)
	return nil
}

// startRelay connects the hub to other instances through redis
func (a *App) startRelay(ctx context.Context) error {
	bus, err := realtime.NewRedisBus(ctx, a.log, a.cfg.RedisAddr, a.cfg.RedisChannel)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	// The forwarder lives as long as the bus; Close ends the subscription.
	if err := bus.StartForwarder(context.WithoutCancel(ctx), a.hub.Deliver); err != nil {
		bus.Close()
		return err
	}
	a.hub.SetRelay(bus)
	a.bus = bus
	a.log.Info("Websocket relay enabled", "redis", a.cfg.RedisAddr, "origin", bus.Origin())
	return nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// IssueToken signs an access token for local testing. It fails when no
// JWT secret is configured.
func (a *App) IssueToken(userID string) (string, error) {
	return a.auth.Issue(userID, auth.DefaultExpiry)
}

// Close waits for pending vote writes, then releases all resources. It is
// safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.tracker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.tracker.Drain(ctx); err != nil {
			a.log.Warn("Vote writes still pending at shutdown", "error", err)
		}
		cancel()
	}
	if a.hub != nil {
		a.hub.Stop()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Warn("Failed to close redis bus", "error", err)
		}
	}
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.log.Warn("Failed to close store", "error", err)
		}
	}
}

// Run serves HTTP on addr until ctx is cancelled, then shuts down gracefully
func (a *App) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ip := getPreferredIP(realNetworkProvider{})
		a.log.Info("Server starting", "url", fmt.Sprintf("http://%s%s", ip, addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Close()
	return err
}
