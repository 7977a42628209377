package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"homelinka/admin"
	"homelinka/agent"
	"homelinka/auth"
	"homelinka/config"
	"homelinka/db"
	"homelinka/httpapi"
	"homelinka/lead"
	"homelinka/listing"
	"homelinka/logging"
	"homelinka/migrations"
	"homelinka/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.Production())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := migrations.Apply(ctx, pool); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, auth.WithBcryptCost(cfg.BcryptCost), auth.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		return fmt.Errorf("configure credentials: %w", err)
	}

	users := auth.NewRepository(pool, cfg.StoreTimeout)
	listings := listing.NewRepository(pool, cfg.StoreTimeout)

	authService := auth.NewService(users, issuer).WithMinPasswordLength(cfg.MinPassword)
	if cfg.AdminEmail != "" {
		account, created, err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		log.WithField("user_id", account.ID).WithField("created", created).Info("admin account ready")
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	server := httpapi.NewServer(httpapi.Deps{
		Auth:       authService,
		Guard:      auth.NewGuard(issuer),
		Listings:   listing.NewService(listings, users),
		Admin:      admin.NewService(pool, admin.NewStore(pool, cfg.StoreTimeout), users, listings).WithTimeout(cfg.StoreTimeout),
		Agents:     agent.NewService(agent.NewRepository(pool, cfg.StoreTimeout)),
		Leads:      lead.NewService(lead.NewRepository(pool, cfg.StoreTimeout)),
		Limiter:    limiter,
		LoginLimit: cfg.LoginRateLimit,
		Log:        log,
	})

	return serve(ctx, &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.ShutdownGrace, log)
}

// serve runs srv until ctx is cancelled, then drains in-flight requests for
// at most grace.
func serve(ctx context.Context, srv *http.Server, grace time.Duration, log *logrus.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newLimiter picks the shared Redis limiter when REDIS_URL is set and the
// per-process one otherwise. A zero limit disables throttling.
func newLimiter(ctx context.Context, cfg config.Config, log *logrus.Logger) (ratelimit.Limiter, func(), error) {
	noop := func() {}
	if cfg.LoginRateLimit <= 0 {
		log.Warn("login throttling disabled")
		return nil, noop, nil
	}
	if cfg.RedisURL == "" {
		return ratelimit.NewInMemory(cfg.LoginRateWindow), noop, nil
	}
	client, err := ratelimit.Open(ctx, cfg.RedisURL)
	if err != nil {
		return nil, noop, fmt.Errorf("connect redis: %w", err)
	}
	return ratelimit.NewRedis(client, cfg.LoginRateWindow), func() { _ = client.Close() }, nil
}
