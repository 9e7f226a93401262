package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-print"
	"github.com/pgstay/go-auth"
	"github.com/pgstay/go-auth/activitymap"
	"github.com/pgstay/go-auth/config"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", os.Getenv("PGAUTH_CONFIG"), "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	sugar, err := auth.NewZap(cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() {
		_ = sugar.Sync()
	}()
	logger := auth.NewZapLogger(sugar)

	sugar.Infof("starting auth-service in %s environment on %s", cfg.App.Env, cfg.HTTP.Addr)
	sugar.Debugf("config: %s", print.MaybePrettyJSON(cfg.Redacted()))

	ctx := context.Background()

	store, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		sugar.Fatalw("failed to open identity store", "error", err)
	}
	defer closeStore()

	hasher := auth.NewBcryptHasher(cfg.GetPasswordCost())

	tokens, err := auth.NewTokenServiceFromConfig(cfg, logger)
	if err != nil {
		sugar.Fatalw("failed to build token service", "error", err)
	}

	auther := auth.NewAuthenticatorFromConfig(store, hasher, tokens, cfg).
		WithLogger(logger).
		WithActivitySink(activitymap.NewSink(logger)).
		WithLoginThrottle(newThrottle(ctx, cfg, logger))

	app := auth.NewApp(auth.AppOptions{
		Config:      cfg,
		Auther:      auther,
		Validator:   tokens,
		Health:      health,
		Logger:      logger,
		BasePath:    cfg.HTTP.BasePath,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Production:  !cfg.IsDevelopment(),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr); err != nil {
			sugar.Fatalw("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down auth-service")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		sugar.Errorw("shutdown failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (auth.IdentityStore, auth.HealthChecker, func(), error) {
	if cfg.Store.Driver == config.StoreMemory {
		store := auth.NewMemoryStore()
		return store, store, func() {}, nil
	}

	db, err := auth.OpenSQLite(cfg.Store.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	closer := func() { _ = db.Close() }

	if err := auth.EnsureSchema(ctx, db); err != nil {
		closer()
		return nil, nil, nil, err
	}

	users := auth.NewUsersRepository(db)
	return users, users, closer, nil
}

func newThrottle(ctx context.Context, cfg *config.Config, logger auth.Logger) auth.LoginThrottle {
	if cfg.Redis.Addr == "" {
		return auth.NewMemoryLoginThrottle(cfg.Login.MaxAttempts, cfg.Login.Cooldown)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-process login throttle", "error", err)
		_ = client.Close()
		return auth.NewMemoryLoginThrottle(cfg.Login.MaxAttempts, cfg.Login.Cooldown)
	}
	return auth.NewRedisLoginThrottle(client, cfg.Login.MaxAttempts, cfg.Login.Cooldown)
}
