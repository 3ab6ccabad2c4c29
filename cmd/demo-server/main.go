// Command demo-server runs the development API server for the authlink client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/panyam/authlink/devserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}

	var (
		addr        string
		tokenTTL    time.Duration
		seedUsers   []string
		debug       bool
		loginPerMin float64
		redisAddr   string
	)

	flagSet := pflag.NewFlagSet("demo-server", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", envOr("AUTHLINK_ADDR", ":5000"), "listen address")
	flagSet.DurationVar(&tokenTTL, "token-ttl", devserver.DefaultAccessTokenExpiry, "access token lifetime")
	flagSet.StringSliceVar(&seedUsers, "user", nil, "seed a user as name:email:password (repeatable)")
	flagSet.Float64Var(&loginPerMin, "login-rate", 10, "login attempts per minute per email (0 disables)")
	flagSet.StringVar(&redisAddr, "redis-addr", os.Getenv("AUTHLINK_REDIS_ADDR"), "keep refresh sessions in Redis at this address (default in memory)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv := &devserver.Server{
		AccessTokenExpiry: tokenTTL,
		Logger:            logger,
	}
	if loginPerMin > 0 {
		srv.LoginLimiter = devserver.NewKeyedLimiter(rate.Limit(loginPerMin/60), int(loginPerMin))
	}
	srv.EnsureDefaults()

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", redisAddr, err)
		}
		srv.Sessions.Store = devserver.NewRedisSessionStore(rdb, "authlink:session:")
		logger.Info("Using Redis session store", "address", redisAddr)
	}

	for _, spec := range seedUsers {
		name, email, password, err := parseUserSpec(spec)
		if err != nil {
			return err
		}
		user, err := srv.Users.Create(name, email, password)
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", email, err)
		}
		logger.Info("Seeded user", "id", user.ID, "email", user.Email)
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "token_ttl", tokenTTL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func parseUserSpec(spec string) (name, email, password string, err error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid --user %q, want name:email:password", spec)
	}
	return parts[0], parts[1], parts[2], nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
