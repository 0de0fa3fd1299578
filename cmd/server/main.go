// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/geoduel-gg/geoduel/internal/auth"
	"github.com/geoduel-gg/geoduel/internal/cache"
	"github.com/geoduel-gg/geoduel/internal/clan"
	"github.com/geoduel-gg/geoduel/internal/database"
	"github.com/geoduel-gg/geoduel/internal/game"
	"github.com/geoduel-gg/geoduel/internal/handlers"
	"github.com/geoduel-gg/geoduel/internal/matchmaking"
	"github.com/geoduel-gg/geoduel/internal/middleware"
)

func main() {
	logger := logrus.New()
	if os.Getenv("DEBUG") != "" {
		logger.SetLevel(logrus.DebugLevel)
	}

	auth.Init()
	database.ConnectDB()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(ctx, database.DSN()); err != nil {
		logger.Fatalf("migrations failed: %v", err)
	}
	if err := cache.ConnectRedis(); err != nil {
		logger.Fatalf("redis connect failed: %v", err)
	}

	wars := clan.NewWarService(clan.PGWarStore{}, clan.PGUserReader{}, clan.PGWarLobbyCreator{}, logger)
	registry := game.NewRegistry()
	engine := game.NewEngine(registry, game.PGUserStore{}, game.PGLobbyStore{}, game.RedisSnapshotStore{}, wars, logger)
	mm := matchmaking.New(matchmaking.PGLobbyCreator{}, logger)

	srv := handlers.NewServer(engine, mm, wars, logger)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: middleware.LogMiddleware(logger)(srv.Routes()),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mm.Run(ctx)
	})
	g.Go(func() error {
		logger.Infof("listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("shutdown complete")
}
