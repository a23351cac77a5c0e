package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-arena/internal/ai"
	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/config"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-arena/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-arena/transport/rest"
	"github.com/rocketscienceinc/tictactoe-arena/transport/websocket"
)

const shutdownTimeout = 5 * time.Second

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	searcher := ai.NewSearcher(tictactoe.DefaultPlayers)
	engine := ai.NewEngine(logger, loadModel(ctx, logger, conf), searcher)
	manager := usecase.NewManager(logger, usecase.NewRegistry(), service.NewBotService(engine))

	router := rest.NewRouter(logger,
		rest.NewHandlers(logger, manager),
		websocket.New(logger, manager),
	)
	server := rest.NewServer(conf.HTTPPort, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort, "model_loaded", engine.HasModel())
		if err := server.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Shutting down", "active_sessions", manager.Active())

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// loadModel - the trained table, or nil so the engine plays by search alone.
func loadModel(ctx context.Context, logger *slog.Logger, conf *config.Config) *ai.QModel {
	log := logger.With("method", "loadModel", "store", conf.Model.Store)

	repo, closeRepo, err := NewModelRepository(ctx, conf)
	if err != nil {
		log.Warn("model store unavailable, falling back to search", "error", err)
		return nil
	}
	defer closeRepo()

	model, err := repo.Load(ctx)
	if err != nil {
		log.Warn("could not load model, falling back to search", "error", err)
		return nil
	}

	log.Info("model loaded", "states", model.Len())

	return model
}

// NewModelRepository - the configured model store and a function releasing it.
func NewModelRepository(ctx context.Context, conf *config.Config) (repository.ModelRepository, func(), error) {
	switch conf.Model.Store {
	case config.ModelStoreFile:
		return repository.NewFileModelRepository(conf.Model.Path), func() {}, nil

	case config.ModelStoreRedis:
		if conf.Redis.Host == "" {
			return nil, nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		closeFn := func() { _ = redisStorage.Close() }

		return repository.NewRedisModelRepository(redisStorage.Connection, conf.Model.Name), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", apperror.ErrUnsupportedModelStore, conf.Model.Store)
	}
}
