package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/rocketscienceinc/tictactoe-arena/internal"
	"github.com/rocketscienceinc/tictactoe-arena/internal/ai"
	"github.com/rocketscienceinc/tictactoe-arena/internal/config"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-arena/internal/trainer"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yml, environment only when empty")
	episodes := flag.Int("episodes", 0, "self-play episodes, config value when zero")
	seed := flag.Int64("seed", 0, "random seed, config value when zero")
	store := flag.String("store", "", "model store (file|redis), config value when empty")
	out := flag.String("out", "", "artifact path for the file store, config value when empty")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *store != "" {
		conf.Model.Store = *store
	}

	if *out != "" {
		conf.Model.Path = *out
	}

	trainerConfig := conf.Trainer.ToTrainerConfig()
	if *episodes > 0 {
		trainerConfig.Episodes = *episodes
	}

	if *seed != 0 {
		trainerConfig.Seed = *seed
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLevel(conf.LogLevel)}))

	if err = run(logger, conf, trainerConfig); err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, conf *config.Config, trainerConfig trainer.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := app.NewModelRepository(ctx, conf)
	if err != nil {
		return err
	}
	defer closeRepo()

	started := time.Now()

	model, stats, err := trainer.New(logger, trainerConfig, ai.NewSearcher(tictactoe.DefaultPlayers)).Train(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// an interrupted run still keeps what it learned
	if err = repo.Save(context.WithoutCancel(ctx), model); err != nil {
		return fmt.Errorf("could not save model: %w", err)
	}

	logger.Info("model saved",
		"store", conf.Model.Store,
		"episodes", stats.Episodes,
		"states", stats.States,
		"x_wins", stats.XWins,
		"o_wins", stats.OWins,
		"ties", stats.Ties,
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)

	return nil
}
