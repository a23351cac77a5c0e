package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/rocketscienceinc/tictactoe-arena/internal/ai"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

var ErrInvalidConfig = errors.New("invalid trainer config")

// Config holds the self-play schedule. Start/end pairs are annealed linearly over Episodes.
type Config struct {
	Episodes     int
	Alpha        float64
	Gamma        float64
	EpsilonStart float64
	EpsilonEnd   float64
	TeacherStart float64
	TeacherEnd   float64
	Seed         int64
	LogEvery     int
}

func DefaultConfig() Config {
	return Config{
		Episodes:     300_000,
		Alpha:        0.35,
		Gamma:        0.99,
		EpsilonStart: 1.0,
		EpsilonEnd:   0.02,
		TeacherStart: 0.70,
		TeacherEnd:   0.05,
		Seed:         7,
		LogEvery:     50_000,
	}
}

func (that Config) Validate() error {
	if that.Episodes <= 0 {
		return fmt.Errorf("%w: episodes must be positive", ErrInvalidConfig)
	}

	if that.Alpha <= 0 || that.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be in (0, 1]", ErrInvalidConfig)
	}

	for name, p := range map[string]float64{
		"gamma":         that.Gamma,
		"epsilon-start": that.EpsilonStart,
		"epsilon-end":   that.EpsilonEnd,
		"teacher-start": that.TeacherStart,
		"teacher-end":   that.TeacherEnd,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s must be in [0, 1]", ErrInvalidConfig, name)
		}
	}

	return nil
}

// Stats summarises a finished run.
type Stats struct {
	Episodes int
	States   int
	XWins    int
	OWins    int
	Ties     int
}

type Trainer struct {
	logger   *slog.Logger
	config   Config
	players  tictactoe.Players
	searcher *ai.Searcher
	rng      *rand.Rand
}

func New(logger *slog.Logger, config Config, searcher *ai.Searcher) *Trainer {
	return &Trainer{
		logger:   logger.With("component", "trainer"),
		config:   config,
		players:  tictactoe.DefaultPlayers,
		searcher: searcher,
		rng:      rand.New(rand.NewSource(config.Seed)), //nolint: gosec // reproducible training runs
	}
}

// Train - runs the self-play episodes and returns the value table.
func (that *Trainer) Train(ctx context.Context) (*ai.QModel, Stats, error) {
	log := that.logger.With("method", "Train")

	if err := that.config.Validate(); err != nil {
		return nil, Stats{}, err
	}

	model := ai.NewQModel(that.players)
	stats := Stats{}

	log.Info("training started", "episodes", that.config.Episodes, "seed", that.config.Seed)

	for episode := 1; episode <= that.config.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			stats.States = model.Len()
			return model, stats, fmt.Errorf("training interrupted at episode %d: %w", episode, err)
		}

		epsilon := Linear(that.config.EpsilonStart, that.config.EpsilonEnd, episode, that.config.Episodes)
		teacherProb := Linear(that.config.TeacherStart, that.config.TeacherEnd, episode, that.config.Episodes)

		switch winner := that.episode(model, epsilon, teacherProb); winner {
		case that.players[0]:
			stats.XWins++
		case that.players[1]:
			stats.OWins++
		default:
			stats.Ties++
		}
		stats.Episodes++

		if that.config.LogEvery > 0 && episode%that.config.LogEvery == 0 {
			log.Info("training progress",
				"episode", episode,
				"epsilon", epsilon,
				"teacher_prob", teacherProb,
				"states", model.Len(),
			)
		}
	}

	stats.States = model.Len()
	log.Info("training finished", "states", stats.States, "x_wins", stats.XWins, "o_wins", stats.OWins, "ties", stats.Ties)

	return model, stats, nil
}

// episode - plays one game from the empty board and returns the winner mark, empty on a tie.
func (that *Trainer) episode(model *ai.QModel, epsilon, teacherProb float64) string {
	board := tictactoe.Board{}
	player := that.players[0]

	for {
		actions := tictactoe.LegalActions(board)
		if len(actions) == 0 {
			return ""
		}

		action := that.pick(model, board, player, actions, epsilon, teacherProb)

		next, err := tictactoe.Apply(board, action, player)
		if err != nil {
			// pick only returns legal actions
			panic(err)
		}

		result := tictactoe.Evaluate(next)
		opponent := that.players.Other(player)

		var target float64
		switch result.Status {
		case tictactoe.StatusWin:
			target = 1
			if result.Winner != player {
				target = -1
			}
		case tictactoe.StatusTie:
			target = 0
		default:
			target = -that.config.Gamma * model.BestNext(next, opponent)
		}

		model.Update(board, player, action, target, that.config.Alpha)

		if result.Status != tictactoe.StatusOngoing {
			return result.Winner
		}

		board, player = next, opponent
	}
}

func (that *Trainer) pick(model *ai.QModel, board tictactoe.Board, player string, actions []int, epsilon, teacherProb float64) int {
	if that.rng.Float64() < teacherProb {
		if action, ok := that.searcher.BestAction(board, player); ok {
			return action
		}
	}

	if that.rng.Float64() < epsilon {
		return actions[that.rng.Intn(len(actions))]
	}

	action, _ := model.Greedy(board, player)

	return action
}
