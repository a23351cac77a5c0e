package ai

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

const (
	SourceModel    = "model"
	SourceSearch   = "search"
	SourceFallback = "fallback"
)

// Engine picks moves for the computer player. It falls back from the value table to exact
// search and then to the first legal cell. A nil model is allowed.
type Engine struct {
	logger   *slog.Logger
	model    *QModel
	searcher *Searcher
}

func NewEngine(logger *slog.Logger, model *QModel, searcher *Searcher) *Engine {
	return &Engine{
		logger:   logger.With("component", "ai"),
		model:    model,
		searcher: searcher,
	}
}

// ChooseAction - returns the cell index to play for player.
func (that *Engine) ChooseAction(board tictactoe.Board, player string) (int, error) {
	action, _, err := that.Choose(board, player)

	return action, err
}

// Choose - like ChooseAction, also naming which tier produced the action.
func (that *Engine) Choose(board tictactoe.Board, player string) (int, string, error) {
	log := that.logger.With("method", "Choose")

	legal := tictactoe.LegalActions(board)
	if len(legal) == 0 {
		return 0, "", fmt.Errorf("%w: board is full", apperror.ErrNoLegalAction)
	}

	if that.model != nil {
		action, ok := that.model.BestAction(board, player)
		if ok && slices.Contains(legal, action) {
			return action, SourceModel, nil
		}

		log.Debug("model has no usable action, falling back to search", "player", player)
	}

	if that.searcher != nil {
		action, ok := that.searcher.BestAction(board, player)
		if ok && slices.Contains(legal, action) {
			return action, SourceSearch, nil
		}
	}

	log.Warn("search has no usable action, playing first legal cell", "player", player)

	return legal[0], SourceFallback, nil
}

// Players - the marks the engine knows how to play; the search's pair wins over the table's.
func (that *Engine) Players() tictactoe.Players {
	switch {
	case that.searcher != nil:
		return that.searcher.Players()
	case that.model != nil:
		return that.model.Players
	default:
		return tictactoe.DefaultPlayers
	}
}

// HasModel - whether a trained value table is loaded.
func (that *Engine) HasModel() bool {
	return that.model != nil
}
