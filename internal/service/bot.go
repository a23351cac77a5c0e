package service

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

var ErrNotBotTurn = errors.New("it is not the bot's turn")

type actionChooser interface {
	ChooseAction(board tictactoe.Board, player string) (int, error)
	Players() tictactoe.Players
}

// BotService plays the computer side of a game.
type BotService interface {
	MakeTurn(game *entity.Game, mark string) (tictactoe.Cell, error)
	Players() tictactoe.Players
}

type botService struct {
	engine actionChooser
}

func NewBotService(engine actionChooser) BotService {
	return &botService{engine: engine}
}

// Players - the mark pair the engine plays with.
func (that *botService) Players() tictactoe.Players {
	return that.engine.Players()
}

// MakeTurn - asks the engine for a move and applies it for mark.
func (that *botService) MakeTurn(game *entity.Game, mark string) (tictactoe.Cell, error) {
	if err := game.ConfirmOngoingState(); err != nil {
		return tictactoe.Cell{}, err
	}

	if game.Turn != mark {
		return tictactoe.Cell{}, ErrNotBotTurn
	}

	action, err := that.engine.ChooseAction(game.Board, mark)
	if err != nil {
		return tictactoe.Cell{}, fmt.Errorf("bot failed to choose action: %w", err)
	}

	if err = game.MakeTurn(mark, action); err != nil {
		return tictactoe.Cell{}, fmt.Errorf("bot failed to make turn: %w", err)
	}

	return tictactoe.CellOf(action), nil
}
