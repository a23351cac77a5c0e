package entity

import (
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

const (
	StatusOngoing = tictactoe.StatusOngoing
	StatusWin     = tictactoe.StatusWin
	StatusTie     = tictactoe.StatusTie
)

// Game is the mutable state of one match. Status, Winner, Line and Cells are derived from Board.
type Game struct {
	Board   tictactoe.Board
	Players tictactoe.Players
	Turn    string
	Status  string
	Winner  string
	Line    string
	Cells   []tictactoe.Cell
	Label   string
}

// NewGame - creates a game with the given starting mark, or a random one when starting is empty.
func NewGame(players tictactoe.Players, starting string) (*Game, error) {
	if !players.Valid() {
		return nil, fmt.Errorf("%w: marks %q", apperror.ErrInvalidConfiguration, players)
	}

	if starting == "" {
		starting = RandomMark(players)
	}

	if !players.Has(starting) {
		return nil, fmt.Errorf("%w: starting mark %q", apperror.ErrInvalidConfiguration, starting)
	}

	game := &Game{
		Players: players,
		Turn:    starting,
	}
	game.UpdateGameState()

	return game, nil
}

// UpdateGameState - recomputes status, winner and label from the board.
func (that *Game) UpdateGameState() {
	result := tictactoe.Evaluate(that.Board)

	that.Status = result.Status
	that.Winner = result.Winner
	that.Line = result.Line
	that.Cells = result.Cells

	switch result.Status {
	case StatusWin:
		that.Label = result.Winner + " wins"
	case StatusTie:
		that.Label = "the players tied"
	default:
		that.Label = that.Turn + " turn"
	}
}

// MakeTurn - applies one legal move for mark and advances the turn.
func (that *Game) MakeTurn(mark string, cell int) error {
	if err := that.ConfirmOngoingState(); err != nil {
		return err
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	board, err := tictactoe.Apply(that.Board, cell, mark)
	if err != nil {
		return fmt.Errorf("invalid turn: %w", err)
	}

	that.Board = board

	// the turn only moves on while the game continues
	if tictactoe.Evaluate(board).Status == StatusOngoing {
		that.Turn = that.Players.Other(mark)
	}

	that.UpdateGameState()

	return nil
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusWin || that.Status == StatusTie
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) ConfirmOngoingState() error {
	if that.IsFinished() {
		return apperror.ErrGameFinished
	}

	return nil
}

// RandomMark - picks one of the two marks.
func RandomMark(players tictactoe.Players) string {
	return players[rand.Intn(2)] //nolint: gosec // it's ok
}
