package ai

import (
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

// StateKey identifies a position together with the mark to move.
type StateKey struct {
	Board  tictactoe.Board
	Player string
}

// Searcher is an exact negamax over tic-tac-toe positions.
// Results are memoized per StateKey and shared between callers.
type Searcher struct {
	players tictactoe.Players

	mu   sync.RWMutex
	memo map[StateKey]int
}

func NewSearcher(players tictactoe.Players) *Searcher {
	return &Searcher{
		players: players,
		memo:    make(map[StateKey]int),
	}
}

// Players - the mark pair the search alternates between.
func (that *Searcher) Players() tictactoe.Players {
	return that.players
}

// Value - the guaranteed outcome for player to move: +1 win, 0 draw, -1 loss.
func (that *Searcher) Value(board tictactoe.Board, player string) int {
	key := StateKey{Board: board, Player: player}

	that.mu.RLock()
	value, ok := that.memo[key]
	that.mu.RUnlock()

	if ok {
		return value
	}

	value = that.value(board, player)

	// any writer stores the same value for a key
	that.mu.Lock()
	that.memo[key] = value
	that.mu.Unlock()

	return value
}

func (that *Searcher) value(board tictactoe.Board, player string) int {
	result := tictactoe.Evaluate(board)
	switch {
	case result.Status == tictactoe.StatusWin && result.Winner == player:
		return 1
	case result.Status == tictactoe.StatusWin:
		return -1
	case result.Status == tictactoe.StatusTie:
		return 0
	}

	best := -2
	opponent := that.players.Other(player)
	for _, action := range tictactoe.LegalActions(board) {
		next, _ := tictactoe.Apply(board, action, player)
		if v := -that.Value(next, opponent); v > best {
			best = v
			if best == 1 {
				break
			}
		}
	}

	return best
}

// BestAction - the lowest-index action with the best guaranteed outcome.
// ok is false when the board has no legal action.
func (that *Searcher) BestAction(board tictactoe.Board, player string) (int, bool) {
	actions := tictactoe.LegalActions(board)
	if len(actions) == 0 {
		return 0, false
	}

	opponent := that.players.Other(player)
	bestAction, bestValue := actions[0], -2
	for _, action := range actions {
		next, _ := tictactoe.Apply(board, action, player)
		if v := -that.Value(next, opponent); v > bestValue {
			bestValue = v
			bestAction = action
			if bestValue == 1 {
				break
			}
		}
	}

	return bestAction, true
}

// Size - number of memoized positions.
func (that *Searcher) Size() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.memo)
}
