package ai

import (
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

// Values holds one estimate per cell; only legal cells are meaningful.
type Values [tictactoe.CellCount]float64

// QModel is a value table keyed by position and mark to move.
// It is not safe for concurrent writes; the trainer owns it exclusively while it grows.
type QModel struct {
	Players tictactoe.Players
	q       map[StateKey]*Values
}

func NewQModel(players tictactoe.Players) *QModel {
	return &QModel{
		Players: players,
		q:       make(map[StateKey]*Values),
	}
}

// Lookup - the stored estimates for a position, if any.
func (that *QModel) Lookup(board tictactoe.Board, player string) (Values, bool) {
	values, ok := that.q[StateKey{Board: board, Player: player}]
	if !ok {
		return Values{}, false
	}

	return *values, true
}

// BestAction - the legal action with the highest estimate, ties to the lowest index.
// ok is false when the position is not in the table or has no legal action.
func (that *QModel) BestAction(board tictactoe.Board, player string) (int, bool) {
	values, ok := that.Lookup(board, player)
	if !ok {
		return 0, false
	}

	return bestOf(board, values)
}

// Greedy - like BestAction, but an unknown position reads as all zeros.
func (that *QModel) Greedy(board tictactoe.Board, player string) (int, bool) {
	values, _ := that.Lookup(board, player)

	return bestOf(board, values)
}

// Update - moves the estimate for (board, player, action) toward target by alpha.
func (that *QModel) Update(board tictactoe.Board, player string, action int, target, alpha float64) {
	values := that.entry(StateKey{Board: board, Player: player})
	values[action] += alpha * (target - values[action])
}

// BestNext - the highest legal estimate for a position, zero when unknown or without moves.
func (that *QModel) BestNext(board tictactoe.Board, player string) float64 {
	values, _ := that.Lookup(board, player)

	actions := tictactoe.LegalActions(board)
	if len(actions) == 0 {
		return 0
	}

	best := values[actions[0]]
	for _, action := range actions[1:] {
		if values[action] > best {
			best = values[action]
		}
	}

	return best
}

// Len - number of stored positions.
func (that *QModel) Len() int {
	return len(that.q)
}

// Each - calls fn for every stored position.
func (that *QModel) Each(fn func(key StateKey, values Values)) {
	for key, values := range that.q {
		fn(key, *values)
	}
}

// Set - replaces the estimates for a position.
func (that *QModel) Set(board tictactoe.Board, player string, values Values) {
	*that.entry(StateKey{Board: board, Player: player}) = values
}

func (that *QModel) entry(key StateKey) *Values {
	values, ok := that.q[key]
	if !ok {
		values = &Values{}
		that.q[key] = values
	}

	return values
}

func bestOf(board tictactoe.Board, values Values) (int, bool) {
	actions := tictactoe.LegalActions(board)
	if len(actions) == 0 {
		return 0, false
	}

	bestAction := actions[0]
	for _, action := range actions[1:] {
		if values[action] > values[bestAction] {
			bestAction = action
		}
	}

	return bestAction, true
}
