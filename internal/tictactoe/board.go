package tictactoe

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

const (
	BoardSize = 3
	CellCount = BoardSize * BoardSize

	EmptyCell = ""

	PlayerX = "X"
	PlayerO = "O"
)

const (
	StatusOngoing = "ongoing"
	StatusWin     = "win"
	StatusTie     = "tie"

	LineRow      = "row"
	LineColumn   = "col"
	LineDiagonal = "diag"
)

var ErrInvalidCell = errors.New("invalid cell index")

// DefaultPlayers - the mark order used unless a match configures its own.
var DefaultPlayers = Players{PlayerX, PlayerO}

// Board is a 3x3 grid stored row by row.
type Board [CellCount]string

// Players is the ordered pair of marks taking part in a game.
type Players [2]string

// Cell is a (row, col) coordinate on the board.
type Cell struct {
	Row int
	Col int
}

// MarshalJSON encodes a cell as a [row, col] pair.
func (that Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{that.Row, that.Col})
}

func (that *Cell) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("failed to unmarshal cell: %w", err)
	}

	that.Row, that.Col = pair[0], pair[1]

	return nil
}

// Result is the outcome of evaluating a board.
type Result struct {
	Status string
	Winner string
	Line   string
	Cells  []Cell
}

type line struct {
	kind  string
	cells [BoardSize]int
}

// lines in evaluation order: rows, columns, main diagonal, anti diagonal.
var lines = []line{
	{LineRow, [3]int{0, 1, 2}},
	{LineRow, [3]int{3, 4, 5}},
	{LineRow, [3]int{6, 7, 8}},
	{LineColumn, [3]int{0, 3, 6}},
	{LineColumn, [3]int{1, 4, 7}},
	{LineColumn, [3]int{2, 5, 8}},
	{LineDiagonal, [3]int{0, 4, 8}},
	{LineDiagonal, [3]int{2, 4, 6}},
}

func (that line) result(winner string) Result {
	return Result{
		Status: StatusWin,
		Winner: winner,
		Line:   that.kind,
		Cells:  []Cell{CellOf(that.cells[0]), CellOf(that.cells[1]), CellOf(that.cells[2])},
	}
}

// Other - returns the opponent of the given mark.
func (that Players) Other(mark string) string {
	if mark == that[0] {
		return that[1]
	}
	return that[0]
}

// Has - reports whether the mark belongs to the pair.
func (that Players) Has(mark string) bool {
	return mark == that[0] || mark == that[1]
}

// Valid - both marks are non-empty and distinct.
// SameMarks - whether both pairs hold the same two marks, in any order.
func (that Players) SameMarks(other Players) bool {
	return that == other || (that[0] == other[1] && that[1] == other[0])
}

func (that Players) Valid() bool {
	return that[0] != EmptyCell && that[1] != EmptyCell && that[0] != that[1]
}

func CellIndex(row, col int) int {
	return row*BoardSize + col
}

func CellOf(index int) Cell {
	return Cell{Row: index / BoardSize, Col: index % BoardSize}
}

func InRange(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}

// LegalActions - returns the empty cell indices in ascending order.
func LegalActions(board Board) []int {
	actions := make([]int, 0, CellCount)
	for i, cell := range board {
		if cell == EmptyCell {
			actions = append(actions, i)
		}
	}

	return actions
}

// Apply - returns a copy of the board with the cell set to mark.
func Apply(board Board, index int, mark string) (Board, error) {
	if index < 0 || index >= CellCount {
		return board, fmt.Errorf("%w: cell %d", ErrInvalidCell, index)
	}

	if board[index] != EmptyCell {
		return board, fmt.Errorf("%w: cell %d", apperror.ErrIllegalMove, index)
	}

	board[index] = mark

	return board, nil
}

// Evaluate - reports the first completed line, a tie on a full board, or ongoing.
func Evaluate(board Board) Result {
	for _, l := range lines {
		a, b, c := board[l.cells[0]], board[l.cells[1]], board[l.cells[2]]
		if a != EmptyCell && a == b && b == c {
			return l.result(a)
		}
	}

	for _, cell := range board {
		if cell == EmptyCell {
			return Result{Status: StatusOngoing}
		}
	}

	return Result{Status: StatusTie}
}

// WinningLines - enumerates every completed line, in evaluation order.
func WinningLines(board Board) []Result {
	var results []Result
	for _, l := range lines {
		a, b, c := board[l.cells[0]], board[l.cells[1]], board[l.cells[2]]
		if a != EmptyCell && a == b && b == c {
			results = append(results, l.result(a))
		}
	}

	return results
}

// Terminal - the board is won or full.
func Terminal(board Board) bool {
	return Evaluate(board).Status != StatusOngoing
}

// Occupied - number of non-empty cells.
func Occupied(board Board) int {
	count := 0
	for _, cell := range board {
		if cell != EmptyCell {
			count++
		}
	}

	return count
}

// Rows - the board as a 3x3 grid.
func (that Board) Rows() [BoardSize][BoardSize]string {
	var rows [BoardSize][BoardSize]string
	for i, cell := range that {
		rows[i/BoardSize][i%BoardSize] = cell
	}

	return rows
}
