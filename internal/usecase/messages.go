package usecase

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

const (
	NoteAccepted       = "Move accepted."
	NoteTie            = "Game over: tie."
	NoteIgnored        = "Move ignored. Cell is occupied or game already finished."
	NoteNotYourTurn    = "Not your turn."
	NoteAIPlaying      = "Wait for your turn. AI is playing."
	NoteOutOfRange     = "Coordinates must be between 0 and 2."
	NoteNotInteger     = "Invalid payload. row and col must be integers."
	NoteInvalidPayload = "Invalid payload. Use JSON object with row and col."
	NoteWrongIdentity  = "player_id does not match this websocket connection."
	NoteWaitingPeers   = "Both players must be connected before moves are accepted."
	NoteConnected      = "Connected."
	NoteWaiting        = "Waiting for the other player to connect."

	ReasonFinished     = "Game finished."
	ReasonDisconnected = "A player disconnected. Game closed."
)

// Move is one move request; PlayerID is the identity claimed by the payload.
type Move struct {
	PlayerID string
	Row      int
	Col      int

	// Invalid carries the note for coordinates that were not integers.
	// It is reported only once the identity and turn checks have passed.
	Invalid string
}

// Coordinates is a cell in the {row, col} object form used for ai_move.
type Coordinates struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// StateMessage is the state broadcast sent after every move.
type StateMessage struct {
	Board      [tictactoe.BoardSize][tictactoe.BoardSize]string `json:"board"`
	Status     string                                           `json:"status"`
	GameStatus string                                           `json:"game_status"`
	Winner     string                                           `json:"winner,omitempty"`
	LineType   string                                           `json:"line_type,omitempty"`
	Cells      []tictactoe.Cell                                 `json:"cells,omitempty"`
	Message    string                                           `json:"message,omitempty"`
	AIMove     *Coordinates                                     `json:"ai_move,omitempty"`
}

// Notice is a plain informational message.
type Notice struct {
	Message  string `json:"message"`
	PlayerID string `json:"player_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ErrorMessage is sent before a connection is refused.
type ErrorMessage struct {
	Error string `json:"error"`
}

// MoveResult is the outcome of SubmitMove.
type MoveResult struct {
	State    StateMessage
	Accepted bool
	Finished bool
}

func newStateMessage(game *entity.Game, note string) StateMessage {
	message := StateMessage{
		Board:      game.Board.Rows(),
		Status:     game.Label,
		GameStatus: game.Status,
		Message:    note,
	}

	if game.Status == entity.StatusWin {
		message.Winner = game.Winner
		message.LineType = game.Line
		message.Cells = game.Cells
	}

	return message
}

// finishNote - the note for a terminal game, empty while it is ongoing.
func finishNote(game *entity.Game) string {
	switch game.Status {
	case entity.StatusWin:
		return fmt.Sprintf("Win details: type=%s, cells=%s", game.Line, formatCells(game.Cells))
	case entity.StatusTie:
		return NoteTie
	default:
		return ""
	}
}

func formatCells(cells []tictactoe.Cell) string {
	parts := make([]string, 0, len(cells))
	for _, cell := range cells {
		parts = append(parts, fmt.Sprintf("(%d, %d)", cell.Row, cell.Col))
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

func aiPlayedNote(move Coordinates) string {
	return fmt.Sprintf(" AI played at (%d, %d).", move.Row, move.Col)
}
