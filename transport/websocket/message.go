package websocket

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/usecase"
)

const (
	errGameNotFound      = "Game not found."
	errGameFinished      = "Game already finished."
	errUnknownPlayer     = "Unknown player_id for this game."
	errPlayerConnected   = "This player is already connected."
	errActiveConnection  = "Game already has an active connection."
	errInvalidJoin       = "Invalid join payload."
	errPlayerIDRequired  = "player_id is required for websocket join."
	errInvalidJSONObject = "Invalid payload. Use JSON object."
	errInternal          = "Internal error."
)

// decodeObject - parses data as a JSON object keeping numbers verbatim.
func decodeObject(data []byte) (map[string]any, bool) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var object map[string]any
	if err := decoder.Decode(&object); err != nil || object == nil {
		return nil, false
	}

	return object, true
}

// parseJoin - the player_id of a join message, or the error text to send back.
func parseJoin(data []byte) (string, string) {
	object, ok := decodeObject(data)
	if !ok {
		return "", errInvalidJoin
	}

	playerID, ok := object["player_id"].(string)
	if !ok {
		return "", errPlayerIDRequired
	}

	return strings.TrimSpace(playerID), ""
}

// parseMove - the move in data, or the note when data is not a JSON object.
// Non-integer coordinates are flagged on the move for the manager to report.
func parseMove(data []byte, invalidObject string) (usecase.Move, string) {
	object, ok := decodeObject(data)
	if !ok {
		return usecase.Move{}, invalidObject
	}

	move := usecase.Move{}
	if playerID, ok := object["player_id"].(string); ok {
		move.PlayerID = playerID
	}

	row, rowOK := integer(object["row"])
	col, colOK := integer(object["col"])
	if !rowOK || !colOK {
		move.Invalid = usecase.NoteNotInteger
		return move, ""
	}

	move.Row, move.Col = row, col

	return move, ""
}

// integer - accepts only JSON integers; 1.0 and "1" are refused.
func integer(value any) (int, bool) {
	number, ok := value.(json.Number)
	if !ok {
		return 0, false
	}

	n, err := number.Int64()
	if err != nil {
		return 0, false
	}

	return int(n), true
}
