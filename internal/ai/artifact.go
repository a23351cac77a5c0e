package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

// ModelVersion is the only artifact version the engine reads.
const ModelVersion = 2

var ErrUnsupportedModel = errors.New("unsupported model format")

type artifact struct {
	Version int                `json:"version"`
	Players *tictactoe.Players `json:"players"`
	Entries []artifactEntry    `json:"entries"`
}

type artifactEntry struct {
	Board  []string  `json:"board"`
	Player string    `json:"player"`
	Values []float64 `json:"values"`
}

// MarshalModel - encodes the table as a versioned JSON artifact, entries sorted by position.
func MarshalModel(model *QModel) ([]byte, error) {
	players := model.Players
	out := artifact{
		Version: ModelVersion,
		Players: &players,
		Entries: make([]artifactEntry, 0, model.Len()),
	}

	model.Each(func(key StateKey, values Values) {
		out.Entries = append(out.Entries, artifactEntry{
			Board:  key.Board[:],
			Player: key.Player,
			Values: values[:],
		})
	})

	sort.Slice(out.Entries, func(i, j int) bool {
		return entryKey(out.Entries[i]) < entryKey(out.Entries[j])
	})

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}

	return data, nil
}

// UnmarshalModel - decodes an artifact, rejecting unknown versions and malformed entries.
func UnmarshalModel(data []byte) (*QModel, error) {
	var in artifact
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedModel, err)
	}

	if in.Version != ModelVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedModel, in.Version)
	}

	if in.Players == nil || !in.Players.Valid() {
		return nil, fmt.Errorf("%w: invalid players", ErrUnsupportedModel)
	}

	model := NewQModel(*in.Players)
	for i, entry := range in.Entries {
		if len(entry.Board) != tictactoe.CellCount || len(entry.Values) != tictactoe.CellCount {
			return nil, fmt.Errorf("%w: entry %d has wrong shape", ErrUnsupportedModel, i)
		}

		if !model.Players.Has(entry.Player) {
			return nil, fmt.Errorf("%w: entry %d has unknown player %q", ErrUnsupportedModel, i, entry.Player)
		}

		var board tictactoe.Board
		for c, cell := range entry.Board {
			if cell != tictactoe.EmptyCell && !model.Players.Has(cell) {
				return nil, fmt.Errorf("%w: entry %d has unknown mark %q", ErrUnsupportedModel, i, cell)
			}
			board[c] = cell
		}

		var values Values
		copy(values[:], entry.Values)

		model.Set(board, entry.Player, values)
	}

	return model, nil
}

func entryKey(entry artifactEntry) string {
	var b strings.Builder
	for _, cell := range entry.Board {
		if cell == tictactoe.EmptyCell {
			cell = "."
		}
		b.WriteString(cell)
		b.WriteByte('|')
	}
	b.WriteString(entry.Player)

	return b.String()
}
