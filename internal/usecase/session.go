package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

type Mode string

const (
	ModeOnline Mode = "online"
	ModeAI     Mode = "ai"
	ModeLocal  Mode = "local"
)

// AIPlayerID names the engine participant of an AI session. It is never reserved in the registry.
const AIPlayerID = "ai"

// Connection is a live client connection attached to a session.
type Connection interface {
	ID() string
	Send(ctx context.Context, payload any) error
	Close(reason string) error
	Closed() bool
}

// SessionConfig describes a session to create.
//
// Online sessions take two identities playing Players[0] and Players[1] in order.
// AI and local sessions take one identity; PlayerMark is the human mark in AI mode.
// An empty StartingMark picks one at random.
type SessionConfig struct {
	MatchID      string
	Mode         Mode
	Identities   []string
	Players      tictactoe.Players
	PlayerMark   string
	StartingMark string
}

// Session is one match with its state, participants and connections.
type Session struct {
	ID   string
	Mode Mode

	mu          sync.Mutex
	game        *entity.Game
	players     []*entity.Player
	starting    string
	connections map[string]Connection
	finished    bool
}

func newSession(config SessionConfig) (*Session, error) {
	config.MatchID = strings.TrimSpace(config.MatchID)
	if config.MatchID == "" {
		return nil, fmt.Errorf("%w: game_id must not be empty", apperror.ErrInvalidConfiguration)
	}

	if config.Players == (tictactoe.Players{}) {
		config.Players = tictactoe.DefaultPlayers
	}

	if !config.Players.Valid() {
		return nil, fmt.Errorf("%w: marks %q", apperror.ErrInvalidConfiguration, config.Players)
	}

	if config.StartingMark != "" && !config.Players.Has(config.StartingMark) {
		return nil, fmt.Errorf("%w: starting mark %q is not a player", apperror.ErrInvalidConfiguration, config.StartingMark)
	}

	players, err := sessionPlayers(config)
	if err != nil {
		return nil, err
	}

	game, err := entity.NewGame(config.Players, config.StartingMark)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	return &Session{
		ID:          config.MatchID,
		Mode:        config.Mode,
		game:        game,
		players:     players,
		starting:    game.Turn,
		connections: make(map[string]Connection),
	}, nil
}

func sessionPlayers(config SessionConfig) ([]*entity.Player, error) {
	identities := make([]string, 0, len(config.Identities))
	for _, identity := range config.Identities {
		identity = strings.TrimSpace(identity)
		if identity == "" {
			return nil, fmt.Errorf("%w: player id must not be empty", apperror.ErrInvalidConfiguration)
		}
		identities = append(identities, identity)
	}

	switch config.Mode {
	case ModeOnline:
		if len(identities) != 2 {
			return nil, fmt.Errorf("%w: online game needs two players", apperror.ErrInvalidConfiguration)
		}

		if identities[0] == identities[1] {
			return nil, fmt.Errorf("%w: player_x and player_o must be different", apperror.ErrInvalidConfiguration)
		}

		return []*entity.Player{
			{ID: identities[0], Mark: config.Players[0]},
			{ID: identities[1], Mark: config.Players[1]},
		}, nil

	case ModeAI:
		if len(identities) != 1 {
			return nil, fmt.Errorf("%w: ai game needs one player", apperror.ErrInvalidConfiguration)
		}

		mark := config.PlayerMark
		if mark == "" {
			mark = config.Players[0]
		}

		if !config.Players.Has(mark) {
			return nil, fmt.Errorf("%w: player mark %q", apperror.ErrInvalidConfiguration, mark)
		}

		if identities[0] == AIPlayerID {
			return nil, fmt.Errorf("%w: player id %q is reserved", apperror.ErrInvalidConfiguration, AIPlayerID)
		}

		return []*entity.Player{
			{ID: identities[0], Mark: mark},
			{ID: AIPlayerID, Mark: config.Players.Other(mark), Bot: true},
		}, nil

	case ModeLocal:
		if len(identities) != 1 {
			return nil, fmt.Errorf("%w: local game needs one player", apperror.ErrInvalidConfiguration)
		}

		if config.PlayerMark != "" && !config.Players.Has(config.PlayerMark) {
			return nil, fmt.Errorf("%w: player mark %q", apperror.ErrInvalidConfiguration, config.PlayerMark)
		}

		// the one identity plays both marks
		return []*entity.Player{{ID: identities[0], Mark: config.PlayerMark}}, nil

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", apperror.ErrInvalidConfiguration, config.Mode)
	}
}

// Identities - the human participants reserved by this session.
func (that *Session) Identities() []string {
	identities := make([]string, 0, len(that.players))
	for _, player := range that.players {
		if !player.IsBot() {
			identities = append(identities, player.ID)
		}
	}

	return identities
}

// State - a snapshot of the current state with an optional note.
func (that *Session) State(note string) StateMessage {
	that.mu.Lock()
	defer that.mu.Unlock()

	return newStateMessage(that.game, note)
}

// IsFinished - whether the match has ended and is being torn down.
func (that *Session) IsFinished() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.finished
}

// resolve - maps an empty identity to the single human of an AI or local session.
func (that *Session) resolve(identity string) string {
	if identity == "" && that.Mode != ModeOnline {
		return that.players[0].ID
	}

	return identity
}

func (that *Session) player(identity string) *entity.Player {
	for _, player := range that.players {
		if player.ID == identity && !player.IsBot() {
			return player
		}
	}

	return nil
}

func (that *Session) bot() *entity.Player {
	for _, player := range that.players {
		if player.IsBot() {
			return player
		}
	}

	return nil
}

// liveConnections - a copy of the connection set; the caller must hold the lock.
func (that *Session) liveConnections() []Connection {
	connections := make([]Connection, 0, len(that.connections))
	for _, conn := range that.connections {
		connections = append(connections, conn)
	}

	return connections
}
