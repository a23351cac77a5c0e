package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

type botPlayer interface {
	MakeTurn(game *entity.Game, mark string) (tictactoe.Cell, error)
	Players() tictactoe.Players
}

// Manager drives the lifecycle of every match: creation, connections, moves and teardown.
type Manager struct {
	logger   *slog.Logger
	registry Registry
	bot      botPlayer
}

func NewManager(logger *slog.Logger, registry Registry, bot botPlayer) *Manager {
	return &Manager{
		logger:   logger.With("component", "manager"),
		registry: registry,
		bot:      bot,
	}
}

// CreateSession - validates config and registers a new session with its identities.
func (that *Manager) CreateSession(_ context.Context, config SessionConfig) (*Session, error) {
	log := that.logger.With("method", "CreateSession")

	session, err := newSession(config)
	if err != nil {
		return nil, err
	}

	if session.bot() != nil {
		if that.bot == nil {
			return nil, fmt.Errorf("%w: no ai engine configured", apperror.ErrInvalidConfiguration)
		}

		// the search alternates over its own pair, so it cannot reason about other marks
		if marks := that.bot.Players(); !marks.SameMarks(session.game.Players) {
			return nil, fmt.Errorf("%w: ai plays marks %q, not %q",
				apperror.ErrInvalidConfiguration, marks, session.game.Players)
		}
	}

	if err = that.registry.Create(session); err != nil {
		return nil, err
	}

	log.Info("session created", "game_id", session.ID, "mode", session.Mode, "starting", session.starting)

	return session, nil
}

// Session - the active session for matchID.
func (that *Manager) Session(matchID string) (*Session, error) {
	session, ok := that.registry.Lookup(matchID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrNotFound, matchID)
	}

	return session, nil
}

// AttachConnection - binds conn to identity and sends the opening messages.
// AI and local sessions accept an empty identity for their single player.
func (that *Manager) AttachConnection(ctx context.Context, matchID, identity string, conn Connection) error {
	log := that.logger.With("method", "AttachConnection", "game_id", matchID)

	session, err := that.Session(matchID)
	if err != nil {
		return err
	}

	identity = session.resolve(identity)

	session.mu.Lock()

	if session.finished {
		session.mu.Unlock()
		return fmt.Errorf("%w: %s", apperror.ErrSessionClosed, matchID)
	}

	player := session.player(identity)
	if player == nil {
		session.mu.Unlock()
		return fmt.Errorf("%w: %q", apperror.ErrUnauthorized, identity)
	}

	if _, ok := session.connections[identity]; ok {
		session.mu.Unlock()
		return fmt.Errorf("%w: %q", apperror.ErrDuplicateConnection, identity)
	}

	session.connections[identity] = conn

	var (
		opening   []any
		broadcast bool
		finished  bool
	)

	switch session.Mode {
	case ModeOnline:
		opening = append(opening, Notice{Message: NoteConnected, PlayerID: identity, Role: player.Mark})

		if len(session.connections) < len(session.players) {
			opening = append(opening, Notice{Message: NoteWaiting})
		} else {
			broadcast = true
			starter := that.starter(session)
			note := fmt.Sprintf("Both players connected. %s (%s) starts. Send {'player_id': '...', 'row': 0, 'col': 0}.",
				starter, session.starting)
			opening = append(opening, newStateMessage(session.game, note))
		}

	case ModeAI:
		note := fmt.Sprintf("Game started. You are %s. %s goes first. Send moves as {'row': 0, 'col': 0}.",
			player.Mark, session.starting)

		move := that.playBot(session)
		if move != nil {
			note += aiPlayedNote(*move)
		}

		state := newStateMessage(session.game, note)
		state.AIMove = move
		opening = append(opening, state)

		finished = session.game.IsFinished()
		session.finished = finished

	default:
		note := fmt.Sprintf("Game started. %s goes first. Send moves as : {'row': 0, 'col': 0}.", session.starting)
		opening = append(opening, newStateMessage(session.game, note))
	}

	session.mu.Unlock()

	log.Info("connection attached", "player_id", identity, "connection_id", conn.ID())

	for i, message := range opening {
		if broadcast && i == len(opening)-1 {
			that.Broadcast(ctx, session, message)
			continue
		}

		if err = conn.Send(ctx, message); err != nil {
			log.Warn("failed to send opening message", "error", err)
		}
	}

	if finished {
		that.Teardown(ctx, matchID, ReasonFinished)
	}

	return nil
}

// SubmitMove - validates and applies one move, plays the AI reply, then broadcasts the result.
// A rejected move leaves the state unchanged and is reported back only to identity.
func (that *Manager) SubmitMove(ctx context.Context, matchID, identity string, move Move) (*MoveResult, error) {
	log := that.logger.With("method", "SubmitMove", "game_id", matchID)

	session, err := that.Session(matchID)
	if err != nil {
		return nil, err
	}

	identity = session.resolve(identity)

	session.mu.Lock()

	if session.finished {
		session.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", apperror.ErrSessionClosed, matchID)
	}

	player := session.player(identity)
	if player == nil {
		session.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", apperror.ErrUnauthorized, identity)
	}

	note, aiMove := that.applyMove(session, player, move)
	result := &MoveResult{Accepted: strings.HasPrefix(note, NoteAccepted)}

	if result.Accepted {
		if finish := finishNote(session.game); finish != "" {
			note = finish
		}
	}

	result.State = newStateMessage(session.game, note)
	result.State.AIMove = aiMove
	result.Finished = session.game.IsFinished()
	session.finished = result.Finished

	requester := session.connections[identity]

	session.mu.Unlock()

	if !result.Accepted {
		log.Debug("move rejected", "player_id", identity, "note", note)

		if requester != nil && !requester.Closed() {
			if err = requester.Send(ctx, result.State); err != nil {
				log.Warn("failed to send note", "error", err)
			}
		}

		return result, nil
	}

	log.Info("move applied", "player_id", identity, "row", move.Row, "col", move.Col, "status", result.State.GameStatus)

	that.Broadcast(ctx, session, result.State)

	if result.Finished {
		that.Teardown(ctx, matchID, ReasonFinished)
	}

	return result, nil
}

// applyMove - runs the checks and the move itself; the caller holds the session lock.
func (that *Manager) applyMove(session *Session, player *entity.Player, move Move) (string, *Coordinates) {
	game := session.game

	mark := player.Mark
	switch session.Mode {
	case ModeOnline:
		if move.PlayerID != player.ID {
			return NoteWrongIdentity, nil
		}

		if len(session.connections) < len(session.players) {
			return NoteWaitingPeers, nil
		}

		if mark != game.Turn {
			return NoteNotYourTurn, nil
		}

	case ModeAI:
		if mark != game.Turn {
			return NoteAIPlaying, nil
		}

	default:
		mark = game.Turn
	}

	if move.Invalid != "" {
		return move.Invalid, nil
	}

	if !tictactoe.InRange(move.Row, move.Col) {
		return NoteOutOfRange, nil
	}

	if err := game.MakeTurn(mark, tictactoe.CellIndex(move.Row, move.Col)); err != nil {
		if errors.Is(err, apperror.ErrNotYourTurn) {
			return NoteNotYourTurn, nil
		}

		return NoteIgnored, nil
	}

	if session.Mode != ModeAI {
		return NoteAccepted, nil
	}

	aiMove := that.playBot(session)
	if aiMove != nil {
		return NoteAccepted + aiPlayedNote(*aiMove), aiMove
	}

	return NoteAccepted, nil
}

// playBot - plays the engine's move when it is the engine's turn; the caller holds the session lock.
func (that *Manager) playBot(session *Session) *Coordinates {
	bot := session.bot()
	if bot == nil || that.bot == nil || !session.game.IsOngoing() || session.game.Turn != bot.Mark {
		return nil
	}

	cell, err := that.bot.MakeTurn(session.game, bot.Mark)
	if err != nil {
		that.logger.Error("ai failed to move", "game_id", session.ID, "error", err)
		return nil
	}

	return &Coordinates{Row: cell.Row, Col: cell.Col}
}

func (that *Manager) starter(session *Session) string {
	for _, player := range session.players {
		if player.Mark == session.starting {
			return player.ID
		}
	}

	return session.starting
}

// Reject - sends the current state with note to identity only, without touching the game.
func (that *Manager) Reject(ctx context.Context, matchID, identity, note string) error {
	session, err := that.Session(matchID)
	if err != nil {
		return err
	}

	identity = session.resolve(identity)

	session.mu.Lock()
	state := newStateMessage(session.game, note)
	conn := session.connections[identity]
	session.mu.Unlock()

	if conn == nil || conn.Closed() {
		return nil
	}

	if err = conn.Send(ctx, state); err != nil {
		return fmt.Errorf("failed to send note: %w", err)
	}

	return nil
}

// Broadcast - sends message to every live connection of the session; closed ones are skipped.
func (that *Manager) Broadcast(ctx context.Context, session *Session, message any) {
	log := that.logger.With("method", "Broadcast", "game_id", session.ID)

	session.mu.Lock()
	connections := session.liveConnections()
	session.mu.Unlock()

	for _, conn := range connections {
		if conn.Closed() {
			continue
		}

		if err := conn.Send(ctx, message); err != nil {
			log.Warn("failed to deliver message", "connection_id", conn.ID(), "error", err)
		}
	}
}

// Teardown - closes the remaining connections with reason and releases the match. Safe to call twice.
func (that *Manager) Teardown(ctx context.Context, matchID, reason string) {
	log := that.logger.With("method", "Teardown", "game_id", matchID)

	session, ok := that.registry.Remove(matchID)
	if !ok {
		return
	}

	session.mu.Lock()
	session.finished = true
	connections := session.liveConnections()
	clear(session.connections)
	session.mu.Unlock()

	for _, conn := range connections {
		if conn.Closed() {
			continue
		}

		if err := conn.Send(ctx, Notice{Message: reason}); err != nil {
			log.Debug("failed to send close reason", "connection_id", conn.ID(), "error", err)
		}

		if err := conn.Close(reason); err != nil {
			log.Debug("failed to close connection", "connection_id", conn.ID(), "error", err)
		}
	}

	log.Info("session closed", "reason", reason)
}

// Disconnect - handles the loss of conn; an unfinished match is closed for everyone.
func (that *Manager) Disconnect(ctx context.Context, matchID, identity string, conn Connection) {
	session, ok := that.registry.Lookup(matchID)
	if !ok {
		return
	}

	identity = session.resolve(identity)

	session.mu.Lock()
	current, attached := session.connections[identity]
	if !attached || current.ID() != conn.ID() {
		session.mu.Unlock()
		return
	}

	delete(session.connections, identity)
	finished := session.finished
	session.mu.Unlock()

	if finished {
		return
	}

	that.logger.Info("player disconnected", "game_id", matchID, "player_id", identity)

	that.Teardown(ctx, matchID, ReasonDisconnected)
}

// Active - number of live sessions.
func (that *Manager) Active() int {
	return that.registry.Len()
}
