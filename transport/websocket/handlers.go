package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/usecase"
)

// handleOnline - one of two players: join with player_id, then {player_id, row, col} moves.
func (that *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleOnline")

	conn := that.accept(w, r)
	if conn == nil {
		return
	}

	ctx := r.Context()
	matchID := chi.URLParam(r, "gameID")

	session, err := that.manager.Session(matchID)
	if err != nil {
		that.refuse(ctx, conn, errGameNotFound)
		return
	}

	if session.IsFinished() {
		that.refuse(ctx, conn, errGameFinished)
		return
	}

	_, data, err := conn.ws.Read(ctx)
	if err != nil {
		conn.lost()
		return
	}

	identity, problem := parseJoin(data)
	if problem != "" {
		that.refuse(ctx, conn, problem)
		return
	}

	if err = that.manager.AttachConnection(ctx, matchID, identity, conn); err != nil {
		log.Info("join refused", "game_id", matchID, "player_id", identity, "error", err)
		that.refuse(ctx, conn, attachError(err, errPlayerConnected))
		return
	}

	that.readLoop(ctx, conn, matchID, identity, func(data []byte) bool {
		return that.handleMove(ctx, matchID, identity, data, errInvalidJSONObject)
	})
}

// handleSingle - the player of an AI or local match: {row, col} moves, identity bound by the server.
func (that *Server) handleSingle(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleSingle")

	conn := that.accept(w, r)
	if conn == nil {
		return
	}

	ctx := r.Context()
	matchID := chi.URLParam(r, "gameID")

	if err := that.manager.AttachConnection(ctx, matchID, "", conn); err != nil {
		log.Info("connection refused", "game_id", matchID, "error", err)
		that.refuse(ctx, conn, attachError(err, errActiveConnection))
		return
	}

	that.readLoop(ctx, conn, matchID, "", func(data []byte) bool {
		return that.handleMove(ctx, matchID, "", data, usecase.NoteInvalidPayload)
	})
}

// handleMove - submits one message; false once the match is gone.
func (that *Server) handleMove(ctx context.Context, matchID, identity string, data []byte, invalidObject string) bool {
	move, note := parseMove(data, invalidObject)
	if note != "" {
		if err := that.manager.Reject(ctx, matchID, identity, note); err != nil {
			return !isGone(err)
		}

		return true
	}

	result, err := that.manager.SubmitMove(ctx, matchID, identity, move)
	if err != nil {
		if isGone(err) {
			return false
		}

		that.logger.Error("move failed", "game_id", matchID, "error", err)

		return true
	}

	return !result.Finished
}

func isGone(err error) bool {
	return errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrSessionClosed)
}

func attachError(err error, duplicate string) string {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return errGameNotFound
	case errors.Is(err, apperror.ErrSessionClosed):
		return errGameFinished
	case errors.Is(err, apperror.ErrUnauthorized):
		return errUnknownPlayer
	case errors.Is(err, apperror.ErrDuplicateConnection):
		return duplicate
	default:
		return errInternal
	}
}
