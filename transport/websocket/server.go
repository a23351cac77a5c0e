package websocket

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-arena/internal/usecase"
)

const readLimit = 4096

type matchManager interface {
	Session(matchID string) (*usecase.Session, error)
	AttachConnection(ctx context.Context, matchID, identity string, conn usecase.Connection) error
	SubmitMove(ctx context.Context, matchID, identity string, move usecase.Move) (*usecase.MoveResult, error)
	Reject(ctx context.Context, matchID, identity, note string) error
	Disconnect(ctx context.Context, matchID, identity string, conn usecase.Connection)
}

type Server struct {
	logger  *slog.Logger
	manager matchManager
}

func New(logger *slog.Logger, manager matchManager) *Server {
	return &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,
	}
}

func (that *Server) Register(r chi.Router) {
	r.Get("/ws/online/{gameID}", that.handleOnline)
	r.Get("/ws/ai/{gameID}", that.handleSingle)
	r.Get("/ws/{gameID}", that.handleSingle)
}

// accept - upgrades the request; nil when the upgrade failed and a response was already written.
func (that *Server) accept(w http.ResponseWriter, r *http.Request) *Conn {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		that.logger.Error("failed to accept websocket", "error", err)
		return nil
	}

	ws.SetReadLimit(readLimit)

	return newConn(ws)
}

// refuse - sends an error message and closes the connection.
func (that *Server) refuse(ctx context.Context, conn *Conn, message string) {
	if err := conn.Send(ctx, usecase.ErrorMessage{Error: message}); err != nil {
		that.logger.Debug("failed to send error", "error", err)
	}

	_ = conn.Close(message)
}

// readLoop - feeds every message to handle until the connection drops or the match ends.
func (that *Server) readLoop(ctx context.Context, conn *Conn, matchID, identity string, handle func([]byte) bool) {
	log := that.logger.With("method", "readLoop", "game_id", matchID, "connection_id", conn.ID())

	for {
		_, data, err := conn.ws.Read(ctx)
		if err != nil {
			if !conn.Closed() {
				log.Info("connection lost", "error", err)
			}

			conn.lost()
			that.manager.Disconnect(context.WithoutCancel(ctx), matchID, identity, conn)

			return
		}

		if !handle(data) {
			return
		}
	}
}
