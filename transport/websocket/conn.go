package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

const writeTimeout = 5 * time.Second

// Conn adapts a websocket to the session manager. Writes are serialised.
type Conn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id: uuid.NewString(),
		ws: ws,
	}
}

func (that *Conn) ID() string {
	return that.id
}

func (that *Conn) Send(ctx context.Context, payload any) error {
	if that.closed.Load() {
		return apperror.ErrConnectionClosed
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := wsjson.Write(ctx, that.ws, payload); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Close - closes the socket with reason; later calls do nothing.
func (that *Conn) Close(reason string) error {
	if !that.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := that.ws.Close(websocket.StatusNormalClosure, reason); err != nil {
		return fmt.Errorf("failed to close websocket: %w", err)
	}

	return nil
}

func (that *Conn) Closed() bool {
	return that.closed.Load()
}

// lost - marks the connection dead after a read failure.
func (that *Conn) lost() {
	if that.closed.CompareAndSwap(false, true) {
		_ = that.ws.CloseNow()
	}
}
