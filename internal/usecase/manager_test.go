package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-arena/internal/ai"
	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
	"github.com/rocketscienceinc/tictactoe-arena/internal/tictactoe"
)

var errBrokenPipe = errors.New("broken pipe")

type fakeConn struct {
	id string

	mu       sync.Mutex
	messages []any
	closed   bool
	closes   int
	reason   string
	failSend bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (that *fakeConn) ID() string { return that.id }

func (that *fakeConn) Send(_ context.Context, payload any) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.failSend {
		return errBrokenPipe
	}

	that.messages = append(that.messages, payload)

	return nil
}

func (that *fakeConn) Close(reason string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	that.closes++
	that.reason = reason

	return nil
}

func (that *fakeConn) Closed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.closed
}

func (that *fakeConn) all() []any {
	that.mu.Lock()
	defer that.mu.Unlock()

	return slices.Clone(that.messages)
}

func (that *fakeConn) last() any {
	messages := that.all()
	if len(messages) == 0 {
		return nil
	}

	return messages[len(messages)-1]
}

// lastState - the most recent state message received.
func (that *fakeConn) lastState(t *testing.T) StateMessage {
	t.Helper()

	messages := that.all()
	for i := len(messages) - 1; i >= 0; i-- {
		if state, ok := messages[i].(StateMessage); ok {
			return state
		}
	}

	require.Fail(t, "no state message received")

	return StateMessage{}
}

// scriptedBot plays the given cells in order, skipping occupied ones.
type scriptedBot struct {
	mu    sync.Mutex
	cells []int
	calls int
}

func (that *scriptedBot) MakeTurn(game *entity.Game, mark string) (tictactoe.Cell, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.calls++
	for len(that.cells) > 0 {
		cell := that.cells[0]
		that.cells = that.cells[1:]

		if err := game.MakeTurn(mark, cell); err == nil {
			return tictactoe.CellOf(cell), nil
		}
	}

	return tictactoe.Cell{}, apperror.ErrNoLegalAction
}

func (that *scriptedBot) Players() tictactoe.Players {
	return tictactoe.DefaultPlayers
}

func newTestManager(bot botPlayer) *Manager {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return NewManager(logger, NewRegistry(), bot)
}

func onlineConfig(matchID, x, o string) SessionConfig {
	return SessionConfig{
		MatchID:      matchID,
		Mode:         ModeOnline,
		Identities:   []string{x, o},
		StartingMark: tictactoe.PlayerX,
	}
}

// startOnline - creates an online game and attaches both players.
func startOnline(t *testing.T, manager *Manager) (*fakeConn, *fakeConn) {
	t.Helper()
	ctx := context.Background()

	_, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
	require.NoError(t, err)

	alice, bob := newFakeConn("c-alice"), newFakeConn("c-bob")
	require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", alice))
	require.NoError(t, manager.AttachConnection(ctx, "g1", "bob", bob))

	return alice, bob
}

func TestManager_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("Duplicate match id fails without touching the first session", func(t *testing.T) {
		// Given: an active match g1
		manager := newTestManager(nil)
		first, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
		require.NoError(t, err)
		before := first.State("")

		// When: creating g1 again with fresh identities
		_, err = manager.CreateSession(ctx, onlineConfig("g1", "carol", "dave"))

		// Then: the call fails and nothing changed
		require.ErrorIs(t, err, apperror.ErrDuplicateMatch)
		assert.Equal(t, before, first.State(""))
		assert.Equal(t, 1, manager.Active())

		// And: the rejected identities were not reserved
		_, err = manager.CreateSession(ctx, onlineConfig("g2", "carol", "dave"))
		require.NoError(t, err)
	})

	t.Run("Identity bound to another match is refused", func(t *testing.T) {
		manager := newTestManager(nil)
		_, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
		require.NoError(t, err)

		_, err = manager.CreateSession(ctx, SessionConfig{MatchID: "g2", Mode: ModeLocal, Identities: []string{"bob"}})

		require.ErrorIs(t, err, apperror.ErrDuplicateIdentity)
		assert.Equal(t, 1, manager.Active())
	})

	t.Run("Ids are trimmed", func(t *testing.T) {
		manager := newTestManager(nil)

		session, err := manager.CreateSession(ctx, onlineConfig("  g1 ", " alice", "bob  "))

		require.NoError(t, err)
		assert.Equal(t, "g1", session.ID)
		assert.Equal(t, []string{"alice", "bob"}, session.Identities())
	})

	invalid := []struct {
		name   string
		config SessionConfig
	}{
		{name: "starting mark is not a player", config: SessionConfig{
			MatchID: "g", Mode: ModeOnline, Identities: []string{"a", "b"}, StartingMark: "Z",
		}},
		{name: "identical identities", config: SessionConfig{
			MatchID: "g", Mode: ModeOnline, Identities: []string{"a", "a"},
		}},
		{name: "one identity for online", config: SessionConfig{
			MatchID: "g", Mode: ModeOnline, Identities: []string{"a"},
		}},
		{name: "empty match id", config: SessionConfig{
			MatchID: "  ", Mode: ModeLocal, Identities: []string{"a"},
		}},
		{name: "empty identity", config: SessionConfig{
			MatchID: "g", Mode: ModeLocal, Identities: []string{" "},
		}},
		{name: "unknown player mark", config: SessionConfig{
			MatchID: "g", Mode: ModeAI, Identities: []string{"a"}, PlayerMark: "Z",
		}},
		{name: "same marks", config: SessionConfig{
			MatchID: "g", Mode: ModeLocal, Identities: []string{"a"}, Players: tictactoe.Players{"X", "X"},
		}},
		{name: "ai with marks the engine does not play", config: SessionConfig{
			MatchID: "g", Mode: ModeAI, Identities: []string{"a"}, Players: tictactoe.Players{"A", "B"}, PlayerMark: "A",
		}},
		{name: "unknown mode", config: SessionConfig{
			MatchID: "g", Mode: "tournament", Identities: []string{"a"},
		}},
	}

	for _, tt := range invalid {
		t.Run("Invalid: "+tt.name, func(t *testing.T) {
			manager := newTestManager(&scriptedBot{})

			_, err := manager.CreateSession(ctx, tt.config)

			require.ErrorIs(t, err, apperror.ErrInvalidConfiguration)
			assert.Zero(t, manager.Active())
		})
	}

	t.Run("AI game without an engine is refused", func(t *testing.T) {
		manager := newTestManager(nil)

		_, err := manager.CreateSession(ctx, SessionConfig{MatchID: "g", Mode: ModeAI, Identities: []string{"a"}})

		require.ErrorIs(t, err, apperror.ErrInvalidConfiguration)
	})

	t.Run("Concurrent creates with one id register exactly one", func(t *testing.T) {
		// Given: many goroutines racing for the same match id
		manager := newTestManager(nil)

		var (
			wg        sync.WaitGroup
			succeeded atomic.Int32
		)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				config := SessionConfig{MatchID: "race", Mode: ModeLocal, Identities: []string{fmt.Sprintf("p%d", i)}}
				if _, err := manager.CreateSession(ctx, config); err == nil {
					succeeded.Add(1)
				}
			}(i)
		}
		wg.Wait()

		// Then: one winner
		assert.Equal(t, int32(1), succeeded.Load())
		assert.Equal(t, 1, manager.Active())
	})
}

func TestManager_AttachConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("Online players wait for each other", func(t *testing.T) {
		// Given: an online match
		manager := newTestManager(nil)
		_, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
		require.NoError(t, err)

		// When: alice connects alone
		alice := newFakeConn("c-alice")
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", alice))

		// Then: she is told her role and to wait
		assert.Equal(t, []any{
			Notice{Message: NoteConnected, PlayerID: "alice", Role: tictactoe.PlayerX},
			Notice{Message: NoteWaiting},
		}, alice.all())

		// When: bob connects
		bob := newFakeConn("c-bob")
		require.NoError(t, manager.AttachConnection(ctx, "g1", "bob", bob))

		// Then: both receive the start state
		for _, conn := range []*fakeConn{alice, bob} {
			state := conn.lastState(t)
			assert.Equal(t, tictactoe.StatusOngoing, state.GameStatus)
			assert.Equal(t, "X turn", state.Status)
			assert.Contains(t, state.Message, "Both players connected. alice (X) starts.")
		}
		assert.Equal(t, Notice{Message: NoteConnected, PlayerID: "bob", Role: tictactoe.PlayerO}, bob.all()[0])
	})

	t.Run("Unknown match", func(t *testing.T) {
		manager := newTestManager(nil)

		err := manager.AttachConnection(ctx, "nope", "alice", newFakeConn("c"))

		require.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("Unknown identity", func(t *testing.T) {
		manager := newTestManager(nil)
		_, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
		require.NoError(t, err)

		err = manager.AttachConnection(ctx, "g1", "mallory", newFakeConn("c"))

		require.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("Second connection for one identity", func(t *testing.T) {
		manager := newTestManager(nil)
		_, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
		require.NoError(t, err)
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", newFakeConn("c1")))

		err = manager.AttachConnection(ctx, "g1", "alice", newFakeConn("c2"))

		require.ErrorIs(t, err, apperror.ErrDuplicateConnection)
	})

	t.Run("Second connection to a local game", func(t *testing.T) {
		manager := newTestManager(nil)
		_, err := manager.CreateSession(ctx, SessionConfig{MatchID: "g1", Mode: ModeLocal, Identities: []string{"solo"}})
		require.NoError(t, err)
		require.NoError(t, manager.AttachConnection(ctx, "g1", "", newFakeConn("c1")))

		err = manager.AttachConnection(ctx, "g1", "", newFakeConn("c2"))

		require.ErrorIs(t, err, apperror.ErrDuplicateConnection)
	})

	t.Run("Finished session", func(t *testing.T) {
		manager := newTestManager(nil)
		session, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
		require.NoError(t, err)

		session.mu.Lock()
		session.finished = true
		session.mu.Unlock()

		err = manager.AttachConnection(ctx, "g1", "alice", newFakeConn("c"))

		require.ErrorIs(t, err, apperror.ErrSessionClosed)
	})

	t.Run("AI opens when it starts", func(t *testing.T) {
		// Given: an AI game where the engine plays X and starts
		bot := &scriptedBot{cells: []int{4}}
		manager := newTestManager(bot)
		_, err := manager.CreateSession(ctx, SessionConfig{
			MatchID:      "g1",
			Mode:         ModeAI,
			Identities:   []string{"alice"},
			PlayerMark:   tictactoe.PlayerO,
			StartingMark: tictactoe.PlayerX,
		})
		require.NoError(t, err)

		// When: the player connects
		conn := newFakeConn("c")
		require.NoError(t, manager.AttachConnection(ctx, "g1", "", conn))

		// Then: the engine has already played the centre
		state := conn.lastState(t)
		require.NotNil(t, state.AIMove)
		assert.Equal(t, Coordinates{Row: 1, Col: 1}, *state.AIMove)
		assert.Equal(t, tictactoe.PlayerX, state.Board[1][1])
		assert.Equal(t, "O turn", state.Status)
		assert.Contains(t, state.Message, "You are O. X goes first.")
		assert.Contains(t, state.Message, "AI played at (1, 1).")
	})

	t.Run("AI waits when the player starts", func(t *testing.T) {
		bot := &scriptedBot{}
		manager := newTestManager(bot)
		_, err := manager.CreateSession(ctx, SessionConfig{
			MatchID: "g1", Mode: ModeAI, Identities: []string{"alice"}, StartingMark: tictactoe.PlayerX,
		})
		require.NoError(t, err)

		conn := newFakeConn("c")
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", conn))

		state := conn.lastState(t)
		assert.Nil(t, state.AIMove)
		assert.Zero(t, bot.calls)
		assert.Equal(t, [3][3]string{}, state.Board)
	})
}

func TestManager_SubmitMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Out of turn is noted and the board is unchanged", func(t *testing.T) {
		// Given: alice (X) is to move
		manager := newTestManager(nil)
		alice, bob := startOnline(t, manager)
		aliceMessages := len(alice.all())

		// When: bob plays
		result, err := manager.SubmitMove(ctx, "g1", "bob", Move{PlayerID: "bob", Row: 0, Col: 0})

		// Then: the move is rejected with a note to bob only
		require.NoError(t, err)
		assert.False(t, result.Accepted)
		assert.Equal(t, NoteNotYourTurn, result.State.Message)
		assert.Equal(t, [3][3]string{}, result.State.Board)
		assert.Equal(t, NoteNotYourTurn, bob.lastState(t).Message)
		assert.Len(t, alice.all(), aliceMessages)
	})

	t.Run("Non-integer coordinates are reported after the turn checks", func(t *testing.T) {
		// Given: alice (X) is to move
		manager := newTestManager(nil)
		startOnline(t, manager)
		invalid := Move{Invalid: NoteNotInteger}

		// When: bob sends bad coordinates out of turn
		invalid.PlayerID = "bob"
		result, err := manager.SubmitMove(ctx, "g1", "bob", invalid)

		// Then: the turn problem wins
		require.NoError(t, err)
		assert.Equal(t, NoteNotYourTurn, result.State.Message)

		// When: a claimed identity does not match
		invalid.PlayerID = "mallory"
		result, err = manager.SubmitMove(ctx, "g1", "alice", invalid)
		require.NoError(t, err)
		assert.Equal(t, NoteWrongIdentity, result.State.Message)

		// When: alice sends them on her turn
		invalid.PlayerID = "alice"
		result, err = manager.SubmitMove(ctx, "g1", "alice", invalid)

		// Then: the coordinates are the problem and nothing moved
		require.NoError(t, err)
		assert.False(t, result.Accepted)
		assert.Equal(t, NoteNotInteger, result.State.Message)
		assert.Equal(t, [3][3]string{}, result.State.Board)
	})

	t.Run("AI turn is reported before non-integer coordinates", func(t *testing.T) {
		manager := newTestManager(&scriptedBot{})
		_, err := manager.CreateSession(ctx, SessionConfig{
			MatchID: "g1", Mode: ModeAI, Identities: []string{"alice"}, StartingMark: tictactoe.PlayerO,
		})
		require.NoError(t, err)
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", newFakeConn("c")))

		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{Invalid: NoteNotInteger})

		require.NoError(t, err)
		assert.Equal(t, NoteAIPlaying, result.State.Message)
	})

	t.Run("Accepted moves reach both players", func(t *testing.T) {
		manager := newTestManager(nil)
		alice, bob := startOnline(t, manager)

		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{PlayerID: "alice", Row: 1, Col: 2})

		require.NoError(t, err)
		assert.True(t, result.Accepted)
		assert.Equal(t, NoteAccepted, result.State.Message)
		assert.Equal(t, "O turn", result.State.Status)
		for _, conn := range []*fakeConn{alice, bob} {
			assert.Equal(t, tictactoe.PlayerX, conn.lastState(t).Board[1][2])
		}
	})

	t.Run("Claimed identity must match the connection", func(t *testing.T) {
		manager := newTestManager(nil)
		startOnline(t, manager)

		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{PlayerID: "bob", Row: 0, Col: 0})

		require.NoError(t, err)
		assert.Equal(t, NoteWrongIdentity, result.State.Message)
		assert.False(t, result.Accepted)
	})

	t.Run("Moves wait for both players", func(t *testing.T) {
		manager := newTestManager(nil)
		_, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
		require.NoError(t, err)
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", newFakeConn("c")))

		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{PlayerID: "alice", Row: 0, Col: 0})

		require.NoError(t, err)
		assert.Equal(t, NoteWaitingPeers, result.State.Message)
	})

	t.Run("Out of range and occupied cells are noted", func(t *testing.T) {
		manager := newTestManager(nil)
		startOnline(t, manager)

		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{PlayerID: "alice", Row: 3, Col: 0})
		require.NoError(t, err)
		assert.Equal(t, NoteOutOfRange, result.State.Message)

		_, err = manager.SubmitMove(ctx, "g1", "alice", Move{PlayerID: "alice", Row: 0, Col: 0})
		require.NoError(t, err)

		result, err = manager.SubmitMove(ctx, "g1", "bob", Move{PlayerID: "bob", Row: 0, Col: 0})
		require.NoError(t, err)
		assert.Equal(t, NoteIgnored, result.State.Message)
		assert.False(t, result.Accepted)
		assert.Equal(t, "O turn", result.State.Status)
	})

	t.Run("Unknown match and unknown identity", func(t *testing.T) {
		manager := newTestManager(nil)
		startOnline(t, manager)

		_, err := manager.SubmitMove(ctx, "nope", "alice", Move{})
		require.ErrorIs(t, err, apperror.ErrNotFound)

		_, err = manager.SubmitMove(ctx, "g1", "mallory", Move{PlayerID: "mallory"})
		require.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("Finished session refuses moves", func(t *testing.T) {
		manager := newTestManager(nil)
		session, err := manager.CreateSession(ctx, SessionConfig{MatchID: "g1", Mode: ModeLocal, Identities: []string{"solo"}})
		require.NoError(t, err)

		session.mu.Lock()
		session.finished = true
		session.mu.Unlock()

		_, err = manager.SubmitMove(ctx, "g1", "", Move{Row: 0, Col: 0})

		require.ErrorIs(t, err, apperror.ErrSessionClosed)
		assert.Equal(t, [3][3]string{}, session.State("").Board)
	})

	t.Run("AI game ends with a top row win and is torn down", func(t *testing.T) {
		// Given: an AI game, player X starts, the engine answers on the middle row
		bot := &scriptedBot{cells: []int{3, 4}}
		manager := newTestManager(bot)
		_, err := manager.CreateSession(ctx, SessionConfig{
			MatchID: "g1", Mode: ModeAI, Identities: []string{"alice"}, StartingMark: tictactoe.PlayerX,
		})
		require.NoError(t, err)
		conn := newFakeConn("c")
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", conn))

		// When: the player opens at (0, 0)
		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{Row: 0, Col: 0})
		require.NoError(t, err)

		// Then: exactly one engine move follows
		require.NotNil(t, result.State.AIMove)
		assert.Equal(t, Coordinates{Row: 1, Col: 0}, *result.State.AIMove)
		assert.Equal(t, NoteAccepted+" AI played at (1, 0).", result.State.Message)
		assert.Equal(t, 1, bot.calls)

		// When: the player completes the top row
		_, err = manager.SubmitMove(ctx, "g1", "alice", Move{Row: 0, Col: 1})
		require.NoError(t, err)
		result, err = manager.SubmitMove(ctx, "g1", "alice", Move{Row: 0, Col: 2})
		require.NoError(t, err)

		// Then: the win is reported with its line
		assert.True(t, result.Finished)
		assert.Equal(t, tictactoe.StatusWin, result.State.GameStatus)
		assert.Equal(t, tictactoe.PlayerX, result.State.Winner)
		assert.Equal(t, tictactoe.LineRow, result.State.LineType)
		assert.Equal(t, []tictactoe.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}, result.State.Cells)
		assert.Equal(t, "Win details: type=row, cells=[(0, 0), (0, 1), (0, 2)]", result.State.Message)
		assert.Nil(t, result.State.AIMove)
		assert.Equal(t, 2, bot.calls)

		// And: the session is gone and the connection closed
		assert.Zero(t, manager.Active())
		assert.True(t, conn.Closed())
		assert.Equal(t, ReasonFinished, conn.reason)
		assert.Equal(t, Notice{Message: ReasonFinished}, conn.last())

		_, err = manager.SubmitMove(ctx, "g1", "alice", Move{Row: 2, Col: 2})
		require.ErrorIs(t, err, apperror.ErrNotFound)

		// And: the identity can be reused
		_, err = manager.CreateSession(ctx, SessionConfig{MatchID: "g1", Mode: ModeAI, Identities: []string{"alice"}})
		require.NoError(t, err)
	})

	t.Run("AI reply from the real engine lands on an empty cell", func(t *testing.T) {
		logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
		engine := ai.NewEngine(logger, nil, ai.NewSearcher(tictactoe.DefaultPlayers))
		manager := newTestManager(service.NewBotService(engine))

		_, err := manager.CreateSession(ctx, SessionConfig{
			MatchID: "g1", Mode: ModeAI, Identities: []string{"alice"}, StartingMark: tictactoe.PlayerX,
		})
		require.NoError(t, err)
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", newFakeConn("c")))

		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{Row: 0, Col: 0})

		require.NoError(t, err)
		require.NotNil(t, result.State.AIMove)
		move := *result.State.AIMove
		assert.NotEqual(t, Coordinates{Row: 0, Col: 0}, move)
		assert.Equal(t, tictactoe.PlayerO, result.State.Board[move.Row][move.Col])

		marks := 0
		for _, row := range result.State.Board {
			for _, cell := range row {
				if cell != tictactoe.EmptyCell {
					marks++
				}
			}
		}
		assert.Equal(t, 2, marks)
	})

	t.Run("AI blocks a threat with its own marks", func(t *testing.T) {
		// Given: an engine searching over A and B, and a session using the same marks
		logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
		marks := tictactoe.Players{"A", "B"}
		engine := ai.NewEngine(logger, nil, ai.NewSearcher(marks))
		manager := newTestManager(service.NewBotService(engine))

		_, err := manager.CreateSession(ctx, SessionConfig{
			MatchID: "g1", Mode: ModeAI, Identities: []string{"alice"}, Players: marks, PlayerMark: "A", StartingMark: "A",
		})
		require.NoError(t, err)
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", newFakeConn("c")))

		// When: A takes a corner, B answers in the centre, then A threatens the right column
		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{Row: 0, Col: 2})
		require.NoError(t, err)
		require.NotNil(t, result.State.AIMove)
		assert.Equal(t, Coordinates{Row: 1, Col: 1}, *result.State.AIMove)

		result, err = manager.SubmitMove(ctx, "g1", "alice", Move{Row: 1, Col: 2})
		require.NoError(t, err)

		// Then: B blocks the column
		require.NotNil(t, result.State.AIMove)
		assert.Equal(t, Coordinates{Row: 2, Col: 2}, *result.State.AIMove)
		assert.Equal(t, "B", result.State.Board[2][2])
	})

	t.Run("AI accepts its marks in either order", func(t *testing.T) {
		manager := newTestManager(&scriptedBot{})

		_, err := manager.CreateSession(ctx, SessionConfig{
			MatchID: "g1", Mode: ModeAI, Identities: []string{"alice"},
			Players: tictactoe.Players{tictactoe.PlayerO, tictactoe.PlayerX}, PlayerMark: tictactoe.PlayerO,
		})

		require.NoError(t, err)
	})

	t.Run("Player must wait while the AI is to move", func(t *testing.T) {
		manager := newTestManager(&scriptedBot{})
		session, err := manager.CreateSession(ctx, SessionConfig{
			MatchID: "g1", Mode: ModeAI, Identities: []string{"alice"}, StartingMark: tictactoe.PlayerO,
		})
		require.NoError(t, err)

		// the scripted bot has no cells, so the opening move fails and O stays to move
		require.NoError(t, manager.AttachConnection(ctx, "g1", "alice", newFakeConn("c")))

		result, err := manager.SubmitMove(ctx, "g1", "alice", Move{Row: 0, Col: 0})

		require.NoError(t, err)
		assert.Equal(t, NoteAIPlaying, result.State.Message)
		assert.Equal(t, [3][3]string{}, session.State("").Board)
	})

	t.Run("Local game alternates marks until a tie", func(t *testing.T) {
		manager := newTestManager(nil)
		session, err := manager.CreateSession(ctx, SessionConfig{
			MatchID: "g1", Mode: ModeLocal, Identities: []string{"solo"}, PlayerMark: tictactoe.PlayerO, StartingMark: tictactoe.PlayerX,
		})
		require.NoError(t, err)
		conn := newFakeConn("c")
		require.NoError(t, manager.AttachConnection(ctx, "g1", "solo", conn))

		var result *MoveResult
		for _, cell := range []int{0, 1, 2, 4, 3, 5, 7, 6, 8} {
			pos := tictactoe.CellOf(cell)
			result, err = manager.SubmitMove(ctx, "g1", "", Move{Row: pos.Row, Col: pos.Col})
			require.NoError(t, err)
			require.True(t, result.Accepted)
		}

		assert.True(t, result.Finished)
		assert.Equal(t, tictactoe.StatusTie, result.State.GameStatus)
		assert.Equal(t, "the players tied", result.State.Status)
		assert.Equal(t, NoteTie, result.State.Message)
		assert.True(t, session.IsFinished())
		assert.True(t, conn.Closed())
		assert.Zero(t, manager.Active())
	})

	t.Run("Moves on different matches run concurrently", func(t *testing.T) {
		manager := newTestManager(nil)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			matchID := fmt.Sprintf("g%d", i)
			_, err := manager.CreateSession(ctx, SessionConfig{MatchID: matchID, Mode: ModeLocal, Identities: []string{matchID}})
			require.NoError(t, err)
			require.NoError(t, manager.AttachConnection(ctx, matchID, "", newFakeConn(matchID)))

			wg.Add(1)
			go func() {
				defer wg.Done()
				for cell := 0; cell < tictactoe.CellCount; cell++ {
					pos := tictactoe.CellOf(cell)
					_, _ = manager.SubmitMove(ctx, matchID, "", Move{Row: pos.Row, Col: pos.Col})
				}
			}()
		}
		wg.Wait()

		// playing 0..8 in order completes the anti-diagonal on the seventh move
		assert.Zero(t, manager.Active())
	})

	t.Run("Moves on one match are applied one at a time", func(t *testing.T) {
		for round := 0; round < 50; round++ {
			// Given: an online match with both players attached
			manager := newTestManager(nil)
			startOnline(t, manager)
			session, err := manager.Session("g1")
			require.NoError(t, err)

			// When: both players hammer every cell from several goroutines
			var (
				wg       sync.WaitGroup
				accepted atomic.Int32
			)
			for i := 0; i < 8; i++ {
				identity := []string{"alice", "bob"}[i%2]

				wg.Add(1)
				go func() {
					defer wg.Done()
					for cell := 0; cell < tictactoe.CellCount; cell++ {
						pos := tictactoe.CellOf(cell)
						result, err := manager.SubmitMove(ctx, "g1", identity, Move{PlayerID: identity, Row: pos.Row, Col: pos.Col})
						if err == nil && result.Accepted {
							accepted.Add(1)
						}
					}
				}()
			}
			wg.Wait()

			// Then: every accepted move is exactly one mark on the board
			marks := 0
			for _, row := range session.State("").Board {
				for _, cell := range row {
					if cell != tictactoe.EmptyCell {
						marks++
					}
				}
			}

			assert.LessOrEqual(t, int(accepted.Load()), tictactoe.CellCount)
			assert.Equal(t, int(accepted.Load()), marks)
		}
	})
}

func TestManager_Teardown(t *testing.T) {
	ctx := context.Background()

	t.Run("Second teardown is a no-op", func(t *testing.T) {
		// Given: an online match with both players
		manager := newTestManager(nil)
		alice, bob := startOnline(t, manager)

		// When: tearing it down twice
		manager.Teardown(ctx, "g1", "shutdown")
		manager.Teardown(ctx, "g1", "shutdown")

		// Then: each connection was closed once with the reason
		for _, conn := range []*fakeConn{alice, bob} {
			assert.Equal(t, 1, conn.closes)
			assert.Equal(t, "shutdown", conn.reason)
			assert.Equal(t, Notice{Message: "shutdown"}, conn.last())
		}
		assert.Zero(t, manager.Active())

		// And: the match id and identities are free again
		_, err := manager.CreateSession(ctx, onlineConfig("g1", "alice", "bob"))
		require.NoError(t, err)
	})

	t.Run("Unknown match is a no-op", func(t *testing.T) {
		manager := newTestManager(nil)

		assert.NotPanics(t, func() { manager.Teardown(ctx, "nope", ReasonFinished) })
	})
}

func TestManager_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("Losing a player closes the match for the peer", func(t *testing.T) {
		// Given: both players attached
		manager := newTestManager(nil)
		alice, bob := startOnline(t, manager)

		// When: alice's connection drops
		alice.closed = true
		manager.Disconnect(ctx, "g1", "alice", alice)

		// Then: bob is told and closed, and the match is gone
		assert.Equal(t, Notice{Message: ReasonDisconnected}, bob.last())
		assert.True(t, bob.Closed())
		assert.Equal(t, ReasonDisconnected, bob.reason)
		assert.Zero(t, manager.Active())
	})

	t.Run("A stale connection does not close the match", func(t *testing.T) {
		manager := newTestManager(nil)
		startOnline(t, manager)

		manager.Disconnect(ctx, "g1", "alice", newFakeConn("someone-else"))

		assert.Equal(t, 1, manager.Active())
	})

	t.Run("Unknown match is ignored", func(t *testing.T) {
		manager := newTestManager(nil)

		assert.NotPanics(t, func() { manager.Disconnect(ctx, "nope", "alice", newFakeConn("c")) })
	})
}

func TestManager_Broadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("Closed and failing connections are skipped", func(t *testing.T) {
		// Given: alice is closed and bob's sends fail
		manager := newTestManager(nil)
		alice, bob := startOnline(t, manager)
		session, err := manager.Session("g1")
		require.NoError(t, err)

		aliceMessages := len(alice.all())
		alice.closed = true
		bob.failSend = true

		// When: broadcasting
		assert.NotPanics(t, func() { manager.Broadcast(ctx, session, Notice{Message: "hello"}) })

		// Then: nothing reached alice
		assert.Len(t, alice.all(), aliceMessages)
	})
}

func TestManager_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("Note goes to the requester only", func(t *testing.T) {
		manager := newTestManager(nil)
		alice, bob := startOnline(t, manager)
		bobMessages := len(bob.all())

		err := manager.Reject(ctx, "g1", "alice", NoteNotInteger)

		require.NoError(t, err)
		assert.Equal(t, NoteNotInteger, alice.lastState(t).Message)
		assert.Len(t, bob.all(), bobMessages)
	})

	t.Run("Unknown match", func(t *testing.T) {
		manager := newTestManager(nil)

		err := manager.Reject(ctx, "nope", "alice", NoteNotInteger)

		require.ErrorIs(t, err, apperror.ErrNotFound)
	})
}
