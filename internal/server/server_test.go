package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/shellgame/internal/game"
	"github.com/lox/shellgame/internal/gameid"
	"github.com/lox/shellgame/internal/randutil"
	"github.com/lox/shellgame/internal/scorestore"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

type testServer struct {
	t     *testing.T
	srv   *Server
	http  *httptest.Server
	clock *quartz.Mock
	store *scorestore.Memory
	seeds atomic.Int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		t:     t,
		clock: quartz.NewMock(t),
		store: scorestore.NewMemory(),
	}
	ts.srv = NewServer("127.0.0.1:0", testLogger(), func(opts ...game.Option) *game.Engine {
		return game.NewEngine(append([]game.Option{
			game.WithClock(ts.clock),
			game.WithStore(ts.store),
			game.WithRand(randutil.New(ts.seeds.Add(1))),
		}, opts...)...)
	})
	ts.http = httptest.NewServer(ts.srv.Handler())
	t.Cleanup(func() {
		_ = ts.srv.Stop()
		ts.http.Close()
	})
	return ts
}

func (ts *testServer) dial() *websocket.Conn {
	ts.t.Helper()
	conn, _, err := ts.dialQuery("")
	require.NoError(ts.t, err)
	return conn
}

func (ts *testServer) dialQuery(query string) (*websocket.Conn, *http.Response, error) {
	ts.t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		ts.t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

// upgradedConn returns the server side of a fresh WebSocket connection.
func upgradedConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case conn := <-conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("server never upgraded")
		return nil
	}
}

func (ts *testServer) next() {
	ts.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, w := ts.clock.AdvanceNext()
	w.MustWait(ctx)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readSnapshot(t *testing.T, conn *websocket.Conn) game.Snapshot {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeSnapshot, msg.Type)
	var s game.Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &s))
	return s
}

func readAck(t *testing.T, conn *websocket.Conn) AckData {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeAck, msg.Type)
	var ack AckData
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	return ack
}

func sendCommand(t *testing.T, conn *websocket.Conn, command string, position int) {
	t.Helper()
	msg, err := NewMessage(MessageTypeCommand, CommandData{Command: command, Position: position})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func TestServerHealth(t *testing.T) {
	t.Parallel()
	srv := NewServer("127.0.0.1:0", testLogger(), func(opts ...game.Option) *game.Engine { return game.NewEngine(opts...) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "OK", w.Body.String())
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()
	srv := NewServer("127.0.0.1:0", testLogger(), func(opts ...game.Option) *game.Engine { return game.NewEngine(opts...) })

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	srv.handleStats(w, req)

	assert.Contains(t, w.Body.String(), "Connected players: 0")
	assert.Contains(t, w.Body.String(), "Sessions started: 0")
}

func TestConnectSendsIdleSnapshot(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := ts.dial()

	s := readSnapshot(t, conn)
	assert.Equal(t, game.Idle, s.Phase)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, 3, s.ContainerCount)
	assert.NotEmpty(t, s.GameID)

	require.Eventually(t, func() bool { return ts.srv.ConnectionCount() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestPlayRoundOverWebSocket(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := ts.dial()
	readSnapshot(t, conn)

	sendCommand(t, conn, CommandStart, 0)
	placing := readSnapshot(t, conn)
	assert.Equal(t, game.Placing, placing.Phase)
	assert.GreaterOrEqual(t, placing.TokenContainerID, 0, "token is shown while placing")
	assert.Equal(t, AckData{Command: CommandStart, Applied: true}, readAck(t, conn))

	ts.next()
	shuffling := readSnapshot(t, conn)
	assert.Equal(t, game.Shuffling, shuffling.Phase)
	assert.Equal(t, -1, shuffling.TokenContainerID, "token is hidden while shuffling")

	// Selecting before the shuffle settles is ignored.
	sendCommand(t, conn, CommandSelect, 0)
	assert.Equal(t, AckData{Command: CommandSelect, Applied: false}, readAck(t, conn))

	var s game.Snapshot
	for range 20 {
		ts.next()
		s = readSnapshot(t, conn)
		assert.Equal(t, -1, s.TokenContainerID)
		if s.Phase == game.Selecting {
			break
		}
	}
	require.Equal(t, game.Selecting, s.Phase)

	sendCommand(t, conn, CommandSelect, 1)
	revealed := readSnapshot(t, conn)
	assert.Equal(t, game.Revealed, revealed.Phase)
	assert.GreaterOrEqual(t, revealed.TokenContainerID, 0, "token is shown once revealed")
	require.NotNil(t, revealed.Outcome)
	assert.Equal(t, 1, revealed.Outcome.Position)
	assert.Equal(t, 1, revealed.Outcome.Level)
	assert.Equal(t, revealed.ContainerOrder[1] == revealed.TokenContainerID, revealed.Outcome.Correct)
	assert.Equal(t, AckData{Command: CommandSelect, Applied: true}, readAck(t, conn))
}

func TestCommandErrors(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := ts.dial()
	readSnapshot(t, conn)

	tests := []struct {
		name string
		msg  Message
		code string
	}{
		{"unknown command", Message{Type: MessageTypeCommand, Data: json.RawMessage(`{"command":"cheat"}`)}, "unknown_command"},
		{"bad payload", Message{Type: MessageTypeCommand, Data: json.RawMessage(`"start"`)}, "invalid_message"},
		{"unknown type", Message{Type: "join", Data: json.RawMessage(`{}`)}, "unknown_message_type"},
	}
	for _, tt := range tests {
		require.NoError(t, conn.WriteJSON(tt.msg), tt.name)
		msg := readMessage(t, conn)
		require.Equal(t, MessageTypeError, msg.Type, tt.name)
		var data ErrorData
		require.NoError(t, json.Unmarshal(msg.Data, &data))
		assert.Equal(t, tt.code, data.Code, tt.name)
	}
}

func TestAckCarriesRequestID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := ts.dial()
	readSnapshot(t, conn)

	msg, err := NewMessage(MessageTypeCommand, CommandData{Command: CommandAdvance})
	require.NoError(t, err)
	msg.RequestID = "req-1"
	require.NoError(t, conn.WriteJSON(msg))

	reply := readMessage(t, conn)
	assert.Equal(t, MessageTypeAck, reply.Type)
	assert.Equal(t, "req-1", reply.RequestID)
}

func TestEachConnectionPlaysItsOwnGame(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	a, b := ts.dial(), ts.dial()

	sa, sb := readSnapshot(t, a), readSnapshot(t, b)
	assert.NotEqual(t, sa.GameID, sb.GameID)

	sendCommand(t, a, CommandStart, 0)
	assert.Equal(t, game.Placing, readSnapshot(t, a).Phase)
	readAck(t, a)

	// b's game is untouched: its next message is the reply to its own command.
	sendCommand(t, b, CommandRestart, 0)
	assert.Equal(t, AckData{Command: CommandRestart, Applied: false}, readAck(t, b))
}

func TestDisconnectReleasesEngine(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	conn := ts.dial()
	readSnapshot(t, conn)
	sendCommand(t, conn, CommandStart, 0)
	readSnapshot(t, conn)
	readAck(t, conn)

	require.Eventually(t, func() bool { return ts.srv.ConnectionCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ts.srv.ConnectionCount() == 0 }, 5*time.Second, 10*time.Millisecond)

	// The engine's pending placing timer was cancelled.
	_, ok := ts.clock.Peek()
	assert.False(t, ok)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()
	srv := NewServer("127.0.0.1:0", testLogger(), func(opts ...game.Option) *game.Engine { return game.NewEngine(opts...) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestResumeWithGameID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	id := gameid.Generate()

	conn, _, err := ts.dialQuery("game=" + id)
	require.NoError(t, err)

	assert.Equal(t, id, readSnapshot(t, conn).GameID)
}

func TestRejectsInvalidGameID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	for _, id := range []string{"nope", gameid.Encode(uuid.New())} {
		_, resp, err := ts.dialQuery("game=" + id)
		require.Error(t, err, id)
		require.NotNil(t, resp, id)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, id)
		_ = resp.Body.Close()
	}
	assert.Zero(t, ts.srv.ConnectionCount())
}

func TestConnectionAddedAfterStopIsReleased(t *testing.T) {
	t.Parallel()
	srv := NewServer("127.0.0.1:0", testLogger(), func(opts ...game.Option) *game.Engine { return game.NewEngine(opts...) })
	srv.Handler()
	require.NoError(t, srv.Stop())

	clock := quartz.NewMock(t)
	engine := game.NewEngine(game.WithClock(clock))
	conn := NewConnection(upgradedConn(t), engine, testLogger())
	require.True(t, engine.Start())

	assert.False(t, srv.add(conn))
	assert.Zero(t, srv.ConnectionCount())

	select {
	case <-conn.Done():
	default:
		t.Fatal("connection left open")
	}
	_, pending := clock.Peek()
	assert.False(t, pending, "engine timer chain still armed")
}
