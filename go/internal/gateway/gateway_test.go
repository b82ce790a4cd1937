package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/difficulty"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/puzzle"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/room"
	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/session"
)

type testServer struct {
	srv   *httptest.Server
	rooms *room.Manager
	cm    *ConnectionManager
	svc   *Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := puzzle.DefaultRegistry()
	catalog, err := difficulty.Load("", reg)
	require.NoError(t, err)

	cm := NewConnectionManager(DefaultConnectionConfig())
	rooms := room.NewManager(session.NewEngine(reg, 3), catalog,
		room.WithClock(clockwork.NewFakeClock()),
		room.WithNotifier(cm),
	)
	svc := NewService(cm, rooms, catalog)

	r := chi.NewRouter()
	svc.RegisterRoutes(r)
	srv := httptest.NewServer(r)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
		rooms.Shutdown()
	})
	return &testServer{srv: srv, rooms: rooms, cm: cm, svc: svc}
}

// frame is any server message: an ack or an event.
type frame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

type client struct {
	t        *testing.T
	conn     *websocket.Conn
	playerID string
	token    string
	resumed  bool
	seq      int
	events   []frame
}

func (ts *testServer) dial(t *testing.T, token string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	if token != "" {
		url += "?session=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn}
	first := c.next()
	require.Equal(t, "session", first.Type)
	var s sessionData
	require.NoError(t, json.Unmarshal(first.Data, &s))
	c.playerID = s.PlayerID
	c.token = s.SessionToken
	c.resumed = s.Resumed
	return c
}

func (c *client) next() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(c.t, c.conn.ReadJSON(&f))
	return f
}

// request sends one request and returns its ack, keeping any events seen on the way.
func (c *client) request(requestType string, payload any) frame {
	c.t.Helper()
	c.seq++
	id := fmt.Sprintf("req-%d", c.seq)
	msg := map[string]any{"id": id, "type": requestType}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(c.t, c.conn.WriteJSON(msg))
	for {
		f := c.next()
		if f.Type == eventTypeAck && f.ID == id {
			return f
		}
		c.events = append(c.events, f)
	}
}

// waitEvent returns the first event of the given type, reading more frames if needed.
func (c *client) waitEvent(eventType string) frame {
	c.t.Helper()
	for i, f := range c.events {
		if f.Type == eventType {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return f
		}
	}
	for {
		f := c.next()
		if f.Type == eventType {
			return f
		}
		c.events = append(c.events, f)
	}
}

func (c *client) ok(requestType string, payload any) json.RawMessage {
	c.t.Helper()
	ack := c.request(requestType, payload)
	require.True(c.t, ack.OK, "%s failed: %s", requestType, ack.Error)
	return ack.Data
}

func TestSessionIssuedAndResumed(t *testing.T) {
	ts := newTestServer(t)

	a := ts.dial(t, "")
	assert.NotEmpty(t, a.playerID)
	assert.NotEmpty(t, a.token)
	assert.NotEqual(t, a.playerID, a.token)
	assert.False(t, a.resumed)

	var created roomAck
	require.NoError(t, json.Unmarshal(a.ok(RequestCreateRoom, nil), &created))
	b := ts.dial(t, "")
	b.ok(RequestJoinRoom, map[string]string{"roomCode": created.RoomCode})

	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool {
		v, err := ts.rooms.Room(created.RoomCode)
		return err == nil && !v.Players[0].IsConnected
	}, 2*time.Second, 10*time.Millisecond)

	// The player id is public in every room view and must not resume anything.
	impostor := ts.dial(t, a.playerID)
	assert.False(t, impostor.resumed)
	assert.NotEqual(t, a.playerID, impostor.playerID)

	again := ts.dial(t, a.token)
	assert.Equal(t, a.playerID, again.playerID)
	assert.Equal(t, a.token, again.token)
	assert.True(t, again.resumed)
	v, err := ts.rooms.Room(created.RoomCode)
	require.NoError(t, err)
	assert.True(t, v.Players[0].IsConnected)

	bogus := ts.dial(t, "not-a-token")
	assert.False(t, bogus.resumed)
	assert.NotEqual(t, "not-a-token", bogus.playerID)
}

func TestTokenForgottenOutsideRoom(t *testing.T) {
	ts := newTestServer(t)
	sessions := ts.svc.wsHandler.sessions

	a := ts.dial(t, "")
	require.Eventually(t, func() bool { return sessions.len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool { return sessions.len() == 0 }, 2*time.Second, 10*time.Millisecond)

	again := ts.dial(t, a.token)
	assert.False(t, again.resumed)
	assert.NotEqual(t, a.playerID, again.playerID)
}

func TestFullGameOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	host := ts.dial(t, "")
	guest := ts.dial(t, "")

	var created roomAck
	require.NoError(t, json.Unmarshal(host.ok(RequestCreateRoom, nil), &created))
	assert.Len(t, created.RoomCode, 4)
	assert.Equal(t, host.playerID, created.PlayerID)

	var joined roomAck
	require.NoError(t, json.Unmarshal(guest.ok(RequestJoinRoom, map[string]string{"roomCode": strings.ToLower(created.RoomCode)}), &joined))
	assert.Len(t, joined.Room.Players, 2)

	host.ok(RequestSetName, map[string]string{"name": "Host"})
	host.ok(RequestSetDifficulty, map[string]string{"difficulty": "defeat-test"})
	host.ok(RequestToggleReady, nil)
	guest.ok(RequestToggleReady, nil)

	host.events = nil
	var started room.View
	require.NoError(t, json.Unmarshal(host.ok(RequestStartGame, nil), &started))
	assert.Equal(t, room.PhasePlaying, started.Phase)

	// Events raised by a request reach the caller before its ack.
	var sawPlaying bool
	for _, f := range host.events {
		if f.Type != room.EventRoomUpdated {
			continue
		}
		var v room.View
		require.NoError(t, json.Unmarshal(f.Data, &v))
		sawPlaying = sawPlaying || v.Phase == room.PhasePlaying
	}
	assert.True(t, sawPlaying, "room-updated for the started game should precede the ack")
	guest.waitEvent(room.EventGameStateUpdated)

	var solution map[string]any
	require.NoError(t, json.Unmarshal(guest.ok(RequestPuzzleSolution, nil), &solution))
	assert.Equal(t, "wires", solution["puzzleType"])

	var skipped successAck
	require.NoError(t, json.Unmarshal(host.ok(RequestSkipPuzzle, nil), &skipped))
	assert.True(t, skipped.Success)

	for _, c := range []*client{host, guest} {
		over := c.waitEvent(room.EventGameOver)
		var data room.GameOverData
		require.NoError(t, json.Unmarshal(over.Data, &data))
		assert.True(t, data.Victory)
		assert.Equal(t, 1, data.Completed)
	}

	var again room.View
	require.NoError(t, json.Unmarshal(guest.ok(RequestPlayAgain, nil), &again))
	assert.Equal(t, room.PhaseLobby, again.Phase)
}

func TestPuzzleActionOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	host := ts.dial(t, "")
	guest := ts.dial(t, "")

	var created roomAck
	require.NoError(t, json.Unmarshal(host.ok(RequestCreateRoom, nil), &created))
	guest.ok(RequestJoinRoom, map[string]string{"roomCode": created.RoomCode})
	host.ok(RequestSetDifficulty, map[string]string{"difficulty": "test-wires"})
	host.ok(RequestToggleReady, nil)
	guest.ok(RequestToggleReady, nil)
	host.ok(RequestStartGame, nil)

	var report session.SolutionReport
	require.NoError(t, json.Unmarshal(host.ok(RequestPuzzleSolution, nil), &report))
	var answer puzzle.WiresSolution
	raw, err := json.Marshal(report.Solution)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &answer))

	ack := guest.request(RequestPuzzleAction, map[string]any{
		"puzzleId": report.PuzzleID,
		"action":   map[string]any{"kind": "cut", "index": answer.CutIndex},
	})
	assert.False(t, ack.OK)
	assert.Equal(t, room.ErrNotDefuser.Error(), ack.Error)
	guest.waitEvent(eventTypeError)

	var result actionAck
	require.NoError(t, json.Unmarshal(host.ok(RequestPuzzleAction, map[string]any{
		"puzzleId": report.PuzzleID,
		"action":   map[string]any{"kind": "cut", "index": answer.CutIndex},
	}), &result))
	assert.True(t, result.Success)
	assert.True(t, result.Correct)
	assert.False(t, result.Strike)

	res := guest.waitEvent(room.EventPuzzleResult)
	var data room.PuzzleResultData
	require.NoError(t, json.Unmarshal(res.Data, &data))
	assert.Equal(t, report.PuzzleID, data.PuzzleID)
	assert.True(t, data.Correct)
}

func TestProtocolErrors(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t, "")

	ack := c.request(RequestJoinRoom, map[string]string{"roomCode": "ZZZZ"})
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, room.ErrRoomNotFound.Error())

	ack = c.request(RequestJoinRoom, nil)
	assert.False(t, ack.OK)
	assert.Equal(t, "invalid payload for join-room", ack.Error)

	ack = c.request("launch-missiles", nil)
	assert.False(t, ack.OK)
	assert.Equal(t, "unknown request type", ack.Error)

	ack = c.request(RequestToggleReady, nil)
	assert.False(t, ack.OK)
	assert.Equal(t, room.ErrNotInRoom.Error(), ack.Error)

	c.events = nil
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	f := c.waitEvent(eventTypeError)
	var e errorData
	require.NoError(t, json.Unmarshal(f.Data, &e))
	assert.Equal(t, malformedRequestMessage, e.Message)
}

func TestErrorMessageHidesConfigurationFaults(t *testing.T) {
	err := fmt.Errorf("validate: %w", puzzle.ErrUnknownPuzzleType)
	assert.Equal(t, internalErrorMessage, errorMessage(err))
	assert.Equal(t, room.ErrNotHost.Error(), errorMessage(room.ErrNotHost))
	assert.Equal(t, "cannot start game: need at least 2 players", errorMessage(&room.StartError{Reason: "need at least 2 players"}))
}

func TestStateEndpoints(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t, "")
	var created roomAck
	require.NoError(t, json.Unmarshal(c.ok(RequestCreateRoom, nil), &created))

	resp, err := http.Get(ts.srv.URL + "/api/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summaries []room.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, created.RoomCode, summaries[0].Code)

	resp, err = http.Get(ts.srv.URL + "/api/rooms/" + created.RoomCode)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v room.View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, room.PhaseLobby, v.Phase)

	resp, err = http.Get(ts.srv.URL + "/api/rooms/NOPE")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.srv.URL + "/api/difficulties")
	require.NoError(t, err)
	defer resp.Body.Close()
	var presets []difficultyInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&presets))
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "easy")
	assert.Contains(t, names, "test-maze")

	resp, err = http.Get(ts.srv.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ConnectedPlayers)
	assert.Equal(t, 1, stats.ActiveRooms)
}

func TestAdminService(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t, "")
	var created roomAck
	require.NoError(t, json.Unmarshal(c.ok(RequestCreateRoom, nil), &created))

	list := connect.NewClient[emptypb.Empty, structpb.Struct](http.DefaultClient, ts.srv.URL+AdminListRoomsProcedure)
	res, err := list.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	rooms := res.Msg.GetFields()["rooms"].GetListValue().GetValues()
	require.Len(t, rooms, 1)
	assert.Equal(t, created.RoomCode, rooms[0].GetStructValue().GetFields()["code"].GetStringValue())

	get := connect.NewClient[structpb.Struct, structpb.Struct](http.DefaultClient, ts.srv.URL+AdminGetRoomProcedure)
	req, err := structpb.NewStruct(map[string]any{"code": created.RoomCode})
	require.NoError(t, err)
	got, err := get.CallUnary(context.Background(), connect.NewRequest(req))
	require.NoError(t, err)
	assert.Equal(t, "lobby", got.Msg.GetFields()["phase"].GetStringValue())

	missing, err := structpb.NewStruct(map[string]any{"code": "NOPE"})
	require.NoError(t, err)
	_, err = get.CallUnary(context.Background(), connect.NewRequest(missing))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = get.CallUnary(context.Background(), connect.NewRequest(&structpb.Struct{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestSlowConnectionIsDropped(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.SendBufferSize = 1
	cm := NewConnectionManager(cfg)

	gone := make(chan string, 1)
	cm.OnLastClose(func(id string) { gone <- id })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := cm.upgrade(w, r, "slow")
		assert.NoError(t, err)
	}))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return cm.GetConnectionStats().TotalConnections == 1 }, time.Second, 5*time.Millisecond)

	// Nothing drains the send buffer, so the second message overflows it.
	for range 2 {
		cm.handleBroadcast(BroadcastMessage{RoomCode: "ROOM", EventType: "x", Recipients: []string{"slow"}, Data: []byte(`{}`)})
	}

	select {
	case id := <-gone:
		assert.Equal(t, "slow", id)
	case <-time.After(time.Second):
		t.Fatal("slow connection was not dropped")
	}
	assert.Equal(t, 0, cm.GetConnectionStats().TotalConnections)
}

// newStartedGame returns a service whose room "p1" (defuser, host) and "p2" are playing.
func newStartedGame(t *testing.T) (*Service, *room.Manager, *ConnectionManager, string) {
	t.Helper()
	reg := puzzle.DefaultRegistry()
	catalog, err := difficulty.Load("", reg)
	require.NoError(t, err)

	cm := NewConnectionManager(DefaultConnectionConfig())
	rooms := room.NewManager(session.NewEngine(reg, 3), catalog,
		room.WithClock(clockwork.NewFakeClock()),
		room.WithNotifier(cm),
	)
	t.Cleanup(rooms.Shutdown)
	svc := NewService(cm, rooms, catalog)

	created, err := rooms.CreateRoom("p1")
	require.NoError(t, err)
	_, err = rooms.JoinRoom(created.Code, "p2")
	require.NoError(t, err)
	for _, id := range []string{"p1", "p2"} {
		_, err := rooms.ToggleReady(id)
		require.NoError(t, err)
	}
	_, err = rooms.StartGame("p1")
	require.NoError(t, err)
	return svc, rooms, cm, created.Code
}

func fakeConnection(cm *ConnectionManager, id, playerID string) *Connection {
	c := &Connection{ID: id, PlayerID: playerID, Send: make(chan []byte, 16), Manager: cm}
	cm.registerConnection(c)
	return c
}

func TestLastConnectionClosingPausesGame(t *testing.T) {
	_, rooms, cm, code := newStartedGame(t)
	conn := fakeConnection(cm, "c1", "p1")

	cm.unregisterConnection(conn)

	v, err := rooms.Room(code)
	require.NoError(t, err)
	assert.Equal(t, room.PhasePaused, v.Phase)
	assert.False(t, v.Players[0].IsConnected)
}

func TestStaleLastCloseKeepsReconnectedPlayer(t *testing.T) {
	svc, rooms, cm, code := newStartedGame(t)
	old := fakeConnection(cm, "old", "p1")

	// A new socket for the same player lands between the last close and its disconnect.
	cm.OnLastClose(func(playerID string) {
		fakeConnection(cm, "new", playerID)
		_, err := rooms.JoinRoom(code, playerID)
		require.NoError(t, err)
		svc.playerGone(playerID)
	})
	cm.unregisterConnection(old)

	assert.Equal(t, 1, cm.GetConnectionStats().TotalConnections)
	v, err := rooms.Room(code)
	require.NoError(t, err)
	assert.Equal(t, room.PhasePlaying, v.Phase)
	assert.True(t, v.Players[0].IsConnected)
}
