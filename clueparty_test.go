/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/clueparty/clock"
	"github.com/Seednode/clueparty/room"
	"github.com/Seednode/clueparty/words"
)

func testConfig() *Config {
	cfg := &Config{}
	newCmd(cfg)
	cfg.rateLimit = 1000
	cfg.rateBurst = 1000
	return cfg
}

func startServer(t *testing.T, cfg *Config) (*Server, *httptest.Server) {
	t.Helper()

	bank, err := words.Default()
	require.NoError(t, err)

	s := newServer(cfg, bank, clock.Real())

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 16)

	mux := httprouter.New()
	s.register(ctx, mux, errs)

	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		s.registry.Close()
	})

	return s, ts
}

type frame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	OK    bool            `json:"ok"`
	Error string          `json:"error"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wsClient struct {
	t      *testing.T
	conn   *websocket.Conn
	seq    int
	events []frame
}

func dial(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) read() frame {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var f frame
	require.NoError(c.t, c.conn.ReadJSON(&f))

	return f
}

// request sends msg and returns its ack, keeping any events that arrive
// first.
func (c *wsClient) request(msg ClientMessage) frame {
	c.t.Helper()

	c.seq++
	msg.ID = fmt.Sprintf("req-%d", c.seq)
	require.NoError(c.t, c.conn.WriteJSON(msg))

	for {
		f := c.read()
		if f.Type == "ack" && f.ID == msg.ID {
			return f
		}
		if f.Type == "event" {
			c.events = append(c.events, f)
		}
	}
}

func (c *wsClient) ok(msg ClientMessage, into any) {
	c.t.Helper()

	f := c.request(msg)
	require.True(c.t, f.OK, "%s failed: %s", msg.Type, f.Error)

	if into != nil {
		require.NoError(c.t, json.Unmarshal(f.Data, into))
	}
}

// await returns the first event called name that satisfies match,
// looking at buffered events before reading new ones.
func (c *wsClient) await(name string, match func(json.RawMessage) bool) json.RawMessage {
	c.t.Helper()

	for i, f := range c.events {
		if f.Event == name && (match == nil || match(f.Data)) {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return f.Data
		}
	}

	for {
		f := c.read()
		if f.Type != "event" {
			continue
		}
		if f.Event == name && (match == nil || match(f.Data)) {
			return f.Data
		}
		c.events = append(c.events, f)
	}
}

func TestGatewayPlaysARound(t *testing.T) {
	_, ts := startServer(t, testConfig())

	host := dial(t, ts)
	guest := dial(t, ts)

	var hs room.Session
	host.ok(ClientMessage{Type: reqCreate, Name: "Alice", TargetScore: 25}, &hs)
	assert.Len(t, hs.RoomCode, room.CodeLength)
	assert.NotEmpty(t, hs.Token)

	var gs room.Session
	guest.ok(ClientMessage{Type: reqJoin, RoomCode: strings.ToLower(hs.RoomCode), Name: "Bob"}, &gs)
	assert.Equal(t, hs.RoomCode, gs.RoomCode)

	host.ok(ClientMessage{Type: reqSetTeam, Team: "blue"}, nil)
	guest.ok(ClientMessage{Type: reqSetTeam, Team: "red"}, nil)

	f := guest.request(ClientMessage{Type: reqBeginRound})
	assert.False(t, f.OK)
	assert.Equal(t, "not_host", f.Error)

	var offer room.OfferView
	host.ok(ClientMessage{Type: reqBeginRound}, &offer)
	assert.Equal(t, hs.PlayerID, offer.OfferedID)
	host.await(room.EventOfferPending, nil)

	var accepted room.AcceptedOfferView
	host.ok(ClientMessage{Type: reqAcceptOffer}, &accepted)
	require.Len(t, accepted.Board, words.DefaultBoardSize)

	var rv room.RoundView
	host.ok(ClientMessage{Type: reqStartRound}, &rv)
	assert.Equal(t, room.RoleClueGiver, rv.Role)

	var snap SnapshotData
	guest.ok(ClientMessage{Type: reqSnapshot}, &snap)
	require.NotNil(t, snap.Round)
	assert.Equal(t, room.RoleGuesser, snap.Round.Role)
	for _, tile := range snap.Round.Board {
		assert.Empty(t, tile.Word)
	}

	host.ok(ClientMessage{Type: reqSetClue, Text: "think"}, nil)
	guest.await(room.EventClueSync, nil)

	var res room.GuessResult
	host.ok(ClientMessage{Type: reqGuessText, Text: strings.ToUpper(accepted.Board[0].Word)}, &res)
	assert.True(t, res.Correct)
	assert.Equal(t, accepted.Board[0].ID, res.TileID)

	guest.await(room.EventRoomSync, func(raw json.RawMessage) bool {
		var v room.RoomView
		return json.Unmarshal(raw, &v) == nil && v.Scores.Blue == accepted.Board[0].Points
	})

	f = host.request(ClientMessage{Type: reqGuessTile, TileID: accepted.Board[0].ID})
	assert.Equal(t, "tile_already_guessed", f.Error)

	f = guest.request(ClientMessage{Type: reqEndGame})
	assert.Equal(t, "not_host", f.Error)

	host.ok(ClientMessage{Type: reqEndGame}, nil)
	guest.await(room.EventGameEnded, nil)

	host.ok(ClientMessage{Type: reqToLobby}, nil)
	host.ok(ClientMessage{Type: reqSnapshot}, &snap)
	assert.Equal(t, room.StatusLobby, snap.Room.Status)
	assert.Nil(t, snap.Round)
}

func TestGatewayRejectsBadRequests(t *testing.T) {
	_, ts := startServer(t, testConfig())

	c := dial(t, ts)

	f := c.request(ClientMessage{Type: reqSnapshot})
	assert.Equal(t, "not_in_room", f.Error)

	f = c.request(ClientMessage{Type: reqJoin, RoomCode: "ZZZZZZ"})
	assert.Equal(t, "room_not_found", f.Error)

	f = c.request(ClientMessage{Type: reqCreate, RoundSeconds: 1})
	assert.Equal(t, "invalid_settings", f.Error)

	c.ok(ClientMessage{Type: reqCreate, Name: "Alice"}, nil)

	f = c.request(ClientMessage{Type: "room:dance"})
	assert.Equal(t, "unknown_type", f.Error)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	bad := c.read()
	for bad.Type != "ack" {
		bad = c.read()
	}
	assert.Empty(t, bad.ID)
	assert.Equal(t, "bad_request", bad.Error)
}

func TestGatewayRateLimits(t *testing.T) {
	cfg := testConfig()
	cfg.rateLimit = 0.001
	cfg.rateBurst = 2

	_, ts := startServer(t, cfg)

	c := dial(t, ts)

	c.request(ClientMessage{Type: reqSnapshot})
	c.request(ClientMessage{Type: reqSnapshot})

	f := c.request(ClientMessage{Type: reqSnapshot})
	assert.Equal(t, "rate_limited", f.Error)
}

func TestGatewayRejoinAfterDrop(t *testing.T) {
	s, ts := startServer(t, testConfig())

	host := dial(t, ts)
	var hs room.Session
	host.ok(ClientMessage{Type: reqCreate, Name: "Alice"}, &hs)

	guest := dial(t, ts)
	var gs room.Session
	guest.ok(ClientMessage{Type: reqJoin, RoomCode: hs.RoomCode, Name: "Bob"}, &gs)

	require.NoError(t, guest.conn.Close())

	host.await(room.EventRoomSync, func(raw json.RawMessage) bool {
		var v room.RoomView
		return json.Unmarshal(raw, &v) == nil && v.ConnectedCount == 1
	})

	again := dial(t, ts)
	var rs room.Session
	again.ok(ClientMessage{Type: reqRejoin, RoomCode: hs.RoomCode, PlayerToken: gs.Token}, &rs)
	assert.Equal(t, gs.PlayerID, rs.PlayerID)

	r, err := s.registry.Get(hs.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 2, r.ConnectedCount())

	f := again.request(ClientMessage{Type: reqRejoin, RoomCode: hs.RoomCode, PlayerToken: "forged"})
	assert.Equal(t, "invalid_token", f.Error)
}

func TestGatewayKickClosesConnection(t *testing.T) {
	_, ts := startServer(t, testConfig())

	host := dial(t, ts)
	var hs room.Session
	host.ok(ClientMessage{Type: reqCreate, Name: "Alice"}, &hs)

	guest := dial(t, ts)
	var gs room.Session
	guest.ok(ClientMessage{Type: reqJoin, RoomCode: hs.RoomCode, Name: "Bob"}, &gs)

	host.ok(ClientMessage{Type: reqKick, PlayerID: gs.PlayerID}, nil)

	guest.await(room.EventKicked, nil)

	require.NoError(t, guest.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := guest.conn.ReadMessage()

	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce), "expected close, got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
}

func TestGatewayRejoinElsewhereReleasesOldSocket(t *testing.T) {
	_, ts := startServer(t, testConfig())

	first := dial(t, ts)
	var hs room.Session
	first.ok(ClientMessage{Type: reqCreate, Name: "Alice"}, &hs)

	second := dial(t, ts)
	second.ok(ClientMessage{Type: reqRejoin, RoomCode: hs.RoomCode, PlayerToken: hs.Token}, nil)

	// The old socket may already be closing. Whatever it manages to send
	// must not act as the player.
	if err := first.conn.WriteJSON(ClientMessage{ID: "stale", Type: reqSetTeam, Team: "red"}); err == nil {
		require.NoError(t, first.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		replaced := false
		for {
			var f frame
			err := first.conn.ReadJSON(&f)
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					assert.Equal(t, websocket.CloseNormalClosure, ce.Code)
				}
				break
			}
			if f.Type == "event" && f.Event == room.EventReplaced {
				replaced = true
			}
			if f.Type == "ack" && f.ID == "stale" {
				assert.False(t, f.OK)
				assert.Equal(t, "not_in_room", f.Error)
			}
		}
		assert.True(t, replaced)
	}

	var snap SnapshotData
	second.ok(ClientMessage{Type: reqSnapshot}, &snap)
	assert.Equal(t, 1, snap.Room.ConnectedCount)
	require.Len(t, snap.Room.Players, 1)
	assert.Empty(t, snap.Room.Players[0].Team)
	assert.Equal(t, hs.PlayerID, snap.Room.HostID)

	second.ok(ClientMessage{Type: reqSetTeam, Team: "blue"}, nil)
}

func TestGatewayLeaveUnbinds(t *testing.T) {
	_, ts := startServer(t, testConfig())

	c := dial(t, ts)
	c.ok(ClientMessage{Type: reqCreate, Name: "Alice"}, nil)
	c.ok(ClientMessage{Type: reqLeave}, nil)

	f := c.request(ClientMessage{Type: reqSnapshot})
	assert.Equal(t, "not_in_room", f.Error)
}

func TestRoomProbeAndQR(t *testing.T) {
	s, ts := startServer(t, testConfig())

	r, err := s.registry.Create(room.DefaultSettings())
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/rooms/" + strings.ToLower(r.Code()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var probe RoomProbe
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&probe))
	assert.Equal(t, r.Code(), probe.Code)
	assert.Zero(t, probe.ConnectedCount)

	qr, err := http.Get(ts.URL + "/rooms/" + r.Code() + "/qr")
	require.NoError(t, err)
	defer qr.Body.Close()

	require.Equal(t, http.StatusOK, qr.StatusCode)
	assert.Equal(t, "image/png", qr.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(qr.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	missing, err := http.Get(ts.URL + "/rooms/NOPE99")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestJoinURL(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/games"

	s := &Server{cfg: cfg}

	req := httptest.NewRequest(http.MethodGet, "http://party.example/games/rooms/ABC234/qr", nil)
	assert.Equal(t, "http://party.example/games/?room=ABC234", s.joinURL(req, "ABC234"))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://party.example/games/?room=ABC234", s.joinURL(req, "ABC234"))

	for _, proto := range []string{"javascript", "ftp", "https://evil"} {
		req.Header.Set("X-Forwarded-Proto", proto)
		assert.Equal(t, "http://party.example/games/?room=ABC234", s.joinURL(req, "ABC234"), proto)
	}
}

func TestReasonMapping(t *testing.T) {
	assert.Equal(t, "not_host", reason(room.ErrNotHost))
	assert.Equal(t, "rate_limited", reason(fmt.Errorf("wrapped: %w", errRateLimited)))
	assert.Equal(t, "internal_error", reason(errors.New("disk on fire")))
}

func TestHubDropsUnknownConnections(t *testing.T) {
	h := newHub()
	assert.Zero(t, h.Len())

	h.Notify("missing", room.EventRoomSync, nil)

	c := &Client{id: "c1", send: make(chan any, 1), done: make(chan struct{})}
	h.add(c)
	assert.Equal(t, 1, h.Len())

	h.Notify("c1", room.EventTick, room.TickMessage{RemainingMs: 1000})
	msg, ok := (<-c.send).(EventMessage)
	require.True(t, ok)
	assert.Equal(t, room.EventTick, msg.Event)

	// A full buffer drops the client rather than blocking the room.
	h.Notify("c1", room.EventTick, nil)
	h.Notify("c1", room.EventTick, nil)

	select {
	case <-c.done:
	default:
		t.Fatal("slow client was not dropped")
	}

	h.remove(c)
	assert.Zero(t, h.Len())
}

func TestHubDetachesReplacedConnection(t *testing.T) {
	h := newHub()

	c := &Client{id: "c1", send: make(chan any, 4), done: make(chan struct{})}
	h.add(c)

	h.Notify("c1", room.EventRoomSync, nil)
	assert.False(t, c.detached.Load())

	h.Notify("c1", room.EventReplaced, room.NoticeMessage{RoomCode: "ABC234"})
	assert.True(t, c.detached.Load())

	<-c.send
	msg, ok := (<-c.send).(EventMessage)
	require.True(t, ok)
	assert.Equal(t, room.EventReplaced, msg.Event)

	bye, ok := (<-c.send).(closeFrame)
	require.True(t, ok)
	assert.Equal(t, websocket.CloseNormalClosure, bye.code)
}

func TestStaticHandlers(t *testing.T) {
	cfg := testConfig()
	errs := make(chan error, 4)

	cases := []struct {
		path    string
		handler httprouter.Handle
		want    string
	}{
		{"/healthz", serveHealthCheck(cfg, errs), "Ok"},
		{"/version", serveVersion(cfg, errs), "clueparty v" + releaseVersion},
		{"/robots.txt", serveRobots(cfg, errs), "User-agent"},
		{"/?room=%3Cb%3E", serveHomePage(cfg, errs), "room &lt;b&gt;"},
		{"/favicons/favicon.svg", serveFavicons(cfg, errs), "<svg"},
		{"/favicon.svg", serveFavicons(cfg, errs), "<svg"},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.handler(w, httptest.NewRequest(http.MethodGet, tc.path, nil), nil)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tc.want)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}
