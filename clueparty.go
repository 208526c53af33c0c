/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Clueparty websocket gateway
//
// Every browser tab holds one websocket to $prefix/ws. Clients send
// requests tagged with an id and get an ack back with the same id; room
// events are pushed to them as they happen.
//
// Routes:
// - $prefix/ws               → websocket
// - $prefix/rooms/:code      → JSON probe, 404 if the room is gone
// - $prefix/rooms/:code/qr   → PNG QR code pointing at the join URL

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"

	"github.com/Seednode/clueparty/clock"
	"github.com/Seednode/clueparty/room"
	"github.com/Seednode/clueparty/words"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var (
	errBadRequest  = errors.New("bad_request")
	errRateLimited = errors.New("rate_limited")
	errUnknownType = errors.New("unknown_type")
)

// Requests
const (
	reqCreate       = "room:create"
	reqJoin         = "room:join"
	reqRejoin       = "room:rejoin"
	reqLeave        = "room:leave"
	reqSetTeam      = "room:team:set"
	reqSetSettings  = "room:settings:set"
	reqKick         = "room:kick"
	reqTransferHost = "room:host:transfer"
	reqBeginRound   = "round:begin"
	reqAcceptOffer  = "offer:accept"
	reqDeclineOffer = "offer:decline"
	reqStartRound   = "round:start"
	reqSetClue      = "clue:set"
	reqGuessText    = "guess:text"
	reqGuessTile    = "guess:tile"
	reqEndGame      = "game:end"
	reqToLobby      = "game:lobby"
	reqSnapshot     = "room:snapshot"
)

// ClientMessage is every request a client can send. Only the fields the
// request type needs are read.
type ClientMessage struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name,omitempty"`         // create / join
	RoomCode     string `json:"roomCode,omitempty"`     // join / rejoin
	PlayerToken  string `json:"playerToken,omitempty"`  // rejoin
	Team         string `json:"team,omitempty"`         // room:team:set
	PlayerID     string `json:"playerId,omitempty"`     // kick / host transfer
	RoundSeconds int    `json:"roundSeconds,omitempty"` // create / settings
	TargetScore  int    `json:"targetScore,omitempty"`  // create / settings
	Text         string `json:"text,omitempty"`         // clue / text guess
	TileID       string `json:"tileId,omitempty"`       // tile guess
}

// AckMessage answers exactly one ClientMessage.
type AckMessage struct {
	Type  string `json:"type"` // "ack"
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// EventMessage carries a room notification.
type EventMessage struct {
	Type  string `json:"type"` // "event"
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type SnapshotData struct {
	Room  room.RoomView   `json:"room"`
	Round *room.RoundView `json:"round,omitempty"`
}

type RoomProbe struct {
	Code           string `json:"code"`
	ConnectedCount int    `json:"connectedCount"`
}

// closeFrame tells writePump to say goodbye and hang up.
type closeFrame struct {
	code int
	text string
}

type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan any
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter

	// Set by the room when this connection no longer speaks for its
	// player.
	detached atomic.Bool

	// Only touched from readPump.
	room  *room.Room
	token string
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// push never blocks. A client that cannot keep up is dropped and will
// resync when it rejoins.
func (c *Client) push(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.close()
		return false
	}
}

// Hub finds live clients by connection id so rooms can reach them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func newHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c.id)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Notify implements room.Notifier.
func (h *Hub) Notify(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	var bye closeFrame
	switch event {
	case room.EventKicked:
		bye = closeFrame{code: websocket.ClosePolicyViolation, text: "kicked"}
	case room.EventReplaced:
		bye = closeFrame{code: websocket.CloseNormalClosure, text: "replaced"}
	}

	if bye.code != 0 {
		c.detached.Store(true)
	}

	c.push(EventMessage{Type: "event", Event: event, Data: payload})

	if bye.code != 0 {
		c.push(bye)
	}
}

type Server struct {
	cfg      *Config
	hub      *Hub
	registry *room.Registry
	upgrader websocket.Upgrader
}

func newServer(cfg *Config, bank *words.Bank, clk clock.Clock) *Server {
	hub := newHub()

	opts := room.Options{
		Clock:         clk,
		Boards:        bank,
		Notifier:      hub,
		Logf:          func(format string, args ...any) { logf(cfg, format, args...) },
		BoardSize:     cfg.boardSize,
		OfferTimeout:  cfg.offerTimeout,
		AcceptTimeout: cfg.acceptTimeout,
		RevealDelay:   cfg.revealDelay,
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		registry: room.NewRegistry(opts, cfg.sessionTimeout),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeWait,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(s.cfg, "ERROR: Websocket upgrade for %s failed: %v", realIP(r), err)
			return
		}

		c := &Client{
			id:      uuid.NewString(),
			conn:    conn,
			send:    make(chan any, sendBuffer),
			done:    make(chan struct{}),
			limiter: rate.NewLimiter(rate.Limit(s.cfg.rateLimit), s.cfg.rateBurst),
		}

		s.hub.add(c)

		logf(s.cfg, "SERVE: Websocket %s opened for %s", c.id, realIP(r))

		go s.writePump(c)
		s.readPump(c)

		logf(s.cfg, "SERVE: Websocket %s closed for %s", c.id, realIP(r))
	}
}

func (s *Server) readPump(c *Client) {
	defer func() {
		s.hub.remove(c)
		if c.room != nil && !c.detached.Load() {
			_ = c.room.Disconnect(c.id)
		}
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.push(ack(ClientMessage{}, nil, errBadRequest))
			continue
		}

		if !c.limiter.Allow() {
			c.push(ack(msg, nil, errRateLimited))
			continue
		}

		if c.detached.Load() {
			c.room, c.token = nil, ""
		}

		payload, err := s.dispatch(c, msg)
		if !c.push(ack(msg, payload, err)) {
			return
		}
	}
}

func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if bye, ok := msg.(closeFrame); ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(bye.code, bye.text))
				c.close()
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func ack(msg ClientMessage, payload any, err error) AckMessage {
	if err != nil {
		return AckMessage{Type: "ack", ID: msg.ID, Error: reason(err)}
	}
	return AckMessage{Type: "ack", ID: msg.ID, OK: true, Data: payload}
}

// reason turns an error into the short code clients see. Anything
// unexpected is reported as internal.
func reason(err error) string {
	var re *room.Error
	if errors.As(err, &re) {
		return re.Reason
	}

	for _, known := range []error{errBadRequest, errRateLimited, errUnknownType} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return room.ErrInternal.Reason
}

// bind attaches c to r through connect, leaving any room it was in.
func (s *Server) bind(c *Client, r *room.Room, connect func() (room.Session, error)) (room.Session, error) {
	if c.room != nil && c.room != r {
		_ = c.room.Disconnect(c.id)
		c.room, c.token = nil, ""
	}

	sess, err := connect()
	if err != nil {
		return sess, err
	}

	c.room, c.token = r, sess.Token

	return sess, nil
}

func (s *Server) dispatch(c *Client, msg ClientMessage) (any, error) {
	switch msg.Type {
	case reqCreate:
		settings := s.cfg.settings()
		if msg.RoundSeconds != 0 {
			settings.RoundSeconds = msg.RoundSeconds
		}
		if msg.TargetScore != 0 {
			settings.TargetScore = msg.TargetScore
		}

		r, err := s.registry.Create(settings)
		if err != nil {
			return nil, err
		}

		return s.bind(c, r, func() (room.Session, error) { return r.Join(c.id, msg.Name) })
	case reqJoin:
		r, err := s.registry.Get(msg.RoomCode)
		if err != nil {
			return nil, err
		}

		return s.bind(c, r, func() (room.Session, error) { return r.Join(c.id, msg.Name) })
	case reqRejoin:
		r, err := s.registry.Get(msg.RoomCode)
		if err != nil {
			return nil, err
		}

		return s.bind(c, r, func() (room.Session, error) { return r.Rejoin(c.id, msg.PlayerToken) })
	}

	if c.room == nil {
		return nil, room.ErrNotInRoom
	}

	r, token := c.room, c.token

	switch msg.Type {
	case reqLeave:
		if err := r.Leave(token); err != nil {
			return nil, err
		}
		c.room, c.token = nil, ""
		return nil, nil
	case reqSetTeam:
		return nil, r.SetTeam(token, msg.Team)
	case reqSetSettings:
		return nil, r.SetSettings(token, room.Settings{RoundSeconds: msg.RoundSeconds, TargetScore: msg.TargetScore})
	case reqKick:
		return nil, r.Kick(token, msg.PlayerID)
	case reqTransferHost:
		return nil, r.TransferHost(token, msg.PlayerID)
	case reqBeginRound:
		return r.BeginRound(token)
	case reqAcceptOffer:
		return r.AcceptOffer(token)
	case reqDeclineOffer:
		return nil, r.DeclineOffer(token)
	case reqStartRound:
		return r.StartRound(token)
	case reqSetClue:
		return nil, r.SetClue(token, msg.Text)
	case reqGuessText:
		return r.GuessText(token, msg.Text)
	case reqGuessTile:
		return r.GuessTile(token, msg.TileID)
	case reqEndGame:
		return nil, r.EndGame(token)
	case reqToLobby:
		return nil, r.ReturnToLobby(token)
	case reqSnapshot:
		v, round, err := r.Snapshot(token)
		return SnapshotData{Room: v, Round: round}, err
	default:
		return nil, errUnknownType
	}
}

func (s *Server) serveRoomProbe(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		rm, err := s.registry.Get(ps.ByName("code"))
		if err != nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(s.cfg, w)

		err = json.NewEncoder(w).Encode(RoomProbe{Code: rm.Code(), ConnectedCount: rm.ConnectedCount()})
		if err != nil {
			errs <- err
		}
	}
}

// joinURL is what the QR code points at: the site root with the room
// code as a query parameter.
func (s *Server) joinURL(r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	switch proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto {
	case "http", "https":
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     s.cfg.prefix + "/",
		RawQuery: url.Values{"room": []string{code}}.Encode(),
	}

	return u.String()
}

func (s *Server) serveQR(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		rm, err := s.registry.Get(ps.ByName("code"))
		if err != nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		const qrSize = 320
		png, err := qrcode.Encode(s.joinURL(r, rm.Code()), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(s.cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

// register wires the game routes and starts the idle-room sweep, which
// stops with ctx.
func (s *Server) register(ctx context.Context, mux *httprouter.Router, errs chan<- error) {
	go s.registry.Run(ctx, s.cfg.sweepInterval)

	mux.GET(s.cfg.prefix+"/ws", s.serveWS())
	mux.GET(s.cfg.prefix+"/rooms/:code", s.serveRoomProbe(errs))
	mux.GET(s.cfg.prefix+"/rooms/:code/qr", s.serveQR(errs))
}

func registerClueparty(ctx context.Context, cfg *Config, mux *httprouter.Router, errs chan<- error) (*Server, error) {
	bank, err := words.LoadFile(strings.TrimSpace(cfg.words))
	if err != nil {
		return nil, err
	}

	logf(cfg, "START: Loaded %d words (%d easy, %d medium, %d hard)",
		bank.Len(), bank.Count(words.Easy), bank.Count(words.Medium), bank.Count(words.Hard))

	s := newServer(cfg, bank, clock.Real())
	s.register(ctx, mux, errs)

	return s, nil
}
