/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package room runs game sessions. Each Room is owned by a single
// goroutine that applies requests and timer events one at a time, so
// none of the state below is guarded by locks.
package room

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Seednode/clueparty/clock"
	"github.com/Seednode/clueparty/words"
)

const (
	DefaultOfferTimeout  = 15 * time.Second
	DefaultAcceptTimeout = 30 * time.Second
	DefaultRevealDelay   = 5 * time.Second
	DefaultTickInterval  = time.Second

	// deadlineSlack delays the backstop timer so the last tick normally wins.
	deadlineSlack = 50 * time.Millisecond

	inboxSize = 256
)

// BoardSupplier deals boards. used must not be modified.
type BoardSupplier interface {
	Board(size int, used map[string]struct{}) ([]words.Tile, error)
}

// Notifier delivers an event to one connection. It must not block.
type Notifier interface {
	Notify(connID, event string, payload any)
}

type NotifierFunc func(connID, event string, payload any)

func (f NotifierFunc) Notify(connID, event string, payload any) { f(connID, event, payload) }

type Options struct {
	Clock    clock.Clock
	Boards   BoardSupplier
	Notifier Notifier
	Logf     func(format string, args ...any)

	BoardSize     int
	OfferTimeout  time.Duration
	AcceptTimeout time.Duration
	RevealDelay   time.Duration
	TickInterval  time.Duration

	// Pick returns a uniform index in [0,n); used for host succession.
	Pick func(n int) int
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Boards == nil {
		if b, err := words.Default(); err == nil {
			o.Boards = b
		}
	}
	if o.Notifier == nil {
		o.Notifier = NotifierFunc(func(string, string, any) {})
	}
	if o.Logf == nil {
		o.Logf = func(string, ...any) {}
	}
	if o.BoardSize <= 0 {
		o.BoardSize = words.DefaultBoardSize
	}
	if o.OfferTimeout <= 0 {
		o.OfferTimeout = DefaultOfferTimeout
	}
	if o.AcceptTimeout <= 0 {
		o.AcceptTimeout = DefaultAcceptTimeout
	}
	if o.RevealDelay <= 0 {
		o.RevealDelay = DefaultRevealDelay
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.Pick == nil {
		o.Pick = rand.IntN
	}
	return o
}

// Session is handed back to a player after create, join or rejoin.
type Session struct {
	RoomCode string `json:"roomCode"`
	Token    string `json:"playerToken"`
	PlayerID string `json:"playerId"`
}

type Room struct {
	code string
	opts Options

	inbox     chan func()
	quit      chan struct{}
	closeOnce sync.Once

	// Read by the registry sweep without going through the inbox.
	lastActivity atomic.Int64
	connected    atomic.Int32

	settings  Settings
	status    Status
	scores    Scores
	nextTeam  Team
	winner    Team
	createdAt time.Time
	used      map[string]struct{}
	players   map[string]*Player
	byConn    map[string]string
	hostToken string
	joins     uint64
	rotation  map[Team]int
	round     RoundState
	runtime   runtime
}

// New starts the room's goroutine. Close must be called to stop it.
func New(code string, settings Settings, opts Options) *Room {
	opts = opts.withDefaults()
	now := opts.Clock.Now()

	r := &Room{
		code:      code,
		opts:      opts,
		inbox:     make(chan func(), inboxSize),
		quit:      make(chan struct{}),
		settings:  settings,
		status:    StatusLobby,
		nextTeam:  Blue,
		createdAt: now,
		used:      make(map[string]struct{}),
		players:   make(map[string]*Player),
		byConn:    make(map[string]string),
		rotation:  map[Team]int{Blue: 0, Red: 0},
		round:     RoundState{Guessed: make(map[string]Guess)},
	}
	r.lastActivity.Store(now.UnixNano())

	go r.run()

	return r
}

func (r *Room) Code() string { return r.code }

// LastActivity is safe to call from any goroutine.
func (r *Room) LastActivity() time.Time {
	return time.Unix(0, r.lastActivity.Load())
}

// ConnectedCount is safe to call from any goroutine.
func (r *Room) ConnectedCount() int {
	return int(r.connected.Load())
}

// Close stops all timers and the room goroutine. Later calls on the
// room fail with ErrRoomNotFound.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		_ = r.exec(func() error {
			r.clearTimers()
			r.runtime.roundRunning = false
			return nil
		})
		close(r.quit)
	})
}

func (r *Room) run() {
	for {
		select {
		case job := <-r.inbox:
			r.handle(job)
		case <-r.quit:
			return
		}
	}
}

func (r *Room) handle(job func()) {
	defer func() {
		if p := recover(); p != nil {
			r.opts.Logf("ERROR: Recovered from panic in room %s: %v", r.code, p)
		}
	}()

	job()
}

// exec runs fn on the room goroutine and waits for its result.
func (r *Room) exec(fn func() error) error {
	done := make(chan error, 1)

	job := func() {
		var err error = ErrInternal
		defer func() { done <- err }()
		err = fn()
	}

	select {
	case r.inbox <- job:
	case <-r.quit:
		return ErrRoomNotFound
	}

	select {
	case err := <-done:
		return err
	case <-r.quit:
		return ErrRoomNotFound
	}
}

// post queues fn without waiting. Timers use it to hand events back to
// the room goroutine.
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.quit:
	}
}

func (r *Room) now() time.Time { return r.opts.Clock.Now() }

func (r *Room) touch() {
	r.lastActivity.Store(r.now().UnixNano())
}

func (r *Room) publishConnected() {
	n := 0
	for _, p := range r.players {
		if p.connected {
			n++
		}
	}
	r.connected.Store(int32(n))
}

// schedule arms a timer whose event is ignored once the timers are
// cleared again.
func (r *Room) schedule(d time.Duration, kind timerKind) *clock.Timer {
	epoch := r.runtime.epoch
	return r.opts.Clock.AfterFunc(d, func() {
		r.post(func() { r.fire(kind, epoch) })
	})
}

func (r *Room) fire(kind timerKind, epoch uint64) {
	if epoch != r.runtime.epoch {
		return
	}

	switch kind {
	case timerTick:
		r.onTick()
	case timerDeadline:
		r.onDeadline()
	case timerOfferExpiry:
		r.onOfferExpired()
	case timerAcceptExpiry:
		r.onAcceptExpired()
	case timerReveal:
		r.onReveal()
	}
}

func (r *Room) clearTimers() {
	for _, t := range []*clock.Timer{r.runtime.tick, r.runtime.deadline, r.runtime.offer, r.runtime.reveal} {
		t.Stop()
	}
	r.runtime.tick = nil
	r.runtime.deadline = nil
	r.runtime.offer = nil
	r.runtime.reveal = nil
	r.runtime.epoch++
}

func (r *Room) player(token string) (*Player, error) {
	p, ok := r.players[token]
	if !ok {
		return nil, ErrNotInRoom
	}
	return p, nil
}

func (r *Room) playerByID(id string) (*Player, bool) {
	for _, p := range r.players {
		if p.id == id {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) publicID(token string) string {
	if p, ok := r.players[token]; ok {
		return p.id
	}
	return ""
}

func (r *Room) nameOf(token string) string {
	if p, ok := r.players[token]; ok {
		return p.name
	}
	return ""
}

// members returns players ordered by join time, optionally filtered.
func (r *Room) members(keep func(*Player) bool) []*Player {
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })

	return out
}

func (r *Room) connectedMembers(except string) []*Player {
	return r.members(func(p *Player) bool {
		return p.connected && p.token != except
	})
}

// toLobby is the only way into StatusLobby.
func (r *Room) toLobby() {
	r.clearTimers()
	r.runtime.roundRunning = false
	r.round.Offer = nil
	r.status = StatusLobby
}

func (r *Room) String() string {
	return fmt.Sprintf("room %s (%s)", r.code, r.status)
}
