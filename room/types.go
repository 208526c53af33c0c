/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"fmt"
	"time"

	"github.com/Seednode/clueparty/clock"
	"github.com/Seednode/clueparty/words"
)

type Team string

const (
	NoTeam Team = ""
	Blue   Team = "blue"
	Red    Team = "red"
)

func ParseTeam(s string) (Team, error) {
	switch t := Team(s); t {
	case Blue, Red:
		return t, nil
	default:
		return NoTeam, ErrInvalidTeam
	}
}

func (t Team) Other() Team {
	if t == Blue {
		return Red
	}
	return Blue
}

type Status string

const (
	StatusLobby    Status = "lobby"
	StatusOffer    Status = "offer"
	StatusAccepted Status = "accepted"
	StatusRunning  Status = "running"
	StatusRoundEnd Status = "round_end"
	StatusEnded    Status = "ended"
)

// Reason explains why a round ended.
type Reason string

const (
	ReasonTime         Reason = "time"
	ReasonBoard        Reason = "board"
	ReasonDisconnected Reason = "disconnected"
	ReasonTarget       Reason = "target"
	ReasonForced       Reason = "forced"
)

const (
	MinRoundSeconds = 10
	MaxRoundSeconds = 300
	MinTargetScore  = 25
	MaxTargetScore  = 5000

	DefaultRoundSeconds = 30
	DefaultTargetScore  = 300
)

type Settings struct {
	RoundSeconds int `json:"roundSeconds"`
	TargetScore  int `json:"targetScore"`
}

func DefaultSettings() Settings {
	return Settings{RoundSeconds: DefaultRoundSeconds, TargetScore: DefaultTargetScore}
}

func (s Settings) Validate() error {
	if s.RoundSeconds < MinRoundSeconds || s.RoundSeconds > MaxRoundSeconds {
		return wrap(ErrInvalidSettings, fmt.Errorf("roundSeconds must be between %d-%d inclusive: %d",
			MinRoundSeconds, MaxRoundSeconds, s.RoundSeconds))
	}
	if s.TargetScore < MinTargetScore || s.TargetScore > MaxTargetScore {
		return wrap(ErrInvalidSettings, fmt.Errorf("targetScore must be between %d-%d inclusive: %d",
			MinTargetScore, MaxTargetScore, s.TargetScore))
	}
	return nil
}

func (s Settings) roundDuration() time.Duration {
	return time.Duration(s.RoundSeconds) * time.Second
}

type Scores struct {
	Blue int `json:"blue"`
	Red  int `json:"red"`
}

func (s *Scores) add(t Team, points int) {
	switch t {
	case Blue:
		s.Blue += points
	case Red:
		s.Red += points
	}
}

func (s Scores) Of(t Team) int {
	switch t {
	case Blue:
		return s.Blue
	case Red:
		return s.Red
	default:
		return 0
	}
}

// Leader returns the team with the higher score, or NoTeam on a tie.
func (s Scores) Leader() Team {
	switch {
	case s.Blue > s.Red:
		return Blue
	case s.Red > s.Blue:
		return Red
	default:
		return NoTeam
	}
}

// Player is one membership in a room. token is the secret used to
// rejoin; id is the handle other players see.
type Player struct {
	token      string
	id         string
	connID     string
	name       string
	team       Team
	isHost     bool
	connected  bool
	joinedAt   time.Time
	lastSeenAt time.Time

	// seq orders players by join even when joinedAt ties.
	seq uint64
}

type Guess struct {
	Team    Team
	Points  int
	ByToken string
	At      time.Time
}

type Clue struct {
	Text  string
	SetAt time.Time
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
)

type Offer struct {
	Team          Team
	OfferedToken  string
	AcceptedToken string
	Status        OfferStatus
	OfferedAt     time.Time
	ExpiresAt     time.Time

	// board is dealt on accept and handed to the round on start.
	board []words.Tile
}

type RoundState struct {
	Number          int
	ActiveTeam      Team
	ClueGiverToken  string
	ClueGiverConnID string
	StartedAt       time.Time
	EndsAt          time.Time
	Board           []words.Tile
	Guessed         map[string]Guess
	Clue            *Clue
	Offer           *Offer
}

func (rs *RoundState) tile(id string) (words.Tile, bool) {
	for _, t := range rs.Board {
		if t.ID == id {
			return t, true
		}
	}
	return words.Tile{}, false
}

// reset clears everything but the round number, which only ever grows.
func (rs *RoundState) reset() {
	*rs = RoundState{Number: rs.Number, Guessed: make(map[string]Guess)}
}

type timerKind int

const (
	timerTick timerKind = iota
	timerDeadline
	timerOfferExpiry
	timerAcceptExpiry
	timerReveal
)

func (k timerKind) String() string {
	switch k {
	case timerTick:
		return "tick"
	case timerDeadline:
		return "deadline"
	case timerOfferExpiry:
		return "offer-expiry"
	case timerAcceptExpiry:
		return "accept-expiry"
	default:
		return "reveal"
	}
}

// runtime holds the room's scheduled timers. epoch is bumped every time
// they are cleared so events from an older schedule are dropped.
type runtime struct {
	epoch        uint64
	tick         *clock.Timer
	deadline     *clock.Timer
	offer        *clock.Timer
	reveal       *clock.Timer
	roundRunning bool
}
