/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"time"

	"github.com/Seednode/clueparty/words"
)

const (
	RoleClueGiver = "cluegiver"
	RoleGuesser   = "guesser"
)

// Views never carry player tokens or connection ids.

type PlayerView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Team       Team   `json:"team,omitempty"`
	IsHost     bool   `json:"isHost"`
	Connected  bool   `json:"connected"`
	LastSeenAt int64  `json:"lastSeenAt"`
}

type OfferView struct {
	RoomCode   string      `json:"roomCode"`
	Team       Team        `json:"team"`
	OfferedID  string      `json:"offeredId"`
	AcceptedID string      `json:"acceptedId,omitempty"`
	Status     OfferStatus `json:"status"`
	OfferedAt  int64       `json:"offeredAt"`
	ExpiresAt  int64       `json:"expiresAt"`
}

// AcceptedOfferView goes only to the accepted cluegiver.
type AcceptedOfferView struct {
	OfferView
	Board []words.Tile `json:"board"`
}

type ClueView struct {
	Text  string `json:"text"`
	SetAt int64  `json:"setAt"`
}

type RoundSummary struct {
	Number       int        `json:"number"`
	ActiveTeam   Team       `json:"activeTeam,omitempty"`
	ClueGiverID  string     `json:"clueGiverId,omitempty"`
	StartedAt    int64      `json:"startedAt,omitempty"`
	EndsAt       int64      `json:"endsAt,omitempty"`
	TileCount    int        `json:"tileCount"`
	GuessedCount int        `json:"guessedCount"`
	Clue         *ClueView  `json:"clue,omitempty"`
	Offer        *OfferView `json:"offer,omitempty"`
}

type RoomView struct {
	Code           string       `json:"code"`
	Status         Status       `json:"status"`
	Settings       Settings     `json:"settings"`
	Scores         Scores       `json:"scores"`
	NextTeam       Team         `json:"nextTeam"`
	HostID         string       `json:"hostId,omitempty"`
	You            string       `json:"you,omitempty"`
	Winner         Team         `json:"winner,omitempty"`
	Players        []PlayerView `json:"players"`
	PlayerCount    int          `json:"playerCount"`
	ConnectedCount int          `json:"connectedCount"`
	Round          RoundSummary `json:"round"`
	CreatedAt      int64        `json:"createdAt"`
}

// TileView omits the word unless the viewer is allowed to see it.
type TileView struct {
	ID         string           `json:"id"`
	Word       string           `json:"word,omitempty"`
	Difficulty words.Difficulty `json:"difficulty"`
	Points     int              `json:"points"`
	GuessedBy  Team             `json:"guessedBy,omitempty"`
}

type RoundView struct {
	RoomCode    string     `json:"roomCode"`
	Number      int        `json:"number"`
	ActiveTeam  Team       `json:"activeTeam"`
	ClueGiverID string     `json:"clueGiverId"`
	Role        string     `json:"role"`
	StartedAt   int64      `json:"startedAt"`
	EndsAt      int64      `json:"endsAt"`
	Board       []TileView `json:"board"`
	Clue        *ClueView  `json:"clue,omitempty"`
}

type GuessView struct {
	TileID    string `json:"tileId"`
	Word      string `json:"word"`
	Team      Team   `json:"team"`
	Points    int    `json:"points"`
	GuessedBy string `json:"guessedBy"`
	At        int64  `json:"at"`
}

// Reveal is the full board sent to everyone when a round or game ends.
type Reveal struct {
	RoomCode    string       `json:"roomCode"`
	RoundNumber int          `json:"roundNumber"`
	Reason      Reason       `json:"reason"`
	WinningTeam Team         `json:"winningTeam,omitempty"`
	FullBoard   []words.Tile `json:"fullBoard"`
	Guessed     []GuessView  `json:"guessed"`
	Scores      Scores       `json:"scores"`
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func clueView(c *Clue) *ClueView {
	if c == nil {
		return nil
	}
	return &ClueView{Text: c.Text, SetAt: millis(c.SetAt)}
}

// view is the single place that decides what a viewer may see of the
// board: the cluegiver gets every word, the active team gets the words
// it has already guessed, everyone else gets ids and points only.
func (rs *RoundState) view(code string, viewer *Player, publicID func(string) string) RoundView {
	role := RoleGuesser
	if viewer != nil && viewer.token != "" && viewer.token == rs.ClueGiverToken {
		role = RoleClueGiver
	}

	board := make([]TileView, 0, len(rs.Board))
	for _, t := range rs.Board {
		tv := TileView{ID: t.ID, Difficulty: t.Difficulty, Points: t.Points}

		g, guessed := rs.Guessed[t.ID]
		if guessed {
			tv.GuessedBy = g.Team
		}

		switch {
		case role == RoleClueGiver:
			tv.Word = t.Word
		case guessed && viewer != nil && viewer.team == rs.ActiveTeam:
			tv.Word = t.Word
		}

		board = append(board, tv)
	}

	return RoundView{
		RoomCode:    code,
		Number:      rs.Number,
		ActiveTeam:  rs.ActiveTeam,
		ClueGiverID: publicID(rs.ClueGiverToken),
		Role:        role,
		StartedAt:   millis(rs.StartedAt),
		EndsAt:      millis(rs.EndsAt),
		Board:       board,
		Clue:        clueView(rs.Clue),
	}
}

func (r *Room) offerView(o *Offer) OfferView {
	return OfferView{
		RoomCode:   r.code,
		Team:       o.Team,
		OfferedID:  r.publicID(o.OfferedToken),
		AcceptedID: r.publicID(o.AcceptedToken),
		Status:     o.Status,
		OfferedAt:  millis(o.OfferedAt),
		ExpiresAt:  millis(o.ExpiresAt),
	}
}

func (r *Room) acceptedView(o *Offer) AcceptedOfferView {
	return AcceptedOfferView{OfferView: r.offerView(o), Board: o.board}
}

func (r *Room) roomView(viewer *Player) RoomView {
	all := r.members(nil)

	players := make([]PlayerView, 0, len(all))
	connected := 0
	for _, p := range all {
		if p.connected {
			connected++
		}
		players = append(players, PlayerView{
			ID:         p.id,
			Name:       p.name,
			Team:       p.team,
			IsHost:     p.isHost,
			Connected:  p.connected,
			LastSeenAt: millis(p.lastSeenAt),
		})
	}

	summary := RoundSummary{
		Number:       r.round.Number,
		ActiveTeam:   r.round.ActiveTeam,
		ClueGiverID:  r.publicID(r.round.ClueGiverToken),
		StartedAt:    millis(r.round.StartedAt),
		EndsAt:       millis(r.round.EndsAt),
		TileCount:    len(r.round.Board),
		GuessedCount: len(r.round.Guessed),
		Clue:         clueView(r.round.Clue),
	}
	if o := r.round.Offer; o != nil {
		ov := r.offerView(o)
		summary.Offer = &ov
	}

	v := RoomView{
		Code:           r.code,
		Status:         r.status,
		Settings:       r.settings,
		Scores:         r.scores,
		NextTeam:       r.nextTeam,
		HostID:         r.publicID(r.hostToken),
		Winner:         r.winner,
		Players:        players,
		PlayerCount:    len(players),
		ConnectedCount: connected,
		Round:          summary,
		CreatedAt:      millis(r.createdAt),
	}
	if viewer != nil {
		v.You = viewer.id
	}

	return v
}

func (r *Room) reveal(reason Reason) Reveal {
	guessed := make([]GuessView, 0, len(r.round.Guessed))
	for _, t := range r.round.Board {
		g, ok := r.round.Guessed[t.ID]
		if !ok {
			continue
		}
		guessed = append(guessed, GuessView{
			TileID:    t.ID,
			Word:      t.Word,
			Team:      g.Team,
			Points:    g.Points,
			GuessedBy: r.nameOf(g.ByToken),
			At:        millis(g.At),
		})
	}

	board := make([]words.Tile, len(r.round.Board))
	copy(board, r.round.Board)

	return Reveal{
		RoomCode:    r.code,
		RoundNumber: r.round.Number,
		Reason:      reason,
		WinningTeam: r.winner,
		FullBoard:   board,
		Guessed:     guessed,
		Scores:      r.scores,
	}
}
