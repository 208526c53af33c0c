/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

// Events pushed to connections.
const (
	EventRoomSync      = "room:sync"
	EventRoundSync     = "round:sync"
	EventClueSync      = "clue:sync"
	EventTick          = "round:tick"
	EventRoundEnded    = "round:ended"
	EventGameEnded     = "game:ended"
	EventOfferPending  = "offer:pending"
	EventOfferAccepted = "offer:accepted"
	EventGuessCorrect  = "guess:correct"
	EventKicked        = "room:kicked"
	EventReplaced      = "room:replaced"
	EventHostChanged   = "host:changed"
	EventPaused        = "room:paused"
)

type TickMessage struct {
	RoomCode    string `json:"roomCode"`
	RoundNumber int    `json:"roundNumber"`
	RemainingMs int64  `json:"remainingMs"`
}

type ClueMessage struct {
	RoomCode string    `json:"roomCode"`
	Clue     *ClueView `json:"clue"`
}

type HostChangedMessage struct {
	RoomCode string `json:"roomCode"`
	HostID   string `json:"hostId"`
	Name     string `json:"name"`
}

type NoticeMessage struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

type GuessCorrectMessage struct {
	RoomCode  string `json:"roomCode"`
	TileID    string `json:"tileId"`
	Word      string `json:"word"`
	Points    int    `json:"points"`
	Team      Team   `json:"team"`
	GuessedBy string `json:"guessedBy"`
	Scores    Scores `json:"scores"`
}

func (r *Room) send(p *Player, event string, payload any) {
	if p == nil || !p.connected || p.connID == "" {
		return
	}
	r.opts.Notifier.Notify(p.connID, event, payload)
}

func (r *Room) broadcast(event string, payload any) {
	for _, p := range r.connectedMembers("") {
		r.send(p, event, payload)
	}
}

func (r *Room) syncRoom() {
	for _, p := range r.connectedMembers("") {
		r.send(p, EventRoomSync, r.roomView(p))
	}
}

func (r *Room) syncRound() {
	for _, p := range r.connectedMembers("") {
		r.send(p, EventRoundSync, r.round.view(r.code, p, r.publicID))
	}
}

// syncPlayer brings a single (re)connected player up to date.
func (r *Room) syncPlayer(p *Player) {
	r.send(p, EventRoomSync, r.roomView(p))

	switch r.status {
	case StatusRunning:
		r.send(p, EventRoundSync, r.round.view(r.code, p, r.publicID))
	case StatusOffer, StatusAccepted:
		o := r.round.Offer
		if o == nil {
			return
		}
		if o.Status == OfferPending && o.OfferedToken == p.token {
			r.send(p, EventOfferPending, r.offerView(o))
		}
		if o.Status == OfferAccepted && o.AcceptedToken == p.token {
			r.send(p, EventOfferAccepted, r.acceptedView(o))
		}
	}
}
