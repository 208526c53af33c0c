/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"unicode/utf8"

	"github.com/Seednode/clueparty/words"
)

const maxClueLen = 80

// StartRound is called by the accepted cluegiver.
func (r *Room) StartRound(token string) (RoundView, error) {
	var v RoundView

	err := r.exec(func() error {
		p, err := r.player(token)
		if err != nil {
			return err
		}

		switch r.status {
		case StatusAccepted:
		case StatusRunning:
			return ErrRoundRunning
		default:
			return ErrWrongStatus
		}

		o := r.round.Offer
		if o == nil || o.Status != OfferAccepted {
			return ErrOfferStatus
		}
		if o.AcceptedToken != token {
			return ErrNotOfferedToYou
		}

		r.touch()
		r.startRound(o, p)

		v = r.round.view(r.code, p, r.publicID)

		return nil
	})

	return v, err
}

func (r *Room) startRound(o *Offer, giver *Player) {
	r.clearTimers()
	r.runtime.roundRunning = true

	now := r.now()
	r.round = RoundState{
		Number:          r.round.Number + 1,
		ActiveTeam:      o.Team,
		ClueGiverToken:  giver.token,
		ClueGiverConnID: giver.connID,
		StartedAt:       now,
		EndsAt:          now.Add(r.settings.roundDuration()),
		Board:           o.board,
		Guessed:         make(map[string]Guess),
	}
	r.nextTeam = o.Team.Other()
	r.status = StatusRunning

	r.runtime.tick = r.schedule(r.opts.TickInterval, timerTick)
	r.runtime.deadline = r.schedule(r.settings.roundDuration()+deadlineSlack, timerDeadline)

	r.opts.Logf("ROOMS: Round %d started in %s for %s with %q giving clues",
		r.round.Number, r.code, o.Team, giver.name)

	r.syncRoom()
	r.syncRound()
}

func (r *Room) remaining() int64 {
	left := r.round.EndsAt.Sub(r.now())
	if left < 0 {
		return 0
	}
	return left.Milliseconds()
}

func (r *Room) onTick() {
	if !r.runtime.roundRunning || r.status != StatusRunning {
		return
	}

	left := r.remaining()

	r.broadcast(EventTick, TickMessage{
		RoomCode:    r.code,
		RoundNumber: r.round.Number,
		RemainingMs: left,
	})

	if left <= 0 {
		r.endRound(ReasonTime)
		return
	}

	r.runtime.tick = r.schedule(r.opts.TickInterval, timerTick)
}

// onDeadline covers for a tick that was delayed or lost.
func (r *Room) onDeadline() {
	if !r.runtime.roundRunning || r.status != StatusRunning {
		return
	}

	r.endRound(ReasonTime)
}

func (r *Room) endRound(reason Reason) {
	r.clearTimers()
	r.runtime.roundRunning = false
	r.round.Offer = nil
	r.status = StatusRoundEnd

	r.opts.Logf("ROOMS: Round %d ended in %s (%s), blue %d, red %d",
		r.round.Number, r.code, reason, r.scores.Blue, r.scores.Red)

	r.broadcast(EventRoundEnded, r.reveal(reason))
	r.syncRoom()

	r.runtime.reveal = r.schedule(r.opts.RevealDelay, timerReveal)
}

func (r *Room) onReveal() {
	if r.status != StatusRoundEnd {
		return
	}

	r.round.reset()
	r.toLobby()
	r.syncRoom()
}

// reassignClueGiver finds someone to take over from a cluegiver who
// left mid-round: the active team first, then the host, then anyone.
func (r *Room) reassignClueGiver(departing string) {
	candidates := r.connectedMembers(departing)

	var next *Player
	for _, p := range candidates {
		if p.team == r.round.ActiveTeam {
			next = p
			break
		}
	}
	if next == nil {
		if h, ok := r.players[r.hostToken]; ok && h.connected && h.token != departing {
			next = h
		}
	}
	if next == nil && len(candidates) > 0 {
		next = candidates[0]
	}

	if next == nil {
		r.endRound(ReasonDisconnected)
		return
	}

	r.round.ClueGiverToken = next.token
	r.round.ClueGiverConnID = next.connID

	r.opts.Logf("ROOMS: Cluegiver in %s reassigned to %q", r.code, next.name)

	r.syncRound()
}

// SetClue publishes the cluegiver's clue to the room.
func (r *Room) SetClue(token, text string) error {
	return r.exec(func() error {
		text = words.Normalize(text)
		if text == "" {
			return ErrEmptyText
		}
		if utf8.RuneCountInString(text) > maxClueLen {
			return ErrTextTooLong
		}

		if _, err := r.player(token); err != nil {
			return err
		}
		if r.status != StatusRunning || !r.runtime.roundRunning {
			return ErrNoActiveRound
		}
		if token != r.round.ClueGiverToken {
			return ErrNotClueGiver
		}

		r.touch()

		r.round.Clue = &Clue{Text: text, SetAt: r.now()}

		r.broadcast(EventClueSync, ClueMessage{RoomCode: r.code, Clue: clueView(r.round.Clue)})

		return nil
	})
}

// SetSettings is host-only and only allowed in the lobby.
func (r *Room) SetSettings(token string, s Settings) error {
	return r.exec(func() error {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, err := r.requireHost(token); err != nil {
			return err
		}
		if r.status != StatusLobby {
			return ErrWrongStatus
		}

		r.touch()
		r.settings = s
		r.syncRoom()

		return nil
	})
}

// EndGame lets the host stop the game early. The leading team, if any,
// is recorded as the winner.
func (r *Room) EndGame(token string) error {
	return r.exec(func() error {
		if _, err := r.requireHost(token); err != nil {
			return err
		}
		if r.status == StatusEnded {
			return ErrWrongStatus
		}

		r.touch()
		r.endGame(r.scores.Leader(), ReasonForced)

		return nil
	})
}

// ReturnToLobby resets scores and the board after a finished game.
func (r *Room) ReturnToLobby(token string) error {
	return r.exec(func() error {
		if _, err := r.requireHost(token); err != nil {
			return err
		}
		if r.status != StatusEnded {
			return ErrWrongStatus
		}

		r.touch()

		r.scores = Scores{}
		r.winner = NoTeam
		r.used = make(map[string]struct{})
		r.round.reset()
		r.toLobby()

		r.opts.Logf("ROOMS: Room %s returned to lobby", r.code)

		r.syncRoom()

		return nil
	})
}

// Snapshot returns what the player behind token currently sees. The
// round view is nil outside a running round.
func (r *Room) Snapshot(token string) (RoomView, *RoundView, error) {
	var (
		rv  RoomView
		rdv *RoundView
	)

	err := r.exec(func() error {
		p, err := r.player(token)
		if err != nil {
			return err
		}

		rv = r.roomView(p)
		if r.status == StatusRunning {
			v := r.round.view(r.code, p, r.publicID)
			rdv = &v
		}

		return nil
	})

	return rv, rdv, err
}
