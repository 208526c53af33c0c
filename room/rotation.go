/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import "github.com/Seednode/clueparty/words"

// BeginRound starts cluegiver selection for the team whose turn is
// next. Calling it again while an offer is live returns that offer.
func (r *Room) BeginRound(token string) (OfferView, error) {
	var v OfferView

	err := r.exec(func() error {
		if _, err := r.requireHost(token); err != nil {
			return err
		}

		if o := r.round.Offer; o != nil && (r.status == StatusOffer || r.status == StatusAccepted) {
			v = r.offerView(o)
			return nil
		}

		switch r.status {
		case StatusLobby, StatusRoundEnd:
		case StatusRunning:
			return ErrRoundRunning
		default:
			return ErrWrongStatus
		}

		if !r.hasCandidate(Blue) && !r.hasCandidate(Red) {
			return ErrNoCandidates
		}

		r.touch()

		if r.status == StatusRoundEnd {
			r.round.reset()
		}

		r.beginSelection(r.nextTeam)

		if o := r.round.Offer; o != nil {
			v = r.offerView(o)
		}

		return nil
	})

	return v, err
}

// AcceptOffer deals the board for the accepting player, who alone gets
// to see it until the round starts.
func (r *Room) AcceptOffer(token string) (AcceptedOfferView, error) {
	var v AcceptedOfferView

	err := r.exec(func() error {
		p, err := r.player(token)
		if err != nil {
			return err
		}

		o := r.round.Offer
		if o == nil {
			return ErrNoOffer
		}
		if o.OfferedToken != token {
			return ErrNotOfferedToYou
		}
		if o.Status != OfferPending {
			return ErrOfferStatus
		}

		board, err := r.opts.Boards.Board(r.opts.BoardSize, r.used)
		if err != nil {
			r.opts.Logf("ERROR: Failed to deal board for %s: %v", r.code, err)
			return wrap(ErrBoardUnavailable, err)
		}

		r.touch()

		for _, t := range board {
			r.used[words.Key(t.Word)] = struct{}{}
		}

		o.Status = OfferAccepted
		o.AcceptedToken = token
		o.board = board
		r.status = StatusAccepted

		r.clearTimers()
		r.runtime.offer = r.schedule(r.opts.AcceptTimeout, timerAcceptExpiry)

		r.opts.Logf("ROOMS: Player %q accepted cluegiver for %s in %s", p.name, o.Team, r.code)

		v = r.acceptedView(o)
		r.send(p, EventOfferAccepted, v)
		r.syncRoom()

		return nil
	})

	return v, err
}

// DeclineOffer may be called by the offered or the accepted player.
// Selection moves on to the next candidate on the same team.
func (r *Room) DeclineOffer(token string) error {
	return r.exec(func() error {
		p, err := r.player(token)
		if err != nil {
			return err
		}

		o := r.round.Offer
		if o == nil {
			return ErrNoOffer
		}
		if o.OfferedToken != token && o.AcceptedToken != token {
			return ErrNotOfferedToYou
		}

		r.touch()

		r.opts.Logf("ROOMS: Player %q declined cluegiver for %s in %s", p.name, o.Team, r.code)

		r.beginSelection(o.Team)

		return nil
	})
}

func (r *Room) hasCandidate(team Team) bool {
	for _, p := range r.players {
		if p.team == team && p.connected {
			return true
		}
	}
	return false
}

// nextCandidate walks team members in join order from the team's saved
// position, wrapping once, and returns the first connected one.
func (r *Room) nextCandidate(team Team) *Player {
	members := r.members(func(p *Player) bool { return p.team == team })
	if len(members) == 0 {
		return nil
	}

	start := r.rotation[team] % len(members)
	for i := range members {
		idx := (start + i) % len(members)
		if members[idx].connected {
			r.rotation[team] = (idx + 1) % len(members)
			return members[idx]
		}
	}

	return nil
}

// beginSelection replaces any live offer with a fresh one for team,
// falling back to the other team, and pausing into the lobby when
// neither team has anyone connected.
func (r *Room) beginSelection(team Team) {
	r.clearTimers()
	r.round.Offer = nil

	for range 2 {
		if p := r.nextCandidate(team); p != nil {
			now := r.now()
			o := &Offer{
				Team:         team,
				OfferedToken: p.token,
				Status:       OfferPending,
				OfferedAt:    now,
				ExpiresAt:    now.Add(r.opts.OfferTimeout),
			}
			r.round.Offer = o
			r.status = StatusOffer
			r.runtime.offer = r.schedule(r.opts.OfferTimeout, timerOfferExpiry)

			r.opts.Logf("ROOMS: Offered cluegiver for %s to %q in %s", team, p.name, r.code)

			r.send(p, EventOfferPending, r.offerView(o))
			r.syncRoom()

			return
		}

		team = team.Other()
		r.nextTeam = team
	}

	r.opts.Logf("ROOMS: No connected players on either team in %s, pausing", r.code)

	r.toLobby()
	r.broadcast(EventPaused, NoticeMessage{
		RoomCode: r.code,
		Message:  "Nobody on either team is connected.",
	})
	r.syncRoom()
}

func (r *Room) onOfferExpired() {
	o := r.round.Offer
	if o == nil || o.Status != OfferPending || r.status != StatusOffer {
		return
	}

	r.opts.Logf("ROOMS: Cluegiver offer to %q expired in %s", r.nameOf(o.OfferedToken), r.code)

	r.beginSelection(o.Team)
}

func (r *Room) onAcceptExpired() {
	o := r.round.Offer
	if o == nil || o.Status != OfferAccepted || r.status != StatusAccepted {
		return
	}

	r.opts.Logf("ROOMS: Cluegiver %q never started the round in %s", r.nameOf(o.AcceptedToken), r.code)

	r.beginSelection(o.Team)
}
