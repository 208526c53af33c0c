/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Seednode/clueparty/words"
)

const (
	defaultName = "Player"
	maxNameLen  = 24
)

func cleanName(name string) string {
	name = words.Normalize(name)
	if name == "" {
		return defaultName
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	return name
}

// Join adds a new player bound to connID. The first player into a
// hostless room becomes its host.
func (r *Room) Join(connID, name string) (Session, error) {
	var s Session

	err := r.exec(func() error {
		if connID == "" {
			return ErrInvalidTarget
		}

		if old, ok := r.players[r.byConn[connID]]; ok {
			r.depart(old, false)
		}

		now := r.now()
		r.joins++
		p := &Player{
			seq:        r.joins,
			token:      uuid.NewString(),
			id:         uuid.NewString(),
			connID:     connID,
			name:       cleanName(name),
			connected:  true,
			joinedAt:   now,
			lastSeenAt: now,
		}
		r.players[p.token] = p
		r.byConn[connID] = p.token

		r.touch()
		r.publishConnected()
		r.ensureHost("")

		r.opts.Logf("ROOMS: Player %q joined %s", p.name, r.code)

		r.syncRoom()
		r.syncPlayer(p)

		s = Session{RoomCode: r.code, Token: p.token, PlayerID: p.id}

		return nil
	})

	return s, err
}

// Rejoin rebinds an existing token to a new connection.
func (r *Room) Rejoin(connID, token string) (Session, error) {
	var s Session

	err := r.exec(func() error {
		if connID == "" {
			return ErrInvalidTarget
		}

		p, ok := r.players[token]
		if !ok {
			return ErrInvalidToken
		}

		if other, ok := r.players[r.byConn[connID]]; ok && other != p {
			r.depart(other, false)
		}
		if p.connID != "" && p.connID != connID {
			r.send(p, EventReplaced, NoticeMessage{
				RoomCode: r.code,
				Message:  "This player was resumed from another connection.",
			})
			delete(r.byConn, p.connID)
		}

		p.connID = connID
		p.connected = true
		p.lastSeenAt = r.now()
		r.byConn[connID] = token

		if token == r.round.ClueGiverToken {
			r.round.ClueGiverConnID = connID
		}

		r.touch()
		r.publishConnected()
		r.ensureHost("")

		r.opts.Logf("ROOMS: Player %q rejoined %s", p.name, r.code)

		r.syncRoom()
		r.syncPlayer(p)

		s = Session{RoomCode: r.code, Token: p.token, PlayerID: p.id}

		return nil
	})

	return s, err
}

// Disconnect is called by the transport when connID goes away. The
// player's identity is kept so it can rejoin.
func (r *Room) Disconnect(connID string) error {
	return r.exec(func() error {
		p, ok := r.players[r.byConn[connID]]
		if !ok {
			return ErrNotInRoom
		}

		r.opts.Logf("ROOMS: Player %q disconnected from %s", p.name, r.code)

		r.depart(p, false)

		return nil
	})
}

// Leave is a voluntary disconnect by the player behind token.
func (r *Room) Leave(token string) error {
	return r.exec(func() error {
		p, err := r.player(token)
		if err != nil {
			return err
		}

		r.touch()

		if !p.connected {
			return nil
		}

		r.opts.Logf("ROOMS: Player %q left %s", p.name, r.code)

		r.depart(p, false)

		return nil
	})
}

// Kick removes the player with public id targetID for good.
func (r *Room) Kick(token, targetID string) error {
	return r.exec(func() error {
		if _, err := r.requireHost(token); err != nil {
			return err
		}

		target, ok := r.playerByID(targetID)
		if !ok {
			return ErrPlayerNotFound
		}
		if target.token == token {
			return ErrCannotKickSelf
		}

		r.touch()

		r.send(target, EventKicked, NoticeMessage{
			RoomCode: r.code,
			Message:  "You have been removed by the host.",
		})

		r.opts.Logf("ROOMS: Player %q kicked from %s", target.name, r.code)

		delete(r.players, target.token)
		r.depart(target, true)

		return nil
	})
}

// SetTeam moves the caller to team. Not allowed mid-round, or while the
// caller holds the live cluegiver offer.
func (r *Room) SetTeam(token, team string) error {
	return r.exec(func() error {
		t, err := ParseTeam(team)
		if err != nil {
			return err
		}

		p, err := r.player(token)
		if err != nil {
			return err
		}

		if r.status == StatusRunning {
			return ErrRoundRunning
		}
		if o := r.round.Offer; o != nil && (o.OfferedToken == token || o.AcceptedToken == token) {
			return ErrOfferStatus
		}

		r.touch()
		p.team = t
		r.syncRoom()

		return nil
	})
}

// depart unbinds p's connection and repairs everything that pointed at
// it: host, live offer and cluegiver slot. Kicked players have already
// been deleted from r.players.
func (r *Room) depart(p *Player, kicked bool) {
	if p.connID != "" {
		delete(r.byConn, p.connID)
	}
	p.connID = ""
	p.connected = false
	p.isHost = false
	p.lastSeenAt = r.now()

	r.touch()
	r.publishConnected()

	if r.hostToken == p.token {
		r.ensureHost(p.token)
	}

	if o := r.round.Offer; o != nil && (o.OfferedToken == p.token || o.AcceptedToken == p.token) {
		r.beginSelection(o.Team)
	}

	if r.status == StatusRunning && r.round.ClueGiverToken == p.token {
		if kicked || r.round.Clue == nil {
			r.reassignClueGiver(p.token)
		} else {
			r.round.ClueGiverConnID = ""
		}
	}

	r.syncRoom()
}
