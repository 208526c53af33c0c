/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

// ensureHost keeps the host connected. When the current host is gone
// (or is departing) a replacement is drawn uniformly from the other
// connected players; with nobody connected the room stays hostless.
func (r *Room) ensureHost(departing string) {
	if h, ok := r.players[r.hostToken]; ok && h.connected && h.token != departing {
		return
	}

	candidates := r.connectedMembers(departing)
	if len(candidates) == 0 {
		r.setHost("")
		return
	}

	r.setHost(candidates[r.opts.Pick(len(candidates))].token)
}

func (r *Room) setHost(token string) {
	if token == r.hostToken {
		return
	}

	for _, p := range r.players {
		p.isHost = p.token == token
	}
	r.hostToken = token

	if token == "" {
		r.opts.Logf("ROOMS: Room %s is now hostless", r.code)
		return
	}

	r.opts.Logf("ROOMS: Host of %s is now %q", r.code, r.nameOf(token))

	r.broadcast(EventHostChanged, HostChangedMessage{
		RoomCode: r.code,
		HostID:   r.publicID(token),
		Name:     r.nameOf(token),
	})
}

// requireHost validates the host slot before checking the caller, so a
// stale host never blocks the room.
func (r *Room) requireHost(token string) (*Player, error) {
	p, err := r.player(token)
	if err != nil {
		return nil, err
	}

	r.ensureHost("")

	if token != r.hostToken {
		return nil, ErrNotHost
	}

	return p, nil
}

// TransferHost hands host authority to another connected player.
func (r *Room) TransferHost(token, targetID string) error {
	return r.exec(func() error {
		if _, err := r.requireHost(token); err != nil {
			return err
		}

		target, ok := r.playerByID(targetID)
		if !ok {
			return ErrPlayerNotFound
		}
		if !target.connected {
			return ErrTargetNotConnected
		}

		r.touch()
		r.setHost(target.token)
		r.syncRoom()

		return nil
	})
}
