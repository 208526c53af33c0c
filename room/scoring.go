/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"github.com/Seednode/clueparty/words"
)

// GuessResult is returned to the guessing player. A text guess that
// matches nothing comes back with Correct unset and no error.
type GuessResult struct {
	Correct bool   `json:"correct"`
	TileID  string `json:"tileId,omitempty"`
	Word    string `json:"word,omitempty"`
	Points  int    `json:"points,omitempty"`
	Scores  Scores `json:"scores"`
}

// guesser checks everything a guess needs before any state changes.
func (r *Room) guesser(token string) (*Player, error) {
	p, err := r.player(token)
	if err != nil {
		return nil, err
	}
	if r.status != StatusRunning || !r.runtime.roundRunning {
		return nil, ErrNoActiveRound
	}
	if p.team != r.round.ActiveTeam {
		return nil, ErrNotActiveTeam
	}
	return p, nil
}

// GuessTile claims a tile by id.
func (r *Room) GuessTile(token, tileID string) (GuessResult, error) {
	var res GuessResult

	err := r.exec(func() error {
		p, err := r.guesser(token)
		if err != nil {
			return err
		}

		t, ok := r.round.tile(tileID)
		if !ok {
			return ErrTileNotFound
		}
		if _, done := r.round.Guessed[t.ID]; done {
			return ErrTileGuessed
		}

		res = r.applyGuess(p, t)

		return nil
	})

	return res, err
}

// GuessText matches free text against the unguessed words on the board,
// ignoring case and extra whitespace.
func (r *Room) GuessText(token, text string) (GuessResult, error) {
	var res GuessResult

	err := r.exec(func() error {
		key := words.Key(text)
		if key == "" {
			return ErrEmptyText
		}

		p, err := r.guesser(token)
		if err != nil {
			return err
		}

		r.touch()

		var already bool
		for _, t := range r.round.Board {
			if words.Key(t.Word) != key {
				continue
			}
			if _, done := r.round.Guessed[t.ID]; done {
				already = true
				continue
			}

			res = r.applyGuess(p, t)

			return nil
		}

		if already {
			return ErrTileGuessed
		}

		res = GuessResult{Scores: r.scores}

		return nil
	})

	return res, err
}

// applyGuess records a correct guess, then checks for a win before
// checking for an exhausted board.
func (r *Room) applyGuess(p *Player, t words.Tile) GuessResult {
	team := r.round.ActiveTeam

	r.touch()

	r.round.Guessed[t.ID] = Guess{
		Team:    team,
		Points:  t.Points,
		ByToken: p.token,
		At:      r.now(),
	}
	r.scores.add(team, t.Points)

	r.opts.Logf("ROOMS: %q guessed %q for %d points in %s", p.name, t.Word, t.Points, r.code)

	msg := GuessCorrectMessage{
		RoomCode:  r.code,
		TileID:    t.ID,
		Word:      t.Word,
		Points:    t.Points,
		Team:      team,
		GuessedBy: p.name,
		Scores:    r.scores,
	}
	for _, m := range r.connectedMembers("") {
		if m.team == team {
			r.send(m, EventGuessCorrect, msg)
		}
	}

	res := GuessResult{
		Correct: true,
		TileID:  t.ID,
		Word:    t.Word,
		Points:  t.Points,
		Scores:  r.scores,
	}

	switch {
	case r.scores.Of(team) >= r.settings.TargetScore:
		r.endGame(team, ReasonTarget)
	case len(r.round.Guessed) >= len(r.round.Board):
		r.endRound(ReasonBoard)
	default:
		r.syncRoom()
		r.syncRound()
	}

	return res
}

// endGame is the only way into StatusEnded.
func (r *Room) endGame(winner Team, reason Reason) {
	r.clearTimers()
	r.runtime.roundRunning = false
	r.round.Offer = nil
	r.status = StatusEnded
	r.winner = winner

	if winner == NoTeam {
		r.opts.Logf("ROOMS: Game in %s ended without a winner (%s)", r.code, reason)
	} else {
		r.opts.Logf("ROOMS: Game in %s won by %s (%s), blue %d, red %d",
			r.code, winner, reason, r.scores.Blue, r.scores.Red)
	}

	r.broadcast(EventGameEnded, r.reveal(reason))
	r.syncRoom()
}
