/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package words

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
)

const DefaultBoardSize = 24

var ErrInsufficientWords = errors.New("not enough words for board")

// Tile is one secret word on a board.
type Tile struct {
	ID         string     `json:"id"`
	Word       string     `json:"word"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
}

// Board deals size tiles, split as evenly as possible across the three
// difficulties and topped up from whatever remains. Words whose Key is
// in used are never dealt. used is only read; callers reserve the
// returned words themselves.
func (b *Bank) Board(size int, used map[string]struct{}) ([]Tile, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid board size %d", ErrInsufficientWords, size)
	}

	third := int(math.Round(float64(size) / 3))
	want := map[Difficulty]int{
		Easy:   third,
		Medium: third,
		Hard:   size - 2*third,
	}

	taken := make(map[string]struct{}, size)
	chosen := make([]Entry, 0, size)

	for _, d := range []Difficulty{Easy, Medium, Hard} {
		chosen = append(chosen, b.pick(want[d], used, taken, func(e Entry) bool {
			return e.Difficulty == d
		})...)
	}

	if short := size - len(chosen); short > 0 {
		chosen = append(chosen, b.pick(short, used, taken, func(Entry) bool { return true })...)
	}

	if len(chosen) < size {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientWords, size, len(chosen))
	}

	rand.Shuffle(len(chosen), func(i, j int) {
		chosen[i], chosen[j] = chosen[j], chosen[i]
	})

	generation := uuid.NewString()[:8]

	tiles := make([]Tile, len(chosen))
	for i, e := range chosen {
		tiles[i] = Tile{
			ID:         fmt.Sprintf("%s-%d", generation, i),
			Word:       e.Word,
			Difficulty: e.Difficulty,
			Points:     e.Points,
		}
	}

	return tiles, nil
}

func (b *Bank) pick(n int, used, taken map[string]struct{}, match func(Entry) bool) []Entry {
	if n <= 0 {
		return nil
	}

	pool := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if !match(e) {
			continue
		}
		key := Key(e.Word)
		if _, ok := used[key]; ok {
			continue
		}
		if _, ok := taken[key]; ok {
			continue
		}
		pool = append(pool, e)
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	if n > len(pool) {
		n = len(pool)
	}

	for _, e := range pool[:n] {
		taken[Key(e.Word)] = struct{}{}
	}

	return pool[:n]
}
