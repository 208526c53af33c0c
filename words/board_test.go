/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package words

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countBy(tiles []Tile) map[Difficulty]int {
	m := make(map[Difficulty]int)
	for _, tile := range tiles {
		m[tile.Difficulty]++
	}
	return m
}

func TestBoardDefaultSize(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	tiles, err := b.Board(DefaultBoardSize, nil)
	require.NoError(t, err)
	require.Len(t, tiles, DefaultBoardSize)

	assert.Equal(t, map[Difficulty]int{Easy: 8, Medium: 8, Hard: 8}, countBy(tiles))

	ids := make(map[string]struct{})
	seen := make(map[string]struct{})
	for _, tile := range tiles {
		assert.Equal(t, Points(tile.Difficulty), tile.Points)
		assert.NotEmpty(t, tile.ID)

		_, dup := ids[tile.ID]
		assert.False(t, dup, "duplicate id %s", tile.ID)
		ids[tile.ID] = struct{}{}

		_, dup = seen[Key(tile.Word)]
		assert.False(t, dup, "duplicate word %s", tile.Word)
		seen[Key(tile.Word)] = struct{}{}
	}
}

func TestBoardOddSize(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	tiles, err := b.Board(10, nil)
	require.NoError(t, err)

	assert.Equal(t, map[Difficulty]int{Easy: 3, Medium: 3, Hard: 4}, countBy(tiles))
}

func TestBoardSkipsUsedWords(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	used := make(map[string]struct{})
	for range 5 {
		tiles, err := b.Board(DefaultBoardSize, used)
		require.NoError(t, err)

		for _, tile := range tiles {
			_, dup := used[Key(tile.Word)]
			require.False(t, dup, "word %q dealt twice", tile.Word)
			used[Key(tile.Word)] = struct{}{}
		}
	}
}

func TestBoardTopsUpFromOtherDifficulties(t *testing.T) {
	var list strings.Builder
	for i := range 6 {
		fmt.Fprintf(&list, "cat%d\n", i)
	}
	list.WriteString("elephant\nice cream\n")

	b, err := Load(strings.NewReader(list.String()))
	require.NoError(t, err)

	tiles, err := b.Board(6, nil)
	require.NoError(t, err)
	assert.Len(t, tiles, 6)
}

func TestBoardInsufficient(t *testing.T) {
	b, err := Load(strings.NewReader("cat\ndog\nelephant\n"))
	require.NoError(t, err)

	_, err = b.Board(4, nil)
	assert.ErrorIs(t, err, ErrInsufficientWords)

	_, err = b.Board(3, map[string]struct{}{"dog": {}})
	assert.ErrorIs(t, err, ErrInsufficientWords)
}

func TestBoardDoesNotMutateUsed(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	used := map[string]struct{}{"apple": {}}
	_, err = b.Board(DefaultBoardSize, used)
	require.NoError(t, err)

	assert.Len(t, used, 1)
}
