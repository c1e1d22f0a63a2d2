package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

// TestNewBoardDealsPairs: every kind must appear an even number of times or
// the last tiles could never be cleared.
func TestNewBoardDealsPairs(t *testing.T) {
	b := NewBoard(DefaultWidth, DefaultHeight, newRNG())

	counts := map[Tile]int{}
	for y := 0; y < b.Height(); y++ {
		for x := 0; x < b.Width(); x++ {
			tile := b.At(Point{X: x, Y: y})
			require.NotZero(t, tile, "board must deal full")
			counts[tile]++
		}
	}

	assert.Equal(t, DefaultWidth*DefaultHeight, b.Remaining())
	for kind, n := range counts {
		assert.Zerof(t, n%2, "kind %d dealt an odd number of times", kind)
	}
}

func TestBoardAtOutOfBounds(t *testing.T) {
	b := NewBoard(4, 4, newRNG())

	assert.Zero(t, b.At(Point{X: -1, Y: 0}))
	assert.Zero(t, b.At(Point{X: 0, Y: -1}))
	assert.Zero(t, b.At(Point{X: 4, Y: 0}))
	assert.Zero(t, b.At(Point{X: 0, Y: 4}))
}

func TestBoardMatchRules(t *testing.T) {
	b := NewBoard(4, 4, newRNG())

	// Same cell twice is never a pair.
	assert.False(t, b.Match(Point{X: 1, Y: 1}, Point{X: 1, Y: 1}))

	// Find one equal-kind pair and one unequal pair on the dealt board.
	var equal, unequal [2]Point
	foundEqual, foundUnequal := false, false
	for y := 0; y < 4 && !(foundEqual && foundUnequal); y++ {
		for x := 0; x < 4; x++ {
			p := Point{X: x, Y: y}
			q := Point{X: (x + 1) % 4, Y: y}
			if p == q {
				continue
			}
			if b.At(p) == b.At(q) && !foundEqual {
				equal = [2]Point{p, q}
				foundEqual = true
			}
			if b.At(p) != b.At(q) && !foundUnequal {
				unequal = [2]Point{p, q}
				foundUnequal = true
			}
		}
	}
	require.True(t, foundUnequal)

	if foundUnequal {
		assert.False(t, b.Match(unequal[0], unequal[1]))
		assert.Equal(t, 16, b.Remaining())
	}
	if foundEqual {
		assert.True(t, b.Match(equal[0], equal[1]))
		assert.Equal(t, 14, b.Remaining())
	}
}

// TestSettleGravity: after a removal the tiles above must drop so each
// column is contiguous from row 0 up.
func TestSettleGravity(t *testing.T) {
	b := NewBoard(DefaultWidth, DefaultHeight, newRNG())

	// Remove any valid pair, then check every column for holes.
	removed := false
	for y := 0; y < b.Height() && !removed; y++ {
		for x := 0; x < b.Width() && !removed; x++ {
			p := Point{X: x, Y: y}
			for yy := 0; yy < b.Height(); yy++ {
				for xx := 0; xx < b.Width(); xx++ {
					q := Point{X: xx, Y: yy}
					if p != q && b.At(p) == b.At(q) {
						removed = b.Match(p, q)
						break
					}
				}
				if removed {
					break
				}
			}
		}
	}
	require.True(t, removed)

	for x := 0; x < b.Width(); x++ {
		seenEmpty := false
		for y := 0; y < b.Height(); y++ {
			if b.At(Point{X: x, Y: y}) == 0 {
				seenEmpty = true
			} else {
				assert.Falsef(t, seenEmpty, "column %d has a floating tile above a hole", x)
			}
		}
	}
}

func TestMatchScoringAndRedeal(t *testing.T) {
	rng := newRNG()
	m := NewMatch(rng)

	// Clear the whole board pair by pair; the score grows by MatchPoints
	// each removal and a fresh board is dealt at the end.
	pairs := DefaultWidth * DefaultHeight / 2
	for i := 0; i < pairs; i++ {
		a, b, ok := findPair(m.Board)
		require.True(t, ok, "pair %d missing", i)
		require.True(t, m.Try(a, b, rng))
	}

	assert.Equal(t, pairs*MatchPoints, m.Score)
	assert.Equal(t, DefaultWidth*DefaultHeight, m.Board.Remaining(), "board redeals when cleared")
}

func TestTryRejectsNonPair(t *testing.T) {
	rng := newRNG()
	m := NewMatch(rng)

	assert.False(t, m.Try(Point{X: 0, Y: 0}, Point{X: 0, Y: 0}, rng))
	assert.Zero(t, m.Score)
}

// findPair scans for any removable pair on b.
func findPair(b *Board) (Point, Point, bool) {
	for y := 0; y < b.Height(); y++ {
		for x := 0; x < b.Width(); x++ {
			p := Point{X: x, Y: y}
			if b.At(p) == 0 {
				continue
			}
			for yy := 0; yy < b.Height(); yy++ {
				for xx := 0; xx < b.Width(); xx++ {
					q := Point{X: xx, Y: yy}
					if p != q && b.At(q) == b.At(p) {
						return p, q, true
					}
				}
			}
		}
	}
	return Point{}, Point{}, false
}
