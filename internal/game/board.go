// Package game implements the local puzzle: a grid of tiles removed in
// matching pairs, with column gravity and a countdown match timer. The rules
// are deliberately trivial; the interesting part of the program is keeping
// two of these in sync over a peer link.
package game

import (
	"math/rand"
)

// Tile is a tile kind. Zero means the cell is empty.
type Tile int8

// Board dimensions and the number of distinct tile kinds.
const (
	DefaultWidth  = 8
	DefaultHeight = 8
	TileKinds     = 6
)

// MatchPoints is the score awarded for one removed pair.
const MatchPoints = 10

// Point addresses a cell, column-major from the bottom-left.
type Point struct {
	X, Y int
}

// Board is a rectangular grid of tiles. Row 0 is the bottom row; gravity
// pulls tiles toward it.
type Board struct {
	w, h  int
	cells []Tile
}

// NewBoard fills a w×h board from rng. Every kind is dealt an even number of
// times so the board is always clearable.
func NewBoard(w, h int, rng *rand.Rand) *Board {
	b := &Board{w: w, h: h, cells: make([]Tile, w*h)}

	// Deal tiles in pairs, then shuffle.
	for i := 0; i < len(b.cells); i += 2 {
		kind := Tile(rng.Intn(TileKinds) + 1)
		b.cells[i] = kind
		if i+1 < len(b.cells) {
			b.cells[i+1] = kind
		}
	}
	rng.Shuffle(len(b.cells), func(i, j int) {
		b.cells[i], b.cells[j] = b.cells[j], b.cells[i]
	})
	return b
}

func (b *Board) Width() int  { return b.w }
func (b *Board) Height() int { return b.h }

// At returns the tile at p, or zero when p is out of bounds.
func (b *Board) At(p Point) Tile {
	if p.X < 0 || p.X >= b.w || p.Y < 0 || p.Y >= b.h {
		return 0
	}
	return b.cells[p.Y*b.w+p.X]
}

func (b *Board) set(p Point, t Tile) {
	b.cells[p.Y*b.w+p.X] = t
}

// Remaining counts the non-empty cells.
func (b *Board) Remaining() int {
	n := 0
	for _, t := range b.cells {
		if t != 0 {
			n++
		}
	}
	return n
}

// Match removes the tiles at a and b when they are distinct, occupied, and of
// the same kind, then lets the columns settle. Reports whether a removal
// happened.
func (b *Board) Match(a, p Point) bool {
	if a == p {
		return false
	}
	ta, tp := b.At(a), b.At(p)
	if ta == 0 || ta != tp {
		return false
	}
	b.set(a, 0)
	b.set(p, 0)
	b.settle()
	return true
}

// settle applies gravity: within each column, tiles drop to fill empty cells
// below them.
func (b *Board) settle() {
	for x := 0; x < b.w; x++ {
		write := 0
		for y := 0; y < b.h; y++ {
			if t := b.At(Point{x, y}); t != 0 {
				b.set(Point{x, y}, 0)
				b.set(Point{x, write}, t)
				write++
			}
		}
	}
}
