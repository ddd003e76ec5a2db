package room

import (
	"math"
	"math/rand"
)

// Grid is an occupancy map: 0 marks a free cell, anything else is blocked.
type Grid [][]int

// DefaultGrid is the 10x10 demo room with a wall along column 1 and a
// 3x2 obstacle near the east side.
var DefaultGrid = Grid{
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 1, 0, 0, 0, 0, 0, 1, 1, 0},
	{0, 1, 0, 0, 0, 0, 0, 1, 1, 0},
	{0, 1, 0, 0, 0, 0, 0, 1, 1, 0},
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
}

// Cell is a (row, column) grid position.
type Cell [2]int

// FreeCells lists free cells in row-major order.
func (g Grid) FreeCells() []Cell {
	var out []Cell
	for i, row := range g {
		for j, v := range row {
			if v == 0 {
				out = append(out, Cell{i, j})
			}
		}
	}
	return out
}

// Reading is one synthetic sample for a cell.
type Reading struct {
	Loc      Cell    `json:"loc"`
	Temp     int     `json:"temp"`
	RadTemp  int     `json:"radtemp"`
	Humid    int     `json:"humid"`
	Velocity float64 `json:"velocity"`
}

// Value ranges for synthetic readings, inclusive.
const (
	TempMin, TempMax         = 20, 30
	RadTempMin, RadTempMax   = 70, 80
	HumidMin, HumidMax       = 20, 50
	VelocityMin, VelocityMax = 0.1, 0.8
)

// Readings generates one reading per free cell.
func (g Grid) Readings(rng *rand.Rand) []Reading {
	cells := g.FreeCells()
	out := make([]Reading, 0, len(cells))
	for _, cell := range cells {
		out = append(out, Reading{
			Loc:      cell,
			Temp:     between(rng, TempMin, TempMax),
			RadTemp:  between(rng, RadTempMin, RadTempMax),
			Humid:    between(rng, HumidMin, HumidMax),
			Velocity: math.Round((VelocityMin+rng.Float64()*(VelocityMax-VelocityMin))*10) / 10,
		})
	}
	return out
}

func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}
