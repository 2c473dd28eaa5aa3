package dataset

import (
	"math"
	"time"
)

// NoReading marks an empty behavior cell.
const NoReading = -1

// Series holds one cow's columns. Coordinates are NaN where the cell or the
// whole column is missing.
type Series struct {
	Behavior []int
	X, Y, Z  []float64
}

type Observation struct {
	Behavior int
	X, Y, Z  float64
}

// Table is immutable after Parse returns; it is shared across turns without locking.
type Table struct {
	times  []time.Time
	cows   []string
	series map[string]*Series
}

func Empty() *Table {
	return &Table{series: map[string]*Series{}}
}

func (t *Table) Len() int {
	return len(t.times)
}

// Cows returns the tracked cow ids in column order.
func (t *Table) Cows() []string {
	return append([]string(nil), t.cows...)
}

func (t *Table) Time(row int) time.Time {
	return t.times[row]
}

func (t *Table) Has(cow string) bool {
	_, ok := t.series[cow]
	return ok
}

func (t *Table) At(row int, cow string) (Observation, bool) {
	s, ok := t.series[cow]
	if !ok || row < 0 || row >= len(t.times) {
		return Observation{}, false
	}

	return Observation{
		Behavior: s.Behavior[row],
		X:        s.X[row],
		Y:        s.Y[row],
		Z:        s.Z[row],
	}, true
}

func newSeries(rows int) *Series {
	s := &Series{
		Behavior: make([]int, rows),
		X:        make([]float64, rows),
		Y:        make([]float64, rows),
		Z:        make([]float64, rows),
	}

	for i := 0; i < rows; i++ {
		s.Behavior[i] = NoReading
		s.X[i] = math.NaN()
		s.Y[i] = math.NaN()
		s.Z[i] = math.NaN()
	}

	return s
}
