package executor

import (
	"fmt"
	"math"
	"time"

	"moobot/app/service/dataset"
	"moobot/app/service/vocab"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// The table is exposed lazily: rows and readings are materialised on access,
// so scripts over large tables do not copy the dataset up front. All values
// are read-only and safe to share between threads.

var (
	_ starlark.HasAttrs  = (*tableValue)(nil)
	_ starlark.Indexable = (*rowsValue)(nil)
	_ starlark.Sequence  = (*rowsValue)(nil)
	_ starlark.HasAttrs  = (*rowValue)(nil)
	_ starlark.Mapping   = (*readingsValue)(nil)
	_ starlark.Sequence  = (*readingsValue)(nil)
)

type tableValue struct {
	table *dataset.Table
	cows  *starlark.List
	rows  *rowsValue
}

func newTableValue(table *dataset.Table) *tableValue {
	ids := table.Cows()
	elems := make([]starlark.Value, 0, len(ids))
	for _, id := range ids {
		elems = append(elems, starlark.String(id))
	}

	cows := starlark.NewList(elems)
	cows.Freeze()

	return &tableValue{
		table: table,
		cows:  cows,
		rows:  &rowsValue{table: table},
	}
}

func (t *tableValue) String() string {
	return fmt.Sprintf("<table rows=%d cows=%d>", t.table.Len(), t.cows.Len())
}
func (t *tableValue) Type() string          { return "table" }
func (t *tableValue) Freeze()               {}
func (t *tableValue) Truth() starlark.Bool  { return t.table.Len() > 0 }
func (t *tableValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: table") }
func (t *tableValue) AttrNames() []string   { return []string{"cows", "rows"} }

func (t *tableValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "cows":
		return t.cows, nil
	case "rows":
		return t.rows, nil
	}

	return nil, nil
}

type rowsValue struct {
	table *dataset.Table
}

func (r *rowsValue) String() string {
	return fmt.Sprintf("<rows len=%d>", r.table.Len())
}
func (r *rowsValue) Type() string          { return "rows" }
func (r *rowsValue) Freeze()               {}
func (r *rowsValue) Truth() starlark.Bool  { return r.table.Len() > 0 }
func (r *rowsValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: rows") }
func (r *rowsValue) Len() int              { return r.table.Len() }

func (r *rowsValue) Index(i int) starlark.Value {
	return &rowValue{table: r.table, row: i}
}

func (r *rowsValue) Iterate() starlark.Iterator {
	return &rowIterator{table: r.table}
}

type rowIterator struct {
	table *dataset.Table
	next  int
}

func (it *rowIterator) Next(p *starlark.Value) bool {
	if it.next >= it.table.Len() {
		return false
	}

	*p = &rowValue{table: it.table, row: it.next}
	it.next++

	return true
}

func (it *rowIterator) Done() {}

type rowValue struct {
	table *dataset.Table
	row   int
}

func (r *rowValue) String() string {
	return fmt.Sprintf("<row %s>", r.table.Time(r.row).Format(time.RFC3339))
}
func (r *rowValue) Type() string          { return "row" }
func (r *rowValue) Freeze()               {}
func (r *rowValue) Truth() starlark.Bool  { return starlark.True }
func (r *rowValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: row") }

func (r *rowValue) AttrNames() []string {
	return []string{"cows", "date", "hour", "minute", "timestamp"}
}

func (r *rowValue) Attr(name string) (starlark.Value, error) {
	ts := r.table.Time(r.row)

	switch name {
	case "timestamp":
		return starlark.String(ts.Format(time.RFC3339)), nil
	case "date":
		return starlark.String(ts.Format("2006-01-02")), nil
	case "hour":
		return starlark.MakeInt(ts.Hour()), nil
	case "minute":
		return starlark.MakeInt(ts.Minute()), nil
	case "cows":
		return &readingsValue{table: r.table, row: r.row}, nil
	}

	return nil, nil
}

// readingsValue maps cow id to the reading of one row.
type readingsValue struct {
	table *dataset.Table
	row   int
}

func (r *readingsValue) String() string        { return fmt.Sprintf("<readings row=%d>", r.row) }
func (r *readingsValue) Type() string          { return "readings" }
func (r *readingsValue) Freeze()               {}
func (r *readingsValue) Truth() starlark.Bool  { return len(r.table.Cows()) > 0 }
func (r *readingsValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: readings") }
func (r *readingsValue) Len() int              { return len(r.table.Cows()) }

func (r *readingsValue) Get(key starlark.Value) (starlark.Value, bool, error) {
	id, ok := starlark.AsString(key)
	if !ok {
		return nil, false, fmt.Errorf("readings: key must be a cow id string, got %s", key.Type())
	}

	obs, ok := r.table.At(r.row, id)
	if !ok {
		return nil, false, nil
	}

	return readingValue(obs), true, nil
}

func (r *readingsValue) Iterate() starlark.Iterator {
	cows := r.table.Cows()
	elems := make([]starlark.Value, 0, len(cows))
	for _, id := range cows {
		elems = append(elems, starlark.String(id))
	}

	return starlark.NewList(elems).Iterate()
}

func readingValue(obs dataset.Observation) starlark.Value {
	var behavior starlark.Value = starlark.None
	if obs.Behavior != dataset.NoReading {
		behavior = starlark.MakeInt(obs.Behavior)
	}

	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"behavior": behavior,
		"x":        coordinate(obs.X),
		"y":        coordinate(obs.Y),
		"z":        coordinate(obs.Z),
	})
}

func coordinate(v float64) starlark.Value {
	if math.IsNaN(v) {
		return starlark.None
	}

	return starlark.Float(v)
}

func number(v starlark.Value) (float64, bool) {
	if v == starlark.None {
		return 0, false
	}

	return starlark.AsFloat(v)
}

func builtinBetween(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value, low, high starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "value", &value, "low", &low, "high", &high); err != nil {
		return nil, err
	}

	v, ok := number(value)
	if !ok {
		return starlark.False, nil
	}

	lo, okLo := number(low)
	hi, okHi := number(high)
	if !okLo || !okHi {
		return nil, fmt.Errorf("%s: bounds must be numbers", fn.Name())
	}

	return starlark.Bool(v >= lo && v <= hi), nil
}

func builtinInRegion(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y starlark.Value
	var name string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "x", &x, "y", &y, "name", &name); err != nil {
		return nil, err
	}

	if _, ok := vocab.RegionByName(name); !ok {
		return nil, fmt.Errorf("%s: unknown region %q", fn.Name(), name)
	}

	xv, okX := number(x)
	yv, okY := number(y)
	if !okX || !okY {
		return starlark.False, nil
	}

	return starlark.Bool(vocab.InRegion(name, xv, yv)), nil
}

func predeclared(table *dataset.Table) starlark.StringDict {
	behaviors := starlark.NewDict(len(vocab.Behaviors))
	for _, b := range vocab.Behaviors {
		_ = behaviors.SetKey(starlark.String(b.Name), starlark.MakeInt(b.Code))
	}
	behaviors.Freeze()

	regionNames := make([]starlark.Value, 0, len(vocab.Regions))
	for _, r := range vocab.Regions {
		regionNames = append(regionNames, starlark.String(r.Name))
	}
	regions := starlark.NewList(regionNames)
	regions.Freeze()

	return starlark.StringDict{
		"df":        newTableValue(table),
		"BEHAVIORS": behaviors,
		"REGIONS":   regions,
		"between":   starlark.NewBuiltin("between", builtinBetween),
		"in_region": starlark.NewBuiltin("in_region", builtinInRegion),
	}
}
