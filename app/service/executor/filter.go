package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"moobot/app/service/dataset"
	"moobot/app/service/vocab"

	"github.com/go-playground/validator/v10"
)

// Filter is the structured query the model fills in instead of writing code.
// A cow matches when at least one row satisfies every non-empty field.
type Filter struct {
	Behaviors []int      `json:"behaviors,omitempty" validate:"dive,min=0,max=7"`
	Regions   []string   `json:"regions,omitempty" validate:"dive,region"`
	X         *Range     `json:"x,omitempty" validate:"omitempty"`
	Y         *Range     `json:"y,omitempty" validate:"omitempty"`
	Z         *Range     `json:"z,omitempty" validate:"omitempty"`
	Hours     *HourRange `json:"hours,omitempty" validate:"omitempty"`
	Date      string     `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Cows      []string   `json:"cows,omitempty" validate:"dive,required"`
}

type Range struct {
	Min float64 `json:"min" validate:"ltefield=Max"`
	Max float64 `json:"max"`
}

func (r *Range) contains(v float64) bool {
	return r == nil || (v >= r.Min && v <= r.Max)
}

// HourRange is inclusive; From > To wraps past midnight.
type HourRange struct {
	From int `json:"from" validate:"min=0,max=23"`
	To   int `json:"to" validate:"min=0,max=23"`
}

func (h *HourRange) contains(hour int) bool {
	if h == nil {
		return true
	}
	if h.From <= h.To {
		return hour >= h.From && hour <= h.To
	}
	return hour >= h.From || hour <= h.To
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("region", func(fl validator.FieldLevel) bool {
		_, ok := vocab.RegionByName(fl.Field().String())
		return ok
	})

	return validate
}

func decodeFilter(validate *validator.Validate, body string) (*Filter, error) {
	decoder := json.NewDecoder(bytes.NewBufferString(body))
	decoder.DisallowUnknownFields()

	var filter Filter
	if err := decoder.Decode(&filter); err != nil {
		return nil, fmt.Errorf("failed to decode filter: %w", err)
	}

	if err := validate.Struct(filter); err != nil {
		return nil, fmt.Errorf("failed to validate filter: %w", err)
	}

	return &filter, nil
}

// Match returns matching cows in table column order.
func (f *Filter) Match(table *dataset.Table) []string {
	rows := make([]int, 0, table.Len())
	for row := 0; row < table.Len(); row++ {
		ts := table.Time(row)
		if !f.Hours.contains(ts.Hour()) {
			continue
		}
		if f.Date != "" && ts.Format("2006-01-02") != f.Date {
			continue
		}
		rows = append(rows, row)
	}

	result := make([]string, 0)

	for _, cow := range table.Cows() {
		if len(f.Cows) > 0 && !slices.Contains(f.Cows, cow) {
			continue
		}

		for _, row := range rows {
			obs, _ := table.At(row, cow)
			if f.matches(obs) {
				result = append(result, cow)
				break
			}
		}
	}

	return result
}

func (f *Filter) matches(obs dataset.Observation) bool {
	if len(f.Behaviors) > 0 && !slices.Contains(f.Behaviors, obs.Behavior) {
		return false
	}

	if len(f.Regions) > 0 {
		inside := false
		for _, region := range f.Regions {
			if vocab.InRegion(region, obs.X, obs.Y) {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}

	return f.X.contains(obs.X) && f.Y.contains(obs.Y) && f.Z.contains(obs.Z)
}
