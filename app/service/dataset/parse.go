package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var columnRe = regexp.MustCompile(`^([A-Za-z]*\d{2})_(behavior|x|y|z)$`)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
}

type column struct {
	cow   string
	field string
}

// Parse reads a CSV with a timestamp column and <cow>_behavior, <cow>_x,
// <cow>_y, <cow>_z columns. Any subset of a cow's columns may be present.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty dataset")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	timeIdx := -1
	columns := make([]*column, len(header))
	seen := make(map[string]bool)
	var cows []string

	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))

		if name == "timestamp" {
			timeIdx = i
			continue
		}

		m := columnRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		columns[i] = &column{cow: m[1], field: m[2]}
		if !seen[m[1]] {
			seen[m[1]] = true
			cows = append(cows, m[1])
		}
	}

	if timeIdx < 0 {
		return nil, fmt.Errorf("missing timestamp column")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	sort.Strings(cows)

	table := &Table{
		times:  make([]time.Time, len(records)),
		cows:   cows,
		series: make(map[string]*Series, len(cows)),
	}
	for _, cow := range cows {
		table.series[cow] = newSeries(len(records))
	}

	for row, record := range records {
		line := row + 2

		ts, err := parseTime(record[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		table.times[row] = ts

		for i, col := range columns {
			if col == nil {
				continue
			}

			cell := strings.TrimSpace(record[i])
			if cell == "" || strings.EqualFold(cell, "nan") {
				continue
			}

			if err = table.series[col.cow].set(col.field, row, cell); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, header[i], err)
			}
		}
	}

	return table, nil
}

func (s *Series) set(field string, row int, cell string) error {
	if field == "behavior" {
		// behavior columns are sometimes written as floats by upstream tooling
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return fmt.Errorf("invalid behavior %q: %w", cell, err)
		}
		s.Behavior[row] = int(v)
		return nil
	}

	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %q: %w", cell, err)
	}

	switch field {
	case "x":
		s.X[row] = v
	case "y":
		s.Y[row] = v
	case "z":
		s.Z[row] = v
	}

	return nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
