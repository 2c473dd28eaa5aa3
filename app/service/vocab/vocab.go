// Package vocab maps human terms to the behavior codes and barn regions used
// by the dataset. The tables are rendered into the query synthesis prompts, so
// any query the model produces is expressed in these codes and bounds.
package vocab

import (
	"fmt"
	"math"
	"strings"
)

type Behavior struct {
	Code        int
	Name        string
	Description string
}

var Behaviors = []Behavior{
	{0, "unknown", "The cow is not visible in any camera view."},
	{1, "walking", "Moving from one location to another between consecutive frames."},
	{2, "standing", "Legs are straight up, head is not at the feeding area."},
	{3, "feeding-head-up", "Head is at the feeding area, mouth is above the food."},
	{4, "feeding-head-down", "Head is at the feeding area, mouth touches the food."},
	{5, "licking", "Licking the mineral (salt) block."},
	{6, "drinking", "Drinking at a water trough, mouth touches the water."},
	{7, "lying", "Cow is lying in the stall."},
}

const (
	MinBehavior = 0
	MaxBehavior = 7
)

func BehaviorByName(name string) (Behavior, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, b := range Behaviors {
		if b.Name == name {
			return b, true
		}
	}

	return Behavior{}, false
}

// Span is an inclusive interval.
type Span struct {
	Min, Max float64
}

func (s Span) Contains(v float64) bool {
	return v >= s.Min && v <= s.Max
}

// Box is an axis-aligned rectangle in the barn x/y plane.
type Box struct {
	X, Y Span
}

func (b Box) Contains(x, y float64) bool {
	return b.X.Contains(x) && b.Y.Contains(y)
}

type Region struct {
	Name  string
	Label string
	// Boxes are alternatives; empty means "outside every other region".
	Boxes []Box
}

const (
	RegionResting     = "resting"
	RegionFeeding     = "feeding"
	RegionWaterTrough = "water-trough"
	RegionVentilation = "ventilation"
	RegionCommonBarn  = "common-barn"
)

var Regions = []Region{
	{
		Name:  RegionResting,
		Label: "Resting Area",
		Boxes: []Box{{X: Span{-400, 600}, Y: Span{-200, 200}}},
	},
	{
		Name:  RegionFeeding,
		Label: "Feeding Area",
		Boxes: []Box{{X: Span{-1000, 1000}, Y: Span{-650, -500}}},
	},
	{
		Name:  RegionWaterTrough,
		Label: "Water Troughs Area",
		Boxes: []Box{
			{X: Span{1000, 1100}, Y: Span{-200, 200}},
			{X: Span{-1100, -800}, Y: Span{-200, 200}},
		},
	},
	{
		Name:  RegionVentilation,
		Label: "Ventilation Area",
		Boxes: []Box{{X: Span{-1100, -800}, Y: Span{-200, 200}}},
	},
	{
		Name:  RegionCommonBarn,
		Label: "Common Barn Area",
	},
}

// RegionNames is the space separated list used by validator oneof tags.
var RegionNames = func() string {
	names := make([]string, 0, len(Regions))
	for _, r := range Regions {
		names = append(names, r.Name)
	}
	return strings.Join(names, " ")
}()

func RegionByName(name string) (Region, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range Regions {
		if r.Name == name {
			return r, true
		}
	}

	return Region{}, false
}

// InRegion reports whether the point lies in the named region. Unknown names
// and NaN coordinates never match.
func InRegion(name string, x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}

	region, ok := RegionByName(name)
	if !ok {
		return false
	}

	if len(region.Boxes) == 0 {
		for _, other := range Regions {
			if len(other.Boxes) > 0 && other.contains(x, y) {
				return false
			}
		}
		return true
	}

	return region.contains(x, y)
}

func (r Region) contains(x, y float64) bool {
	for _, b := range r.Boxes {
		if b.Contains(x, y) {
			return true
		}
	}

	return false
}

func BehaviorTable() string {
	var builder strings.Builder

	for _, b := range Behaviors {
		builder.WriteString(fmt.Sprintf("%d: %s - %s\n", b.Code, b.Name, b.Description))
	}

	return builder.String()
}

func RegionTable() string {
	var builder strings.Builder

	for _, r := range Regions {
		builder.WriteString(fmt.Sprintf("- %s (%s): ", r.Label, r.Name))

		if len(r.Boxes) == 0 {
			builder.WriteString("locations not specified above.\n")
			continue
		}

		parts := make([]string, 0, len(r.Boxes))
		for _, b := range r.Boxes {
			parts = append(parts, fmt.Sprintf("x between %s and %s, y between %s and %s",
				formatBound(b.X.Min), formatBound(b.X.Max), formatBound(b.Y.Min), formatBound(b.Y.Max)))
		}
		builder.WriteString(strings.Join(parts, " or "))
		builder.WriteString(".\n")
	}

	return builder.String()
}

func formatBound(v float64) string {
	return fmt.Sprintf("%g", v)
}
