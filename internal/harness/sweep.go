// internal/harness/sweep.go
// Package: harness
package harness

import (
	"fmt"
	"strings"

	"github.com/mwiater/solverbench/internal/params"
)

// Axis is one swept parameter key and its candidate values, kept as written.
type Axis struct {
	Key    string   `json:"key" yaml:"key"`
	Values []string `json:"values" yaml:"values"`
}

// Sweep is an ordered set of axes. Its Cartesian product defines the cells.
type Sweep []Axis

// AxisValue is one coordinate of a cell.
type AxisValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Cell is one point of the sweep. The default cell has no values and runs the
// parameter document unmodified.
type Cell struct {
	Index  int         `json:"index"`
	Values []AxisValue `json:"values,omitempty"`
}

// DefaultCellLabel names the cell of an un-swept run.
const DefaultCellLabel = "default"

// Label is a stable, path-safe name for the cell.
func (c Cell) Label() string {
	if len(c.Values) == 0 {
		return DefaultCellLabel
	}
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = v.Key + "=" + v.Value
	}
	return labelReplacer.Replace(strings.Join(parts, "_"))
}

var labelReplacer = strings.NewReplacer("/", "-", `\`, "-", " ", "-", ":", "-")

// Display is the label used in human-readable logs, e.g. "uct_C=3, utc_D=1000".
func (c Cell) Display() string {
	if len(c.Values) == 0 {
		return DefaultCellLabel
	}
	parts := make([]string, len(c.Values))
	for i, v := range c.Values {
		parts[i] = v.Key + "=" + v.Value
	}
	return strings.Join(parts, ", ")
}

// Overrides converts the cell's coordinates into parameter overrides.
func (c Cell) Overrides() []params.Override {
	out := make([]params.Override, len(c.Values))
	for i, v := range c.Values {
		out[i] = params.Override{Key: v.Key, Raw: v.Value}
	}
	return out
}

// Keys returns the swept parameter keys in axis order.
func (s Sweep) Keys() []string {
	keys := make([]string, len(s))
	for i, a := range s {
		keys[i] = a.Key
	}
	return keys
}

// Cells enumerates the Cartesian product, first axis outermost. An empty sweep
// gives the single default cell.
func (s Sweep) Cells() []Cell {
	combos := [][]AxisValue{nil}
	for _, axis := range s {
		next := make([][]AxisValue, 0, len(combos)*len(axis.Values))
		for _, prefix := range combos {
			for _, v := range axis.Values {
				row := make([]AxisValue, len(prefix), len(prefix)+1)
				copy(row, prefix)
				next = append(next, append(row, AxisValue{Key: axis.Key, Value: v}))
			}
		}
		combos = next
	}
	cells := make([]Cell, len(combos))
	for i, vals := range combos {
		cells[i] = Cell{Index: i, Values: vals}
	}
	return cells
}

// Validate rejects axes that would produce no cells or ambiguous columns.
func (s Sweep) Validate() error {
	seen := map[string]bool{}
	for _, a := range s {
		if strings.TrimSpace(a.Key) == "" {
			return fmt.Errorf("sweep axis with empty key")
		}
		if seen[a.Key] {
			return fmt.Errorf("sweep axis %q given twice", a.Key)
		}
		seen[a.Key] = true
		if len(a.Values) == 0 {
			return fmt.Errorf("sweep axis %q has no values", a.Key)
		}
	}
	return nil
}

// ParseAxis reads the command-line form "key=v1,v2,v3".
func ParseAxis(spec string) (Axis, error) {
	key, list, ok := strings.Cut(spec, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Axis{}, fmt.Errorf("sweep %q: want key=v1,v2", spec)
	}
	var values []string
	for _, v := range strings.Split(list, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return Axis{}, fmt.Errorf("sweep %q: no values", spec)
	}
	return Axis{Key: key, Values: values}, nil
}

// ParseSweep parses several axis specs.
func ParseSweep(specs []string) (Sweep, error) {
	var s Sweep
	for _, spec := range specs {
		a, err := ParseAxis(spec)
		if err != nil {
			return nil, err
		}
		s = append(s, a)
	}
	return s, s.Validate()
}

// Presets are named sweeps.
var Presets = map[string]Sweep{
	// Exploration weight against rollout budget.
	"uct": {
		{Key: "uct_C", Values: []string{"0.5", "1.42", "3.0", "6.0"}},
		{Key: "utc_D", Values: []string{"100", "1000", "100000", "1000000"}},
	},
}
