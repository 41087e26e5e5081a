package cases

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrNoFilter is returned by LoadFilter when the filter document does not exist.
var ErrNoFilter = errors.New("no filter document")

// FilterParseError reports a filter document that exists but cannot be read as a
// list of case names. Callers fall back to running every case.
type FilterParseError struct {
	Path string
	Err  error
}

func (e *FilterParseError) Error() string {
	return fmt.Sprintf("read filter %s: %v", e.Path, e.Err)
}

func (e *FilterParseError) Unwrap() error { return e.Err }

// LoadFilter reads an ordered list of case names from a JSON or YAML document.
func LoadFilter(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoFilter
		}
		return nil, &FilterParseError{Path: path, Err: err}
	}
	var names []string
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, &FilterParseError{Path: path, Err: err}
	}
	return names, nil
}

// ApplyFilter keeps the cases named in names, preserving discovery order. An empty
// filter keeps everything.
func ApplyFilter(cs []Case, names []string) []Case {
	if len(names) == 0 {
		return cs
	}
	out := make([]Case, 0, len(cs))
	for _, c := range cs {
		if slices.Contains(names, c.Name) {
			out = append(out, c)
		}
	}
	return out
}
