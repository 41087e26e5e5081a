// Package cases finds the input instances a benchmark runs against and narrows
// them with an optional filter document.
package cases

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Default extensions for solver inputs and per-case parameter overrides.
const (
	DefaultInputExt  = ".vtk"
	DefaultParamsExt = ".json"
)

// Case is one input instance.
type Case struct {
	Name      string `json:"name"`
	InputPath string `json:"input_path"`
	// ParamsPath is a co-located parameter document that replaces the default one
	// for this case. Empty when the case has none.
	ParamsPath string `json:"params_path,omitempty"`
}

// Reason classifies why discovery came back empty.
type Reason string

const (
	ReasonMissing    Reason = "missing"
	ReasonPermission Reason = "permission denied"
	ReasonNotInput   Reason = "not an input file"
)

// DiscoveryError is returned alongside an empty case list. It is a warning: the
// caller decides whether an empty list ends the run.
type DiscoveryError struct {
	Path   string
	Reason Reason
	Err    error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discover cases in %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("discover cases in %s: %s", e.Path, e.Reason)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Discover returns the cases found at target in case-insensitive name order.
//
// A directory yields every regular file ending in inputExt. A single input file
// yields one case, with the override lookup scoped to its parent directory.
func Discover(target, inputExt, paramsExt string) ([]Case, error) {
	if inputExt == "" {
		inputExt = DefaultInputExt
	}
	if paramsExt == "" {
		paramsExt = DefaultParamsExt
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, discoveryErr(target, err)
	}
	if !info.IsDir() {
		if !strings.HasSuffix(info.Name(), inputExt) {
			return nil, &DiscoveryError{Path: target, Reason: ReasonNotInput}
		}
		name := strings.TrimSuffix(info.Name(), inputExt)
		return []Case{newCase(filepath.Dir(target), name, inputExt, paramsExt)}, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, discoveryErr(target, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), inputExt) && len(e.Name()) > len(inputExt) {
			names = append(names, strings.TrimSuffix(e.Name(), inputExt))
		}
	}
	SortNames(names)

	out := make([]Case, 0, len(names))
	for _, n := range names {
		out = append(out, newCase(target, n, inputExt, paramsExt))
	}
	return out, nil
}

// SortNames orders names case-insensitively, breaking ties by the raw name so the
// order is stable across filesystems.
func SortNames(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

// Names returns the case names in order.
func Names(cs []Case) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func newCase(dir, name, inputExt, paramsExt string) Case {
	c := Case{Name: name, InputPath: filepath.Join(dir, name+inputExt)}
	override := filepath.Join(dir, name+paramsExt)
	if fi, err := os.Stat(override); err == nil && fi.Mode().IsRegular() {
		c.ParamsPath = override
	}
	return c
}

func discoveryErr(path string, err error) *DiscoveryError {
	reason := ReasonMissing
	if errors.Is(err, fs.ErrPermission) {
		reason = ReasonPermission
	}
	return &DiscoveryError{Path: path, Reason: reason, Err: err}
}
