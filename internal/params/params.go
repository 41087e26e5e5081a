// Package params reads the solver's flat key/value parameter document and writes
// copies of it with selected keys overridden.
package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// Document is a flat parameter document. Keys keep the order they had in the file
// and values are kept as raw JSON, so keys that are not overridden keep their text.
type Document struct {
	keys   []string
	values map[string]json.RawMessage
}

// Override replaces one key. Raw is written verbatim when it is valid JSON and as
// a JSON string otherwise.
type Override struct {
	Key string `json:"key"`
	Raw string `json:"value"`
}

// ConfigError reports a parameter document that cannot be used. It ends the run
// before any trial starts.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("parameter document %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads a parameter document.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, &ConfigError{Path: path, Err: err}
	}
	doc, err := parse(data)
	if err != nil {
		return Document{}, &ConfigError{Path: path, Err: err}
	}
	return doc, nil
}

func parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return Document{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Document{}, errors.New("document is not an object")
	}

	var doc Document
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Document{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Document{}, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Document{}, fmt.Errorf("value of %s: %w", key, err)
		}
		doc.set(key, raw)
	}
	// Closing brace, then nothing.
	if _, err := dec.Token(); err != nil {
		return Document{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Document{}, errors.New("unexpected data after the document")
	}
	return doc, nil
}

// Keys returns the document's keys in file order.
func (d Document) Keys() []string {
	return slices.Clone(d.keys)
}

// Get returns the raw value of key, or nil when the document has no such key.
func (d Document) Get(key string) json.RawMessage {
	return d.values[key]
}

// set replaces a value in place or appends a new key at the end.
func (d *Document) set(key string, v json.RawMessage) {
	if d.values == nil {
		d.values = make(map[string]json.RawMessage)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// With returns a copy of d with the overrides applied. New keys go last.
func (d Document) With(overrides ...Override) Document {
	out := Document{keys: slices.Clone(d.keys), values: maps.Clone(d.values)}
	for _, o := range overrides {
		out.set(o.Key, o.value())
	}
	return out
}

// Marshal encodes the document with two-space indentation in key order. Nested
// values are re-indented; scalars keep their text.
func (d Document) Marshal() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.WriteString("\n  ")
		b.Write(key)
		b.WriteString(": ")
		if err := json.Indent(&b, d.values[k], "  ", "  "); err != nil {
			return nil, fmt.Errorf("value of %s: %w", k, err)
		}
	}
	if len(d.keys) > 0 {
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return b.Bytes(), nil
}

func (o Override) value() json.RawMessage {
	raw := strings.TrimSpace(o.Raw)
	if raw != "" && json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	b, _ := json.Marshal(o.Raw)
	return b
}

// FileName returns the file name a document with these overrides is written to.
// Distinct override tuples give distinct names.
func FileName(overrides ...Override) string {
	if len(overrides) == 0 {
		return "params_default.json"
	}
	var b strings.Builder
	b.WriteString("params")
	for _, o := range overrides {
		b.WriteByte('_')
		b.WriteString(sanitize(o.Key))
		b.WriteString(sanitize(strings.TrimSpace(o.Raw)))
	}
	b.WriteString(".json")
	return b.String()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._+\-=]`)

func sanitize(s string) string {
	return unsafeChars.ReplaceAllString(s, "-")
}

// Materialize writes base with the overrides applied into dir and returns the path.
// An existing file with identical content is left untouched.
func Materialize(base Document, dir string, overrides ...Override) (string, error) {
	data, err := base.With(overrides...).Marshal()
	if err != nil {
		return "", fmt.Errorf("encode parameters: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create parameter dir: %w", err)
	}
	path := filepath.Join(dir, FileName(overrides...))
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return path, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
