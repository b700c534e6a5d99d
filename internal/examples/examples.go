// Package examples provides the catalog of example queries offered in the
// editor's example selector.
package examples

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var builtin []byte

// Example is a named query template.
type Example struct {
	Name string `yaml:"name"`
	SQL  string `yaml:"sql"`
}

// Catalog is an ordered list of examples. The first entry is the default
// selection.
type Catalog struct {
	examples []Example
	index    map[string]int
}

type catalogFile struct {
	Examples []Example `yaml:"examples"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("builtin examples: %v", err))
	}
	return c
}

// Builtin returns the YAML source of the built-in catalog.
func Builtin() []byte {
	return bytes.Clone(builtin)
}

// Parse decodes a catalog from YAML. Unknown fields, empty names and
// duplicate names are rejected.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse examples: %w", err)
	}
	if len(f.Examples) == 0 {
		return nil, fmt.Errorf("examples file defines no examples")
	}

	c := &Catalog{
		examples: make([]Example, 0, len(f.Examples)),
		index:    make(map[string]int, len(f.Examples)),
	}
	for i, e := range f.Examples {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("example %d has no name", i+1)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("duplicate example %q", name)
		}
		c.index[name] = len(c.examples)
		c.examples = append(c.examples, Example{Name: name, SQL: e.SQL})
	}
	return c, nil
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-configured path
	if err != nil {
		return nil, fmt.Errorf("failed to read examples file: %w", err)
	}
	return Parse(data)
}

// Names returns the example names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.examples))
	for i, e := range c.examples {
		names[i] = e.Name
	}
	return names
}

// All returns a copy of the examples in catalog order.
func (c *Catalog) All() []Example {
	out := make([]Example, len(c.examples))
	copy(out, c.examples)
	return out
}

// Lookup returns the trimmed SQL of the named example.
func (c *Catalog) Lookup(name string) (string, bool) {
	i, ok := c.index[name]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(c.examples[i].SQL), true
}

// Len returns the number of examples.
func (c *Catalog) Len() int { return len(c.examples) }
