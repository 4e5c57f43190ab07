// SPDX-License-Identifier: MPL-2.0

package execspec

import (
	"iter"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvMap is an insertion-ordered set of environment variables. Setting an
// existing name keeps its original position.
type EnvMap struct {
	names  []string
	values map[string]string
}

// NewEnvMap returns an empty EnvMap.
func NewEnvMap() *EnvMap {
	return &EnvMap{values: make(map[string]string)}
}

// Set assigns value to name and reports the previous value, if any.
func (m *EnvMap) Set(name, value string) (prev string, replaced bool) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	prev, replaced = m.values[name]
	if !replaced {
		m.names = append(m.names, name)
	}
	m.values[name] = value
	return prev, replaced
}

// Get returns the value of name.
func (m *EnvMap) Get(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[name]
	return v, ok
}

// Len returns the number of variables.
func (m *EnvMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Names returns the variable names in insertion order.
func (m *EnvMap) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// All iterates the variables in insertion order.
func (m *EnvMap) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if m == nil {
			return
		}
		for _, name := range m.names {
			if !yield(name, m.values[name]) {
				return
			}
		}
	}
}

// Environ returns the variables as "NAME=value" strings in insertion order.
func (m *EnvMap) Environ() []string {
	out := make([]string, 0, m.Len())
	for name, value := range m.All() {
		out = append(out, name+"="+value)
	}
	return out
}

// Clone returns an independent copy of m.
func (m *EnvMap) Clone() *EnvMap {
	c := NewEnvMap()
	for name, value := range m.All() {
		c.Set(name, value)
	}
	return c
}

// MarshalYAML renders the map as an ordered YAML mapping.
func (m *EnvMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for name, value := range m.All() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value, Style: quoteStyle(value)},
		)
	}
	return node, nil
}

func quoteStyle(value string) yaml.Style {
	if value == "" || strings.ContainsAny(value, ":#{}[]&*!|>'\"%@`") {
		return yaml.DoubleQuotedStyle
	}
	return 0
}
