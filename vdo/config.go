package vdo

import (
	"maps"
	"slices"
)

// Source records where an option's value came from.
type Source int

const (
	SourceAbsent   Source = iota // not supplied and no default
	SourceDefault                // catalog default substituted
	SourceSupplied               // given on the command line
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceSupplied:
		return "supplied"
	default:
		return "absent"
	}
}

// Value is one option's resolved value.
type Value struct {
	Raw    string
	Parsed any
	Source Source
}

// Config is the normalized, validated form of one invocation. It is built
// once by the argument processor and handed to exactly one operation.
type Config struct {
	Command string
	values  map[string]Value
}

// NewConfig returns an empty config for command.
func NewConfig(command string) *Config {
	return &Config{Command: command, values: make(map[string]Value)}
}

// Set records the value of an option.
func (c *Config) Set(name string, v Value) {
	c.values[name] = v
}

// Lookup returns the value for name; ok is false when it is absent.
func (c *Config) Lookup(name string) (Value, bool) {
	v, ok := c.values[name]
	if !ok || v.Source == SourceAbsent {
		return Value{}, false
	}
	return v, true
}

// Supplied reports whether name was given explicitly.
func (c *Config) Supplied(name string) bool {
	return c.values[name].Source == SourceSupplied
}

// SourceOf reports where name's value came from.
func (c *Config) SourceOf(name string) Source {
	return c.values[name].Source
}

// Names returns every option name known to the config, sorted.
func (c *Config) Names() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// String returns the string value of name, or "".
func (c *Config) String(name string) string {
	s, _ := c.values[name].Parsed.(string)
	return s
}

// Bool returns the flag value of name.
func (c *Config) Bool(name string) bool {
	b, _ := c.values[name].Parsed.(bool)
	return b
}

// Int returns the integer value of name.
func (c *Config) Int(name string) int {
	n, _ := c.values[name].Parsed.(int)
	return n
}

// Size returns the size value of name.
func (c *Config) Size(name string) Size {
	s, _ := c.values[name].Parsed.(Size)
	return s
}

// IndexMemory returns the index memory value of name.
func (c *Config) IndexMemory(name string) IndexMemory {
	m, _ := c.values[name].Parsed.(IndexMemory)
	return m
}

// Enabled reports whether an enabled/disabled option is "enabled".
func (c *Config) Enabled(name string) bool {
	return c.String(name) == Enabled
}

// Summary flattens the config for logging: supplied options with their raw
// values, defaults marked as such.
func (c *Config) Summary() map[string]string {
	out := make(map[string]string, len(c.values))
	for name, v := range c.values {
		switch v.Source {
		case SourceSupplied:
			out[name] = v.Raw
		case SourceDefault:
			out[name] = v.Raw + " (default)"
		}
	}
	return out
}
