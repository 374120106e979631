package models

import (
	"strconv"
	"strings"
)

// Core monitor configuration attributes every device must carry.
const (
	AttrPollInterval  = "PollInterval"
	AttrEnabledProbes = "EnabledProbes"
)

// Attribute is a single monitor configuration entry.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MonitorConfig is an ordered attribute mapping. Insertion order is kept so
// repaired attributes are appended after the ones the operator provisioned,
// and updates replace values in place.
type MonitorConfig struct {
	attrs []Attribute
}

// NewMonitorConfig builds a config from name/value pairs in order.
// A repeated name overwrites the earlier value.
func NewMonitorConfig(attrs ...Attribute) MonitorConfig {
	var c MonitorConfig
	for _, a := range attrs {
		c.Set(a.Name, a.Value)
	}
	return c
}

// Get returns the value of name and whether it is present.
func (c MonitorConfig) Get(name string) (string, bool) {
	for _, a := range c.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Has reports whether name is present.
func (c MonitorConfig) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Set replaces the value of an existing attribute or appends a new one.
func (c *MonitorConfig) Set(name, value string) {
	for i := range c.attrs {
		if c.attrs[i].Name == name {
			c.attrs[i].Value = value
			return
		}
	}
	c.attrs = append(c.attrs, Attribute{Name: name, Value: value})
}

// Attributes returns a copy of the attributes in order.
func (c MonitorConfig) Attributes() []Attribute {
	out := make([]Attribute, len(c.attrs))
	copy(out, c.attrs)
	return out
}

// Len returns the number of attributes.
func (c MonitorConfig) Len() int {
	return len(c.attrs)
}

// Clone returns an independent copy.
func (c MonitorConfig) Clone() MonitorConfig {
	return MonitorConfig{attrs: c.Attributes()}
}

// Int parses the value of name as a base-10 integer.
func (c MonitorConfig) Int(name string) (int, error) {
	v, ok := c.Get(name)
	if !ok {
		return 0, &MissingAttributeError{Name: name}
	}
	return strconv.Atoi(strings.TrimSpace(v))
}

// MissingAttributeError reports an attribute absent from a MonitorConfig.
type MissingAttributeError struct {
	Name string
}

func (e *MissingAttributeError) Error() string {
	return "missing monitor attribute " + strconv.Quote(e.Name)
}

// PollInterval returns the device poll interval in seconds.
func (c MonitorConfig) PollInterval() (int, error) {
	return c.Int(AttrPollInterval)
}

// EnabledProbes returns the probe names listed in EnabledProbes, trimmed,
// in their configured order. Empty entries are dropped.
func (c MonitorConfig) EnabledProbes() []string {
	v, ok := c.Get(AttrEnabledProbes)
	if !ok {
		return nil
	}
	return SplitList(v)
}

// SplitList splits a comma-separated list, trimming whitespace and dropping
// empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinList renders names in the canonical "a, b" form used for EnabledProbes.
func JoinList(names []string) string {
	return strings.Join(names, ", ")
}
