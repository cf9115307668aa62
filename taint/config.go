// Package taint loads taint rules: the methods that produce tainted values
// (sources), the methods whose arguments must not receive them (sinks) and
// the methods that pass taint between their arguments, receiver and result
// (transfers).
//
// Rules are written in YAML:
//
//	sources:
//	  - { method: "<Source: String source()>", type: "String" }
//	sinks:
//	  - { method: "<Sink: void sink(String)>", index: 0 }
//	transfers:
//	  - { method: "<StringBuilder: StringBuilder append(String)>", from: 0, to: base, type: "StringBuilder" }
package taint

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownMethod = errors.New("unknown method")
	ErrUnknownType   = errors.New("unknown type")
	ErrBadSlot       = errors.New("invalid slot")
)

// Slot designates a value at a call site: an argument index, the receiver
// or the result.
type Slot int

const (
	Base   Slot = -1
	Result Slot = -2
)

// IsArg reports whether s is an argument index.
func (s Slot) IsArg() bool { return s >= 0 }

func (s Slot) String() string {
	switch s {
	case Base:
		return "base"
	case Result:
		return "result"
	default:
		return strconv.Itoa(int(s))
	}
}

// ParseSlot parses "base", "result" or a non-negative argument index.
func ParseSlot(s string) (Slot, error) {
	switch s {
	case "base":
		return Base, nil
	case "result":
		return Result, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadSlot, s)
	}
	return Slot(i), nil
}

func (s *Slot) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w at line %d", ErrBadSlot, node.Line)
	}
	slot, err := ParseSlot(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = slot
	return nil
}

func (s Slot) MarshalYAML() (any, error) {
	if s.IsArg() {
		return int(s), nil
	}
	return s.String(), nil
}

// SourceConfig names a method whose result is tainted with the given type.
type SourceConfig struct {
	Method string `yaml:"method"`
	Type   string `yaml:"type"`
}

// SinkConfig names a method argument that must not receive taint.
type SinkConfig struct {
	Method string `yaml:"method"`
	Index  int    `yaml:"index"`
}

// TransferConfig propagates taint between two slots of a call, re-typed as
// Type.
type TransferConfig struct {
	Method string `yaml:"method"`
	From   Slot   `yaml:"from"`
	To     Slot   `yaml:"to"`
	Type   string `yaml:"type"`
}

// Config is the unresolved form of a taint rule file. Methods are named by
// signature and types by name.
type Config struct {
	Sources   []SourceConfig   `yaml:"sources"`
	Sinks     []SinkConfig     `yaml:"sinks"`
	Transfers []TransferConfig `yaml:"transfers"`
}

// Parse decodes a taint rule file. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var config Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing taint config: %w", err)
	}
	return &config, nil
}

// Load reads and parses the taint rule file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taint config: %w", err)
	}
	return Parse(data)
}
