package servant

import (
	"fmt"
	"reflect"

	"github.com/vk/lazyflow/internal/envexplorer"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Direction tells whether a slot feeds a function or receives its result.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Input, Output:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown slot direction %q", s)
}

// Channel is a named data conduit on the servant.
type Channel struct {
	Name string `yaml:"name"`
}

// Slot describes one endpoint of a published function.
type Slot struct {
	Name      string    `yaml:"name"`
	Direction Direction `yaml:"direction"`
	// Type is the JSON encoding of the cty type the slot carries.
	Type string `yaml:"type"`
}

// Binding attaches a slot of an execution to a channel.
type Binding struct {
	Slot    string `yaml:"slot"`
	Channel string `yaml:"channel"`
}

// Zygote is a function published to a servant.
type Zygote struct {
	Name  string                `yaml:"name"`
	Slots []Slot                `yaml:"slots"`
	Env   *envexplorer.Manifest `yaml:"env,omitempty"`
}

// Slot returns the slot with the given name.
func (z *Zygote) Slot(name string) (Slot, bool) {
	for _, s := range z.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return Slot{}, false
}

// ExecutionResult is the outcome of one execution.
type ExecutionResult struct {
	Stdout   string `yaml:"stdout"`
	Stderr   string `yaml:"stderr"`
	ExitCode int    `yaml:"exit_code"`
}

// Succeeded is true when the execution exited with code 0 and wrote nothing
// to stderr.
func (r ExecutionResult) Succeeded() bool {
	return r.ExitCode == 0 && r.Stderr == ""
}

// Slot names used by the remote executor.
const OutputSlot = "out"

// InputSlot returns the name of the i-th input slot.
func InputSlot(i int) string { return fmt.Sprintf("in/%d", i) }

// TypeDescriptor derives the cty type descriptor of a Go type. Types that
// have no cty equivalent are described as dynamic.
func TypeDescriptor(t reflect.Type) string {
	ct := cty.DynamicPseudoType
	if t != nil && t.Kind() != reflect.Interface {
		if implied, err := gocty.ImpliedType(reflect.Zero(t).Interface()); err == nil {
			ct = implied
		}
	}
	b, err := ctyjson.MarshalType(ct)
	if err != nil {
		return `"dynamic"`
	}
	return string(b)
}

// ParseTypeDescriptor decodes a descriptor produced by TypeDescriptor.
func ParseTypeDescriptor(s string) (cty.Type, error) {
	return ctyjson.UnmarshalType([]byte(s))
}
