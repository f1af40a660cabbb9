// Package definition loads workflow state machines from YAML files, so a
// workflow can be authored as data and compiled into a runnable machine.
package definition

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the on-disk shape of a workflow.
type Definition struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description,omitempty"`
	Start          string            `yaml:"start"`
	MaxTransitions int               `yaml:"maxTransitions,omitempty"`
	States         []StateDefinition `yaml:"states"`
}

// StateDefinition declares one state.
type StateDefinition struct {
	Name              string                 `yaml:"name"`
	Description       string                 `yaml:"description,omitempty"`
	Entry             map[string]any         `yaml:"entry,omitempty"`
	Transitions       []TransitionDefinition `yaml:"transitions,omitempty"`
	End               bool                   `yaml:"end,omitempty"`
	ShowHistory       bool                   `yaml:"showHistory,omitempty"`
	SuppressResources bool                   `yaml:"suppressResources,omitempty"`
	PreInstructions   string                 `yaml:"preInstructions,omitempty"`
	PostInstructions  string                 `yaml:"postInstructions,omitempty"`
	RouteToStatus     bool                   `yaml:"routeToStatus,omitempty"`
	Passthrough       bool                   `yaml:"passthrough,omitempty"`
	Async             bool                   `yaml:"async,omitempty"`
	FailFast          bool                   `yaml:"failFast,omitempty"`
}

// TransitionDefinition declares one labeled edge.
type TransitionDefinition struct {
	To          string `yaml:"to"`
	Description string `yaml:"description,omitempty"`
}

// Load reads and parses a definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return Parse(data)
}

// Parse parses definition YAML.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("definition: name is required")
	}
	if def.Start == "" {
		return nil, fmt.Errorf("definition %q: start state is required", def.Name)
	}
	if len(def.States) == 0 {
		return nil, fmt.Errorf("definition %q: at least one state is required", def.Name)
	}
	return &def, nil
}
