// Package config loads declarative tool server definitions from a YAML or
// JSON file, expands environment variable references, and converts the
// result into the manager's definition order. It is a collaborator of the
// core, not part of it: the manager only ever sees fully-expanded
// definitions.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cerekinorg/toolhost/manager"
)

// Server defines one entry under toolServers. YAML 1.2 is a superset of
// JSON, so the same structure parses either format.
type Server struct {
	Command   string            `yaml:"command" json:"command"`
	Args      []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Transport string            `yaml:"transport,omitempty" json:"transport,omitempty"`
	Priority  int               `yaml:"priority,omitempty" json:"priority,omitempty"`
	Name      string            `yaml:"name,omitempty" json:"name,omitempty"`
}

// File is a parsed configuration file.
type File struct {
	ToolServers map[string]Server `yaml:"toolServers" json:"toolServers"`

	// MissingEnv lists variables referenced in the file but absent from the
	// process environment. They expand to empty strings; whether that is an
	// error is the caller's call.
	MissingEnv []string `yaml:"-" json:"-"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references against the process environment and
// decodes the result.
func Parse(data []byte) (*File, error) {
	expanded, missing, err := expandConfigEnv(data)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(expanded, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	f.MissingEnv = missing
	return &f, nil
}

// Definitions converts the parsed servers into manager definitions sorted by
// ascending priority (lower value first), with the server id as tiebreak so
// the order is deterministic.
func (f *File) Definitions() ([]manager.ServerDefinition, error) {
	defs := make([]manager.ServerDefinition, 0, len(f.ToolServers))
	for id, server := range f.ToolServers {
		if server.Command == "" {
			return nil, fmt.Errorf("server %q: command is required", id)
		}
		transport := manager.TransportStdio
		if server.Transport != "" {
			transport = manager.TransportKind(server.Transport)
		}
		displayName := server.Name
		if displayName == "" {
			displayName = id
		}
		defs = append(defs, manager.ServerDefinition{
			ServerID:    id,
			DisplayName: displayName,
			Command:     server.Command,
			Args:        server.Args,
			Env:         server.Env,
			Transport:   transport,
			Priority:    server.Priority,
		})
	}

	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Priority != defs[j].Priority {
			return defs[i].Priority < defs[j].Priority
		}
		return defs[i].ServerID < defs[j].ServerID
	})
	return defs, nil
}
