// Package scripts runs actions implemented as external executables. Each
// action lives in its own directory with a manifest.yaml and an entrypoint
// that speaks JSON over stdin/stdout.
package scripts

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/protocol"
)

const manifestFilename = "manifest.yaml"

// Manifest is the content of an action's manifest.yaml.
type Manifest struct {
	Identifier  string   `yaml:"identifier"`
	Label       string   `yaml:"label"`
	Variant     string   `yaml:"variant,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Icon        string   `yaml:"icon,omitempty"`
	Protocol    int      `yaml:"protocol"`
	Entrypoint  string   `yaml:"entrypoint"`
	Commands    []string `yaml:"commands"`
}

// Script is a discovered, validated action script.
type Script struct {
	action.Descriptor
	Dir        string
	Entrypoint string
	Protocol   int
	Commands   []string
}

// Supports reports whether the script implements command.
func (s *Script) Supports(command string) bool {
	for _, c := range s.Commands {
		if c == command {
			return true
		}
	}
	return false
}

func (m *Manifest) validate() error {
	if strings.TrimSpace(m.Identifier) == "" {
		return fmt.Errorf("identifier is required")
	}
	if m.Label == "" {
		m.Label = m.Identifier
	}
	if m.Protocol == 0 {
		return fmt.Errorf("protocol version is required")
	}
	if m.Protocol != protocol.ScriptProtocolVersion {
		return fmt.Errorf("unsupported protocol version %d (supported: %d)", m.Protocol, protocol.ScriptProtocolVersion)
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("entrypoint is required")
	}
	if strings.Contains(m.Entrypoint, "..") {
		return fmt.Errorf("entrypoint contains path traversal: %s", m.Entrypoint)
	}
	if len(m.Commands) == 0 {
		return fmt.Errorf("at least one command must be declared")
	}

	valid := map[string]bool{
		protocol.CommandDiscover:  true,
		protocol.CommandInterface: true,
		protocol.CommandLaunch:    true,
	}
	hasLaunch := false
	for _, c := range m.Commands {
		if !valid[c] {
			return fmt.Errorf("invalid command %q (valid: discover, interface, launch)", c)
		}
		if c == protocol.CommandLaunch {
			hasLaunch = true
		}
	}
	if !hasLaunch {
		return fmt.Errorf("launch command is required")
	}
	return nil
}
