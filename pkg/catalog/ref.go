package catalog

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/manifest"
)

// Ref addresses one entity: plugin-id/category/entity-id.
type Ref struct {
	Plugin string
	Kind   manifest.EntityKind
	Entity string
}

func (r Ref) String() string {
	return r.Plugin + "/" + string(r.Kind) + "/" + r.Entity
}

// ParseRef parses "plugin/category/entity" or the command shorthand
// "plugin:command". The category accepts singular and plural spellings.
func ParseRef(s string) (Ref, error) {
	if plugin, command, ok := strings.Cut(s, ":"); ok && !strings.Contains(s, "/") {
		if plugin == "" || command == "" {
			return Ref{}, errors.Errorf("invalid command reference %q", s)
		}
		return Ref{Plugin: plugin, Kind: manifest.KindCommand, Entity: command}, nil
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Ref{}, errors.Errorf("invalid entity reference %q, want plugin/category/entity", s)
	}
	kind, ok := manifest.ParseEntityKind(parts[1])
	if !ok {
		return Ref{}, errors.Errorf("invalid entity category %q", parts[1])
	}
	return Ref{Plugin: parts[0], Kind: kind, Entity: parts[2]}, nil
}

// CommandName returns the namespaced form plugin:command.
func CommandName(plugin, command string) string {
	return plugin + ":" + command
}
