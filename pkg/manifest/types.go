// Package manifest defines the marketplace manifest format and turns raw
// manifest bytes into a validated Marketplace. Decoding goes through a
// generic YAML tree, a JSON Schema generated from the types in this file,
// a typed decode and a final set of semantic checks. Every problem found
// along the way is reported as a *ManifestError.
package manifest

import (
	"path"
	"strings"
)

// EntityKind is the category an entity belongs to within a plugin.
type EntityKind string

const (
	KindAgent   EntityKind = "agents"
	KindCommand EntityKind = "commands"
	KindSkill   EntityKind = "skills"
)

// EntityKinds lists every kind in the order plugins declare them.
var EntityKinds = []EntityKind{KindAgent, KindCommand, KindSkill}

// Singular returns the human readable singular form, e.g. "skill".
func (k EntityKind) Singular() string {
	return strings.TrimSuffix(string(k), "s")
}

// Valid reports whether k is one of the known kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindAgent, KindCommand, KindSkill:
		return true
	}
	return false
}

// ParseEntityKind accepts both the plural and singular spelling of a kind.
func ParseEntityKind(s string) (EntityKind, bool) {
	k := EntityKind(strings.ToLower(s))
	if k.Valid() {
		return k, true
	}
	k = EntityKind(strings.ToLower(s) + "s")
	if k.Valid() {
		return k, true
	}
	return "", false
}

// Marketplace is the top level manifest document.
type Marketplace struct {
	Name     string        `json:"name,omitempty" jsonschema:"description=Marketplace name"`
	Owner    *Person       `json:"owner,omitempty"`
	Metadata *Metadata     `json:"metadata,omitempty"`
	Plugins  []PluginEntry `json:"plugins" jsonschema:"description=Installable plugins in declaration order"`
}

// Person identifies a marketplace owner or plugin author.
type Person struct {
	Name  string `json:"name" jsonschema:"minLength=1"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Metadata carries free form marketplace information.
type Metadata struct {
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

// PluginEntry is a single plugin declaration.
type PluginEntry struct {
	ID          string   `json:"id" jsonschema:"minLength=1,pattern=^[a-z0-9][a-z0-9._-]*$,description=Globally unique plugin identifier"`
	Name        string   `json:"name" jsonschema:"minLength=1,description=Display name"`
	Category    string   `json:"category" jsonschema:"minLength=1"`
	Version     string   `json:"version,omitempty" jsonschema:"description=Semantic version of the plugin"`
	Description string   `json:"description,omitempty"`
	Author      *Person  `json:"author,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Source      string   `json:"source,omitempty" jsonschema:"description=Plugin content directory relative to the content root"`
	Agents      []string `json:"agents,omitempty"`
	Commands    []string `json:"commands,omitempty"`
	Skills      []string `json:"skills,omitempty"`
}

// Entities returns the declared identifiers of the given kind.
func (p PluginEntry) Entities(kind EntityKind) []string {
	switch kind {
	case KindAgent:
		return p.Agents
	case KindCommand:
		return p.Commands
	case KindSkill:
		return p.Skills
	}
	return nil
}

// SourceDir returns the slash separated content directory of the plugin.
func (p PluginEntry) SourceDir() string {
	if p.Source == "" {
		return path.Join("plugins", p.ID)
	}
	return path.Clean(strings.TrimPrefix(p.Source, "./"))
}
