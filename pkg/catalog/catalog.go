// Package catalog indexes a marketplace manifest into an immutable
// Catalog. Loading validates the manifest and checks that every entity a
// plugin declares has a definition, without reading any definition.
// Bodies are read only by LoadEntityBody.
package catalog

import (
	"context"
	"io/fs"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
	"github.com/jingkaihe/pluginreg/pkg/telemetry"
)

// ErrNotFound is returned when a plugin or entity does not exist.
var ErrNotFound = errors.New("not found")

// PluginSummary is the listing view of a plugin.
type PluginSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// EntitySet holds entity identifiers by kind, in declaration order.
type EntitySet struct {
	Agents   []string `json:"agents"`
	Commands []string `json:"commands"`
	Skills   []string `json:"skills"`
}

// Get returns the identifiers of one kind.
func (s EntitySet) Get(kind manifest.EntityKind) []string {
	switch kind {
	case manifest.KindAgent:
		return s.Agents
	case manifest.KindCommand:
		return s.Commands
	case manifest.KindSkill:
		return s.Skills
	}
	return nil
}

// Contains reports whether the set declares id under kind.
func (s EntitySet) Contains(kind manifest.EntityKind, id string) bool {
	return slices.Contains(s.Get(kind), id)
}

// Len returns the total number of entities.
func (s EntitySet) Len() int {
	return len(s.Agents) + len(s.Commands) + len(s.Skills)
}

func (s EntitySet) clone() EntitySet {
	return EntitySet{
		Agents:   cloneIDs(s.Agents),
		Commands: cloneIDs(s.Commands),
		Skills:   cloneIDs(s.Skills),
	}
}

func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Plugin is a resolved plugin.
type Plugin struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Version     string           `json:"version,omitempty"`
	Description string           `json:"description,omitempty"`
	Author      *manifest.Person `json:"author,omitempty"`
	Keywords    []string         `json:"keywords,omitempty"`
	Source      string           `json:"source"`
	Entities    EntitySet        `json:"entities"`
}

// Summary returns the listing view of p.
func (p Plugin) Summary() PluginSummary {
	return PluginSummary{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Version:     p.Version,
		Description: p.Description,
	}
}

// Refs returns a reference for every entity of p.
func (p Plugin) Refs() []Ref {
	refs := make([]Ref, 0, p.Entities.Len())
	for _, kind := range manifest.EntityKinds {
		for _, id := range p.Entities.Get(kind) {
			refs = append(refs, Ref{Plugin: p.ID, Kind: kind, Entity: id})
		}
	}
	return refs
}

func (p Plugin) clone() Plugin {
	out := p
	out.Entities = p.Entities.clone()
	if p.Keywords != nil {
		out.Keywords = cloneIDs(p.Keywords)
	}
	if p.Author != nil {
		author := *p.Author
		out.Author = &author
	}
	return out
}

// Catalog is an immutable, validated view of a manifest. All methods are
// safe for concurrent use.
type Catalog struct {
	name     string
	owner    *manifest.Person
	metadata manifest.Metadata
	origin   string
	plugins  []Plugin
	byID     map[string]int
	source   content.Source
	digest   digest.Digest
	loadedAt time.Time
}

// Name returns the marketplace name.
func (c *Catalog) Name() string { return c.name }

// Owner returns the marketplace owner, if declared.
func (c *Catalog) Owner() *manifest.Person {
	if c.owner == nil {
		return nil
	}
	owner := *c.owner
	return &owner
}

// Metadata returns the manifest metadata block.
func (c *Catalog) Metadata() manifest.Metadata { return c.metadata }

// Origin returns the manifest location the catalog was loaded from.
func (c *Catalog) Origin() string { return c.origin }

// Digest identifies the catalog content. Equal manifests yield equal digests.
func (c *Catalog) Digest() digest.Digest { return c.digest }

// LoadedAt returns when the catalog was built.
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// Len returns the number of plugins.
func (c *Catalog) Len() int { return len(c.plugins) }

// Plugins lists the plugins in manifest declaration order.
func (c *Catalog) Plugins() []PluginSummary {
	out := make([]PluginSummary, len(c.plugins))
	for i, p := range c.plugins {
		out[i] = p.Summary()
	}
	return out
}

// Resolve returns the plugin with exactly this id.
func (c *Catalog) Resolve(id string) (Plugin, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Plugin{}, errors.Wrapf(ErrNotFound, "plugin %q", id)
	}
	return c.plugins[idx].clone(), nil
}

// EntitiesFor returns the identifiers a plugin provides. Bodies are not read.
func (c *Catalog) EntitiesFor(id string) (EntitySet, error) {
	idx, ok := c.byID[id]
	if !ok {
		return EntitySet{}, errors.Wrapf(ErrNotFound, "plugin %q", id)
	}
	return c.plugins[idx].Entities.clone(), nil
}

// LoadEntityBody reads and returns the definition of ref. It is the only
// operation that reads entity content.
func (c *Catalog) LoadEntityBody(ctx context.Context, ref Ref) (body *content.Body, err error) {
	ctx, span := telemetry.Start(ctx, "catalog.load_entity_body", telemetry.KeyRef.String(ref.String()))
	defer telemetry.Finish(span, &err)

	idx, ok := c.byID[ref.Plugin]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "plugin %q", ref.Plugin)
	}
	p := c.plugins[idx]
	if !ref.Kind.Valid() || !p.Entities.Contains(ref.Kind, ref.Entity) {
		return nil, errors.Wrapf(ErrNotFound, "entity %s", ref)
	}

	name := content.EntityPath(p.Source, ref.Kind, ref.Entity)
	raw, err := c.source.ReadFile(ctx, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNotFound, "entity %s: definition %s is gone", ref, name)
		}
		return nil, errors.Wrapf(err, "failed to load entity %s", ref)
	}

	body, err = content.ParseBody(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse entity %s", ref)
	}

	logger.G(ctx).WithField("ref", ref.String()).WithField("bytes", len(raw)).Debug("loaded entity body")
	return body, nil
}
