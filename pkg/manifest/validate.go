package manifest

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidID reports whether id is a valid plugin or entity identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Check runs the semantic checks the schema cannot express: identifier
// syntax, plugin id uniqueness, per plugin entity uniqueness, versions and
// source directories.
func Check(m *Marketplace) error {
	var errs Collector

	if m.Metadata != nil && m.Metadata.Version != "" {
		if _, err := semver.NewVersion(m.Metadata.Version); err != nil {
			errs.Malformed("", "/metadata/version", "invalid version %q: %s", m.Metadata.Version, err)
		}
	}

	firstSeen := make(map[string]int, len(m.Plugins))
	sourceOwner := make(map[string]string, len(m.Plugins))
	for i, p := range m.Plugins {
		base := fmt.Sprintf("/plugins/%d", i)

		if !ValidID(p.ID) {
			errs.Malformed(p.ID, base+"/id", "invalid plugin identifier %q", p.ID)
		}
		if prev, ok := firstSeen[p.ID]; ok {
			errs.Malformed(p.ID, base+"/id", "duplicate plugin id, first declared at /plugins/%d", prev)
		} else {
			firstSeen[p.ID] = i
		}

		if p.Version != "" {
			if _, err := semver.NewVersion(p.Version); err != nil {
				errs.Malformed(p.ID, base+"/version", "invalid version %q: %s", p.Version, err)
			}
		}

		if p.Source != "" && !validSource(p.Source) {
			errs.Malformed(p.ID, base+"/source", "source %q must be a relative path inside the content root", p.Source)
		} else if owner, ok := sourceOwner[p.SourceDir()]; ok && owner != p.ID {
			// Entities belong to exactly one plugin.
			errs.Malformed(p.ID, base+"/source", "source %q is already used by plugin %q", p.SourceDir(), owner)
		} else {
			sourceOwner[p.SourceDir()] = p.ID
		}

		for _, kind := range EntityKinds {
			checkEntities(&errs, p, kind, base)
		}
	}

	return errs.Err()
}

func checkEntities(errs *Collector, p PluginEntry, kind EntityKind, base string) {
	seen := make(map[string]bool)
	for j, id := range p.Entities(kind) {
		field := fmt.Sprintf("%s/%s/%d", base, kind, j)
		if !ValidID(id) {
			errs.Add(&ManifestError{
				Kind:     MalformedStructure,
				Plugin:   p.ID,
				Category: kind,
				Entity:   id,
				Field:    field,
				Message:  fmt.Sprintf("invalid %s identifier", kind.Singular()),
			})
			continue
		}
		if seen[id] {
			errs.Add(&ManifestError{
				Kind:     MalformedStructure,
				Plugin:   p.ID,
				Category: kind,
				Entity:   id,
				Field:    field,
				Message:  fmt.Sprintf("duplicate %s id", kind.Singular()),
			})
			continue
		}
		seen[id] = true
	}
}

// validSource accepts slash separated relative paths that stay inside the
// content root and contain no glob metacharacters.
func validSource(src string) bool {
	src = strings.TrimPrefix(src, "./")
	if strings.ContainsAny(src, `*?[]{}\`) {
		return false
	}
	return fs.ValidPath(strings.TrimSuffix(src, "/"))
}
