// Package content provides access to the files a marketplace manifest
// refers to. Paths are slash separated and relative to the content root.
// A missing file is reported with an error wrapping fs.ErrNotExist.
package content

import (
	"context"
	"io"
	"path"

	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/manifest"
)

const (
	// SkillFileName is the definition file inside a skill directory.
	SkillFileName = "SKILL.md"
	// MaxFileSize caps every manifest and definition a source returns.
	MaxFileSize = 8 << 20
)

// ErrTooLarge is returned for files larger than MaxFileSize.
var ErrTooLarge = errors.New("file exceeds size limit")

// readLimited reads r in full, failing rather than truncating when it
// holds more than MaxFileSize bytes.
func readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	if len(data) > MaxFileSize {
		return nil, errors.Wrapf(ErrTooLarge, "%s is larger than %d bytes", name, MaxFileSize)
	}
	return data, nil
}

// Source reads marketplace content.
type Source interface {
	// Stat reports whether name exists as a regular file.
	Stat(ctx context.Context, name string) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// Lister is implemented by sources that can enumerate their files, which
// lets callers index definitions without probing each path.
type Lister interface {
	Glob(ctx context.Context, pattern string) ([]string, error)
}

// EntityPath returns the definition file of an entity.
func EntityPath(sourceDir string, kind manifest.EntityKind, id string) string {
	if kind == manifest.KindSkill {
		return path.Join(sourceDir, string(kind), id, SkillFileName)
	}
	return path.Join(sourceDir, string(kind), id+".md")
}

// DefinitionPattern returns a glob matching every definition of kind
// below sourceDir.
func DefinitionPattern(sourceDir string, kind manifest.EntityKind) string {
	return EntityPath(sourceDir, kind, "*")
}

// AnywherePattern returns a glob matching a definition of id at any depth.
func AnywherePattern(kind manifest.EntityKind, id string) string {
	return EntityPath("**", kind, id)
}

// EntityID extracts the entity identifier from a definition path.
func EntityID(kind manifest.EntityKind, p string) string {
	if kind == manifest.KindSkill {
		return path.Base(path.Dir(p))
	}
	base := path.Base(p)
	return base[:len(base)-len(path.Ext(base))]
}

// OwnerDir returns the plugin source directory a definition path lives in.
func OwnerDir(kind manifest.EntityKind, p string) string {
	dir := path.Dir(p)
	if kind == manifest.KindSkill {
		dir = path.Dir(dir)
	}
	return path.Dir(dir)
}
