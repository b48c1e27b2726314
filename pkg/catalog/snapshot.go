package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/aymanbagabas/go-udiff"
	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// Snapshot is the catalog metadata without any entity body. It is what the
// digest covers and what export writes.
type Snapshot struct {
	Name    string           `json:"name,omitempty"`
	Plugins []PluginSnapshot `json:"plugins"`
}

// PluginSnapshot is the metadata of one plugin.
type PluginSnapshot struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Version  string    `json:"version,omitempty"`
	Source   string    `json:"source"`
	Entities EntitySet `json:"entities"`
}

// Snapshot returns the catalog metadata in declaration order.
func (c *Catalog) Snapshot() Snapshot {
	s := Snapshot{
		Name:    c.name,
		Plugins: make([]PluginSnapshot, len(c.plugins)),
	}
	for i, p := range c.plugins {
		s.Plugins[i] = PluginSnapshot{
			ID:       p.ID,
			Name:     p.Name,
			Category: p.Category,
			Version:  p.Version,
			Source:   p.Source,
			Entities: p.Entities.clone(),
		}
	}
	return s
}

// computeDigest hashes the RFC 8785 canonical form of s.
func computeDigest(s Snapshot) (digest.Digest, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal catalog snapshot")
	}
	canonical, err := jsoncanonicalizer.Transform(data)
	if err != nil {
		return "", errors.Wrap(err, "failed to canonicalize catalog snapshot")
	}
	return digest.FromBytes(canonical), nil
}

// Export is the on-disk form of a snapshot.
type Export struct {
	Digest  digest.Digest `json:"digest"`
	Catalog Snapshot      `json:"catalog"`
}

// Export returns the exportable form of the catalog.
func (c *Catalog) Export() Export {
	return Export{Digest: c.digest, Catalog: c.Snapshot()}
}

// WriteExport writes the catalog snapshot to path under a file lock.
func WriteExport(path string, c *Catalog) error {
	data, err := json.MarshalIndent(c.Export(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal catalog export")
	}
	data = append(data, '\n')

	if err := lockedfile.Write(path, bytes.NewReader(data), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write catalog export %s", path)
	}
	return nil
}

// ReadExport reads a snapshot written by WriteExport and checks its digest.
func ReadExport(path string) (*Export, error) {
	data, err := lockedfile.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog export %s", path)
	}

	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.Wrapf(err, "failed to parse catalog export %s", path)
	}

	actual, err := computeDigest(e.Catalog)
	if err != nil {
		return nil, err
	}
	if e.Digest != "" && e.Digest != actual {
		return nil, errors.Errorf("catalog export %s is corrupt: digest %s does not match content %s", path, e.Digest, actual)
	}
	e.Digest = actual
	return &e, nil
}

// Diff returns a unified diff between two snapshots, or "" when equal.
func Diff(oldLabel string, old Snapshot, newLabel string, updated Snapshot) (string, error) {
	a, err := json.MarshalIndent(old, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal snapshot")
	}
	b, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal snapshot")
	}
	if bytes.Equal(a, b) {
		return "", nil
	}
	return udiff.Unified(oldLabel, newLabel, string(a)+"\n", string(b)+"\n"), nil
}
