package content

import (
	"context"
	"io/fs"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// DirSource serves content from a file system.
type DirSource struct {
	fsys fs.FS
	root string
}

// NewDirSource returns a source rooted at a local directory.
func NewDirSource(root string) *DirSource {
	return &DirSource{fsys: os.DirFS(root), root: root}
}

// NewFSSource returns a source over an arbitrary file system.
func NewFSSource(fsys fs.FS) *DirSource {
	return &DirSource{fsys: fsys}
}

// Root returns the local directory backing the source, if any.
func (s *DirSource) Root() string {
	return s.root
}

func (s *DirSource) Stat(_ context.Context, name string) error {
	info, err := fs.Stat(s.fsys, name)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", name)
	}
	if info.IsDir() {
		return errors.Wrapf(fs.ErrNotExist, "%s is a directory", name)
	}
	return nil
}

func (s *DirSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	f, err := s.fsys.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	defer f.Close()

	return readLimited(f, name)
}

// Glob lists files matching a doublestar pattern.
func (s *DirSource) Glob(_ context.Context, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(s.fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to glob %s", pattern)
	}
	return matches, nil
}
