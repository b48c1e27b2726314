package content

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// PluginDirName is the conventional directory holding a marketplace manifest.
const PluginDirName = ".claude-plugin"

// Location pairs a content source with the manifest path inside it.
type Location struct {
	Source   Source
	Manifest string
	// Origin is the manifest as the user gave it, for display.
	Origin string
}

// IsRemote reports whether manifest names an HTTP(S) URL.
func IsRemote(manifest string) bool {
	return strings.HasPrefix(manifest, "http://") || strings.HasPrefix(manifest, "https://")
}

// Open resolves a manifest path or URL into a Location. When root is
// empty the content root is the manifest's directory, or its parent when
// that directory is .claude-plugin.
func Open(manifest, root string, opts ...HTTPOption) (Location, error) {
	if manifest == "" {
		return Location{}, errors.New("manifest location is required")
	}
	if IsRemote(manifest) {
		return openRemote(manifest, root, opts...)
	}
	return openLocal(manifest, root)
}

func openLocal(manifest, root string) (Location, error) {
	abs, err := filepath.Abs(manifest)
	if err != nil {
		return Location{}, errors.Wrapf(err, "failed to resolve manifest path %s", manifest)
	}

	if root == "" {
		root = defaultRoot(filepath.Dir(abs), filepath.Base, filepath.Dir)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return Location{}, errors.Wrapf(err, "failed to resolve content root %s", root)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil || !filepath.IsLocal(rel) {
		return Location{}, errors.Errorf("manifest %s is outside content root %s", manifest, root)
	}

	return Location{
		Source:   NewDirSource(root),
		Manifest: filepath.ToSlash(rel),
		Origin:   manifest,
	}, nil
}

func openRemote(manifest, root string, opts ...HTTPOption) (Location, error) {
	u, err := url.Parse(manifest)
	if err != nil {
		return Location{}, errors.Wrapf(err, "invalid manifest URL %q", manifest)
	}

	var base *url.URL
	if root != "" {
		base, err = url.Parse(root)
		if err != nil {
			return Location{}, errors.Wrapf(err, "invalid content root URL %q", root)
		}
	} else {
		base = &url.URL{Scheme: u.Scheme, Host: u.Host, User: u.User}
		base.Path = defaultRoot(path.Dir(u.Path), path.Base, path.Dir)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if u.Host != base.Host || !strings.HasPrefix(u.Path, base.Path) {
		return Location{}, errors.Errorf("manifest %s is outside content root %s", manifest, base)
	}

	src, err := NewHTTPSource(base.String(), opts...)
	if err != nil {
		return Location{}, err
	}
	return Location{
		Source:   src,
		Manifest: strings.TrimPrefix(u.Path, base.Path),
		Origin:   manifest,
	}, nil
}

func defaultRoot(dir string, base, parent func(string) string) string {
	if base(dir) == PluginDirName {
		return parent(dir)
	}
	return dir
}
