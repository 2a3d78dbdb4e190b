package indexer

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

// discoveredFile is one artifact found under a data root.
type discoveredFile struct {
	// Abs is the filesystem path used for reads.
	Abs string
	// Rel is the slash-separated path relative to the data root. This is
	// the form stored in the catalog, so databases stay portable across
	// machines and mount points.
	Rel string
}

// discoverFiles walks root and returns every regular file whose
// root-relative path matches pattern, sorted lexicographically so batches
// are always formed in the same order. Hidden directories are skipped.
func discoverFiles(root, pattern string) ([]discoveredFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.New(err).
			Component("indexer").
			Category(errors.CategoryFileIO).
			Context("operation", "discover").
			Context("root", root).
			Build()
	}
	if !info.IsDir() {
		return nil, errors.Newf("data root %s is not a directory", root).
			Component("indexer").
			Category(errors.CategoryConfiguration).
			Context("root", root).
			Build()
	}

	var files []discoveredFile
	err = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		ok, err := matchGlob(pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, discoveredFile{Abs: p, Rel: rel})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, path.ErrBadPattern) {
			return nil, errors.Newf("invalid glob pattern %q", pattern).
				Component("indexer").
				Category(errors.CategoryConfiguration).
				Context("pattern", pattern).
				Build()
		}
		return nil, errors.New(err).
			Component("indexer").
			Category(errors.CategoryFileIO).
			Context("operation", "discover").
			Context("root", root).
			Build()
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Rel < files[j].Rel
	})
	return files, nil
}

// matchGlob matches a slash-separated relative path against pattern.
// Patterns follow path.Match syntax, extended with a leading "**/" that
// matches any number of directories, including none. "**/*.wav" therefore
// matches both "call.wav" and "bird12/d7/call.wav".
func matchGlob(pattern, relPath string) (bool, error) {
	rest, recursive := strings.CutPrefix(pattern, "**/")
	if !recursive {
		return path.Match(pattern, relPath)
	}
	for {
		ok, err := path.Match(rest, relPath)
		if ok || err != nil {
			return ok, err
		}
		i := strings.Index(relPath, "/")
		if i < 0 {
			return false, nil
		}
		relPath = relPath[i+1:]
	}
}

// normalizeArtifactPath turns a manifest-supplied artifact reference into
// the catalog's root-relative slash form. Absolute paths under root are
// relativized; absolute paths outside root are kept as given so the
// mismatch surfaces at lookup time instead of silently aliasing.
func normalizeArtifactPath(root, ref string) string {
	if ref == "" {
		return ""
	}
	p := filepath.FromSlash(ref)
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
		return filepath.ToSlash(filepath.Clean(p))
	}
	return path.Clean(ref)
}

// resolveArtifactPath maps a catalog-relative reference back to a
// filesystem path under root for reads.
func resolveArtifactPath(root, rel string) string {
	p := filepath.FromSlash(rel)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
