package internal

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// NewRootFinder returns a function that can be passed the entry names of a ZIP archive to compute their common root
// directory.
//
// Given these three names:
//
//	test/a.txt
//	test/path/b.txt
//	test/another/path/c.txt
//
// The common root directory is "test/". The returned function returns the current root and whether there is a common
// root so far. As soon as it returns false, the search can stop; subsequent calls keep returning "", false.
//
// Backslashes are treated as separators since some archivers on Windows write them.
func NewRootFinder() func(name string) (root string, ok bool) {
	noRoot, root := false, ""

	return func(name string) (string, bool) {
		if noRoot {
			return "", false
		}

		first, _, found := strings.Cut(strings.ReplaceAll(name, `\`, "/"), "/")
		if !found || first == "" || first == "." || first == ".." {
			noRoot = true
			return "", false
		}

		switch root {
		case first + "/":
		case "":
			root = first + "/"
		default:
			noRoot = true
			return "", false
		}

		return root, true
	}
}

// FindRoot returns the common root directory of the given entry names, or "" if there is none.
func FindRoot(names []string) (root string) {
	fn := NewRootFinder()

	var ok bool
	for _, name := range names {
		if root, ok = fn(name); !ok {
			return ""
		}
	}

	return
}

// OutputPath returns the local path for the entry name after removing root and joining with dir.
//
// Returns an error if the entry name would end up outside dir such as "../evil.txt" or "/etc/passwd". The returned
// path is empty (without error) if the name is the root directory itself.
func OutputPath(dir, root, name string) (string, error) {
	rel := strings.TrimPrefix(strings.ReplaceAll(name, `\`, "/"), root)
	if rel == "" {
		return "", nil
	}

	if clean := path.Clean(rel); strings.HasPrefix(rel, "/") || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf(`entry "%s" would be extracted outside "%s"`, name, dir)
	}

	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}
