// Package pathutil provides path manipulation for slash-separated archive paths.
package pathutil

import (
	"path"
	"path/filepath"
	"strings"
)

// Root is the pathname of an unprefixed archive root.
const Root = "."

// FromPrefix converts a user-supplied prefix to an archive pathname.
// Separators become slashes, and leading slashes and trailing slashes are
// dropped. An empty result is Root.
func FromPrefix(prefix string) string {
	p := path.Clean("/" + filepath.ToSlash(prefix))
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return Root
	}
	return p
}

// Child joins a directory pathname and an entry name.
// Children of Root carry no "./" prefix.
func Child(parent, name string) string {
	if parent == Root || parent == "" {
		return name
	}
	return parent + "/" + name
}

// DirName converts a pathname to the form archives use for directories.
func DirName(name string) string {
	if strings.HasSuffix(name, "/") {
		return name
	}
	return name + "/"
}
