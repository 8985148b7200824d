package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otiai10/copy"
	"github.com/stretchr/testify/require"
)

// WriteTree creates the given tree under root. Keys are slash-separated
// paths; keys ending in "/" create directories, all others create regular
// files with the value as content. Parents are created as needed.
func WriteTree(tb testing.TB, root string, tree map[string]string) {
	tb.Helper()

	for name, content := range tree {
		p := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(name, "/")))
		if strings.HasSuffix(name, "/") {
			require.NoError(tb, os.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(tb, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(tb, os.WriteFile(p, []byte(content), 0o644))
	}
}

// CopyTree copies src to dst, preserving the directory layout.
func CopyTree(tb testing.TB, src, dst string) {
	tb.Helper()
	require.NoError(tb, copy.Copy(src, dst))
}
