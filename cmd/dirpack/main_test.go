package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dirpack"
	"github.com/meigma/dirpack/archive"
	"github.com/meigma/dirpack/internal/testutil"
)

// runCLI executes the root command. Tests using it must not run in
// parallel: logging goes through the default slog logger.
func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out bytes.Buffer
	cmd := newRootCmd(context.Background())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	code := execute(cmd, args)
	return code, out.String()
}

func sourceTree(t *testing.T) string {
	t.Helper()

	src := filepath.Join(t.TempDir(), "src")
	testutil.WriteTree(t, src, map[string]string{"a.txt": "hi", "sub/": ""})
	return src
}

func TestCLI_NoArguments(t *testing.T) {
	code, out := runCLI(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Usage:")
}

func TestCLI_TooManyArguments(t *testing.T) {
	code, out := runCLI(t, "a", "b", "c")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Usage:")
}

func TestCLI_PacksWithDirectoryPrefix(t *testing.T) {
	src := sourceTree(t)
	dest := filepath.Join(t.TempDir(), "out.tar.zst")

	code, out := runCLI(t, src, dest)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Packing has been completed")

	members := testutil.ReadArchive(t, dest, archive.FormatTarZstd)
	assert.ElementsMatch(t, []string{"src", "src/a.txt", "src/sub"}, testutil.Names(members))
	assert.Equal(t, "src", members[0].Name)
}

func TestCLI_DefaultOutputName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "My Dir")
	testutil.WriteTree(t, dir, map[string]string{"f.txt": "f"})
	work := t.TempDir()
	t.Chdir(work)

	code, out := runCLI(t, dir, "--format", "zip")
	require.Equal(t, 0, code, out)

	members := testutil.ReadArchive(t, filepath.Join(work, "my_dir.zip"), archive.FormatZip)
	assert.ElementsMatch(t, []string{"My Dir", "My Dir/f.txt"}, testutil.Names(members))
}

func TestCLI_MissingDirectory(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.tar")

	code, out := runCLI(t, filepath.Join(dir, "nope"), dest)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Command failed")
	assert.NoFileExists(t, dest)
}

func TestCLI_UnknownFormat(t *testing.T) {
	code, out := runCLI(t, sourceTree(t), "--format", "7z")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "unknown archive format")
}

func TestCLI_SkippedEntriesStillSucceed(t *testing.T) {
	src := sourceTree(t)
	require.NoError(t, os.Symlink("a.txt", filepath.Join(src, "link")))
	dest := filepath.Join(t.TempDir(), "out.tar")

	code, out := runCLI(t, src, dest, "-f", "tar", "--prefix", "")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Some entries were skipped")

	members := testutil.ReadArchive(t, dest, archive.FormatTar)
	assert.ElementsMatch(t, []string{".", "a.txt", "sub"}, testutil.Names(members))
}

func TestCLI_AbortPolicyFails(t *testing.T) {
	src := sourceTree(t)
	require.NoError(t, os.Symlink("a.txt", filepath.Join(src, "link")))
	dest := filepath.Join(t.TempDir(), "out.tar")

	code, out := runCLI(t, src, dest, "--on-error", "abort")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Command failed")
	assert.NoFileExists(t, dest)

	code, _ = runCLI(t, src, dest, "--on-error", "abort", "--keep-partial")
	assert.Equal(t, 1, code)
	assert.FileExists(t, dest)
}

func TestCLI_ConfigFileAndFlagPrecedence(t *testing.T) {
	src := sourceTree(t)
	testutil.WriteTree(t, src, map[string]string{"skip.tmp": "x"})

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format: tar.gz\nlevel: best\nexclude: ['*.tmp']\n"), 0o600))

	work := t.TempDir()
	t.Chdir(work)

	code, out := runCLI(t, src, "--config", cfgPath)
	require.Equal(t, 0, code, out)
	members := testutil.ReadArchive(t, filepath.Join(work, "src.tar.gz"), archive.FormatTarGzip)
	assert.ElementsMatch(t, []string{"src", "src/a.txt", "src/sub"}, testutil.Names(members))

	code, out = runCLI(t, src, "--config", cfgPath, "-f", "tar.lz4")
	require.Equal(t, 0, code, out)
	assert.FileExists(t, filepath.Join(work, "src.tar.lz4"))
}

func TestCLI_MissingExplicitConfig(t *testing.T) {
	code, _ := runCLI(t, sourceTree(t), "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, 1, code)
}

func TestCLI_Manifest(t *testing.T) {
	src := sourceTree(t)
	out := t.TempDir()
	dest := filepath.Join(out, "out.tar")
	manifestPath := filepath.Join(out, "manifest.json")

	code, log := runCLI(t, src, dest, "--manifest", manifestPath, "-v")
	require.Equal(t, 0, code, log)

	m, err := dirpack.ReadManifest(manifestPath)
	require.NoError(t, err)
	assert.Len(t, m.Entries, 3)
	require.NotNil(t, m.Archive)
	assert.Equal(t, archive.FormatTar.MediaType(), m.Archive.MediaType)
}

func TestDefaultPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "src", defaultPrefix("/tmp/x/src"))
	assert.Equal(t, "src", defaultPrefix("/tmp/x/src/"))
	assert.Empty(t, defaultPrefix("/"))
}
