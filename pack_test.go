package dirpack

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dirpack/archive"
	"github.com/meigma/dirpack/internal/testutil"
)

var sampleTree = map[string]string{
	"a.txt":            "hi",
	"sub/":             "",
	"sub/deep/big.bin": strings.Repeat("0123456789", 2000),
	"sub/photo.jpg":    "not really a jpeg",
	"empty.txt":        "",
	"empty-dir/":       "",
}

func TestPack_RoundTrip(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "src")
	testutil.WriteTree(t, src, sampleTree)

	for _, f := range archive.Formats {
		t.Run(string(f), func(t *testing.T) {
			t.Parallel()

			dest := filepath.Join(t.TempDir(), "out"+f.Extension())
			res, err := Pack(context.Background(), src, dest, f,
				WithPrefix("src"),
				WithArchiveOptions(archive.WithTempDir(t.TempDir())),
			)
			require.NoError(t, err)
			assert.Equal(t, dest, res.Destination)
			assert.Equal(t, f, res.Format)
			assert.Equal(t, 8, res.Entries)
			assert.Empty(t, res.Skipped)

			members := testutil.ReadArchive(t, dest, f)
			assert.ElementsMatch(t, []string{
				"src", "src/a.txt", "src/empty.txt", "src/empty-dir",
				"src/sub", "src/sub/deep", "src/sub/deep/big.bin", "src/sub/photo.jpg",
			}, testutil.Names(members))
			assertPreOrder(t, testutil.Names(members))

			for name, content := range sampleTree {
				if strings.HasSuffix(name, "/") {
					m, ok := testutil.Find(members, "src/"+strings.TrimSuffix(name, "/"))
					require.True(t, ok, name)
					assert.Equal(t, archive.TypeDir, m.Type, name)
					continue
				}
				m, ok := testutil.Find(members, "src/"+name)
				require.True(t, ok, name)
				assert.Equal(t, archive.TypeReg, m.Type, name)
				assert.Equal(t, content, string(m.Data), name)
			}
		})
	}
}

func TestPack_ConcreteScenario(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "src")
	testutil.WriteTree(t, src, map[string]string{"a.txt": "hi", "sub/": ""})

	dest := filepath.Join(t.TempDir(), "src.tar")
	res, err := Pack(context.Background(), src, dest, archive.FormatTar)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Entries)
	assert.Equal(t, uint64(2), res.Bytes)

	members := testutil.ReadArchive(t, dest, archive.FormatTar)
	require.Len(t, members, 3)
	assert.Equal(t, ".", members[0].Name)
	assert.Equal(t, archive.TypeDir, members[0].Type)

	a, ok := testutil.Find(members, "a.txt")
	require.True(t, ok)
	assert.Equal(t, int64(2), a.Size)
	assert.Equal(t, "hi", string(a.Data))

	sub, ok := testutil.Find(members, "sub")
	require.True(t, ok)
	assert.Equal(t, archive.TypeDir, sub.Type)
}

func TestPack_MissingRootCreatesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.tar")

	res, err := Pack(context.Background(), filepath.Join(dir, "nope"), dest, archive.FormatTar)
	require.ErrorIs(t, err, ErrPathNotFound)
	assert.Nil(t, res)
	assert.NoFileExists(t, dest)
}

func TestPack_InvalidDestination(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	_, err := Pack(context.Background(), src, filepath.Join(t.TempDir(), "missing", "out.tar"), archive.FormatTar)
	require.ErrorIs(t, err, ErrOpen)
}

func TestPack_DestinationInsideRootIsExcluded(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"a.txt": "a"})
	dest := filepath.Join(src, "self.tar.gz")

	_, err := Pack(context.Background(), src, dest, archive.FormatTarGzip)
	require.NoError(t, err)

	members := testutil.ReadArchive(t, dest, archive.FormatTarGzip)
	assert.ElementsMatch(t, []string{".", "a.txt"}, testutil.Names(members))
}

func TestPack_PartialResult(t *testing.T) {
	t.Parallel()

	src := symlinkTree(t)
	dest := filepath.Join(t.TempDir(), "out.zip")

	res, err := Pack(context.Background(), src, dest, archive.FormatZip)
	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	require.NotNil(t, res)
	assert.Len(t, res.Skipped, 1)
	assert.Equal(t, 4, res.Entries)
	assert.FileExists(t, dest)

	members := testutil.ReadArchive(t, dest, archive.FormatZip)
	assert.ElementsMatch(t, []string{".", "a.txt", "sub", "sub/b.txt"}, testutil.Names(members))
}

func TestPack_FailureRemovesOutput(t *testing.T) {
	t.Parallel()

	src := symlinkTree(t)
	dest := filepath.Join(t.TempDir(), "out.tar")

	res, err := Pack(context.Background(), src, dest, archive.FormatTar, WithErrorPolicy(PolicyAbort))
	require.ErrorIs(t, err, ErrRecursive)
	assert.Nil(t, res)
	assert.NoFileExists(t, dest)
}

func TestPack_KeepPartial(t *testing.T) {
	t.Parallel()

	src := symlinkTree(t)
	dest := filepath.Join(t.TempDir(), "out.tar")

	_, err := Pack(context.Background(), src, dest, archive.FormatTar,
		WithErrorPolicy(PolicyAbort), WithKeepPartial(true))
	require.ErrorIs(t, err, ErrRecursive)
	assert.FileExists(t, dest)
}

func TestPack_Manifest(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.WriteTree(t, src, sampleTree)
	out := t.TempDir()
	dest := filepath.Join(out, "out.tar.zst")
	manifestPath := filepath.Join(out, "manifest.json")

	res, err := Pack(context.Background(), src, dest, archive.FormatTarZstd, WithManifestPath(manifestPath))
	require.NoError(t, err)

	m, err := ReadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.Entries, m.Entries)
	assert.Equal(t, archive.FormatTarZstd, m.Format)
	require.Len(t, m.Entries, res.Entries)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NotNil(t, m.Archive)
	assert.Equal(t, digest.FromBytes(data), m.Archive.Digest)
	assert.Equal(t, int64(len(data)), m.Archive.Size)
	assert.Equal(t, archive.FormatTarZstd.MediaType(), m.Archive.MediaType)

	for _, e := range m.Entries {
		if e.Type == "file" {
			assert.Len(t, e.XXH3, 16, e.Path)
		} else {
			assert.Empty(t, e.XXH3, e.Path)
		}
	}
}

func TestPack_StructurallyIdempotent(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	first := filepath.Join(base, "first")
	second := filepath.Join(base, "second")
	testutil.WriteTree(t, first, sampleTree)
	testutil.CopyTree(t, first, second)

	pack := func(root string) []ManifestEntry {
		res, err := Pack(context.Background(), root, filepath.Join(t.TempDir(), "out.tar"), archive.FormatTar,
			WithPrefix("tree"))
		require.NoError(t, err)
		entries := res.Manifest.Entries
		sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
		return entries
	}

	assert.Equal(t, pack(first), pack(second))
	assert.Equal(t, pack(first), pack(first))
}

func TestOutputName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir    string
		format archive.Format
		want   string
	}{
		{"My Photos", archive.FormatTarZstd, "my_photos.tar.zst"},
		{"/data/Project X/", archive.FormatZip, "project_x.zip"},
		{"src", archive.FormatEStargz, "src.stargz"},
		{"a/b/Two  Spaces", archive.FormatTar, "two__spaces.tar"},
	}
	for _, tt := range tests {
		got, err := OutputName(tt.dir, tt.format)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.dir)
	}
}

func TestOutputName_CurrentDirectory(t *testing.T) {
	t.Parallel()

	wd, err := os.Getwd()
	require.NoError(t, err)

	got, err := OutputName(".", archive.FormatTarGzip)
	require.NoError(t, err)
	assert.Equal(t, strings.ReplaceAll(strings.ToLower(filepath.Base(wd)), " ", "_")+".tar.gz", got)
}
