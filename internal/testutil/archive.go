package testutil

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/containerd/stargz-snapshotter/estargz"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"

	"github.com/meigma/dirpack/archive"
)

// Member is one entry read back from an archive.
type Member struct {
	Name string
	Type archive.EntryType
	Size int64
	Mode fs.FileMode
	Data []byte
}

// ReadArchive reads every entry of the archive at path. Names are returned
// without the trailing slash directories carry on disk.
func ReadArchive(tb testing.TB, path string, f archive.Format) []Member {
	tb.Helper()

	data, err := os.ReadFile(path)
	require.NoError(tb, err)
	return ReadArchiveBytes(tb, data, f)
}

// ReadArchiveBytes is ReadArchive over an in-memory archive.
func ReadArchiveBytes(tb testing.TB, data []byte, f archive.Format) []Member {
	tb.Helper()

	if f == archive.FormatZip {
		return readZip(tb, data)
	}

	var r io.Reader = bytes.NewReader(data)
	switch f {
	case archive.FormatTarGzip, archive.FormatEStargz:
		gr, err := gzip.NewReader(r)
		require.NoError(tb, err)
		defer gr.Close()
		r = gr
	case archive.FormatTarZstd:
		dec, err := zstd.NewReader(r)
		require.NoError(tb, err)
		defer dec.Close()
		r = dec
	case archive.FormatTarLZ4:
		r = lz4.NewReader(r)
	}
	return readTar(tb, r, f == archive.FormatEStargz)
}

// Names returns the member names in archive order.
func Names(members []Member) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return names
}

// Find returns the member with the given name.
func Find(members []Member, name string) (Member, bool) {
	for _, m := range members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

func readTar(tb testing.TB, r io.Reader, stargz bool) []Member {
	tb.Helper()

	var members []Member
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(tb, err)

		if stargz && isStargzMetadata(h.Name) {
			continue
		}

		m := Member{
			Name: strings.TrimSuffix(h.Name, "/"),
			Size: h.Size,
			Mode: fs.FileMode(h.Mode).Perm(), //nolint:gosec // tar modes fit in 32 bits
		}
		switch h.Typeflag {
		case tar.TypeDir:
			m.Type = archive.TypeDir
		case tar.TypeReg:
			m.Type = archive.TypeReg
			m.Data, err = io.ReadAll(tr)
			require.NoError(tb, err)
		default:
			tb.Fatalf("unexpected tar entry type %q for %s", h.Typeflag, h.Name)
		}
		members = append(members, m)
	}
	return members
}

func isStargzMetadata(name string) bool {
	switch name {
	case estargz.TOCTarName, estargz.PrefetchLandmark, estargz.NoPrefetchLandmark:
		return true
	default:
		return false
	}
}

func readZip(tb testing.TB, data []byte) []Member {
	tb.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(tb, err)

	members := make([]Member, 0, len(zr.File))
	for _, f := range zr.File {
		m := Member{
			Name: strings.TrimSuffix(f.Name, "/"),
			Mode: f.Mode().Perm(),
		}
		if f.Mode().IsDir() {
			m.Type = archive.TypeDir
			members = append(members, m)
			continue
		}
		rc, err := f.Open()
		require.NoError(tb, err)
		m.Data, err = io.ReadAll(rc)
		rc.Close()
		require.NoError(tb, err)
		m.Type = archive.TypeReg
		m.Size = int64(len(m.Data))
		members = append(members, m)
	}
	return members
}
