package archive

import (
	"io"
	"io/fs"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/meigma/dirpack/internal/pathutil"
)

// zipWriter writes a zip archive. Each file is deflated unless a skip
// predicate stores it as-is.
type zipWriter struct {
	zw   *zip.Writer
	cur  io.Writer
	skip []SkipCompressionFunc
}

func newZipWriter(w io.Writer, cfg *config) *zipWriter {
	zw := zip.NewWriter(w)
	level := cfg.level.flate()
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &zipWriter{zw: zw, skip: cfg.skipCompression}
}

func (z *zipWriter) WriteHeader(hdr *Header) error {
	fh := &zip.FileHeader{
		Name:     hdr.Name,
		Modified: hdr.ModTime,
		Method:   zip.Deflate,
	}
	if hdr.Type == TypeDir {
		fh.Name = pathutil.DirName(hdr.Name)
		fh.Method = zip.Store
		fh.SetMode(fs.ModeDir | hdr.Mode.Perm())
	} else {
		fh.SetMode(hdr.Mode.Perm())
		if shouldSkip(hdr.Name, hdr.Size, z.skip) {
			fh.Method = zip.Store
		}
	}
	w, err := z.zw.CreateHeader(fh)
	if err != nil {
		z.cur = nil
		return err
	}
	z.cur = w
	return nil
}

func (z *zipWriter) Write(p []byte) (int, error) {
	if z.cur == nil {
		return 0, ErrNoEntry
	}
	return z.cur.Write(p)
}

func (z *zipWriter) Close() error {
	z.cur = nil
	return z.zw.Close()
}
