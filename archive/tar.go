package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/dirpack/internal/pathutil"
)

// tarWriter writes a tar stream, optionally through a compression codec.
type tarWriter struct {
	tw    *tar.Writer
	codec io.WriteCloser
}

func newTarWriter(w io.Writer, f Format, cfg *config) (*tarWriter, error) {
	codec, err := newCodec(w, f, cfg.level)
	if err != nil {
		return nil, err
	}
	out := w
	if codec != nil {
		out = codec
	}
	return &tarWriter{tw: tar.NewWriter(out), codec: codec}, nil
}

// newCodec returns the compression layer for f, or nil for plain tar.
func newCodec(w io.Writer, f Format, level Level) (io.WriteCloser, error) {
	switch f {
	case FormatTarGzip:
		gw, err := gzip.NewWriterLevel(w, level.gzip())
		if err != nil {
			return nil, fmt.Errorf("create gzip writer: %w", err)
		}
		return gw, nil
	case FormatTarZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(level.zstd()))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return enc, nil
	case FormatTarLZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(level.lz4())); err != nil {
			return nil, fmt.Errorf("configure lz4 writer: %w", err)
		}
		return zw, nil
	default:
		return nil, nil
	}
}

func (t *tarWriter) WriteHeader(hdr *Header) error {
	th := &tar.Header{
		Name:    hdr.Name,
		Size:    hdr.Size,
		Mode:    int64(hdr.Mode.Perm()),
		ModTime: hdr.ModTime,
		Uid:     hdr.UID,
		Gid:     hdr.GID,
	}
	switch hdr.Type {
	case TypeDir:
		th.Typeflag = tar.TypeDir
		th.Name = pathutil.DirName(hdr.Name)
		th.Size = 0
	case TypeReg:
		th.Typeflag = tar.TypeReg
	default:
		return fmt.Errorf("unsupported entry type %s", hdr.Type)
	}
	return t.tw.WriteHeader(th)
}

func (t *tarWriter) Write(p []byte) (int, error) {
	return t.tw.Write(p)
}

// Close writes the tar trailer and then flushes the codec. The codec is
// closed even when the trailer fails so encoder resources are released.
func (t *tarWriter) Close() error {
	err := t.tw.Close()
	if t.codec != nil {
		err = errors.Join(err, t.codec.Close())
	}
	return err
}
