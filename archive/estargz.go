package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/containerd/stargz-snapshotter/estargz"
	"github.com/opencontainers/go-digest"
)

// estargzWriter spools an uncompressed tar stream to a temporary file and
// converts it to eStargz on Close, since estargz.Build needs random access
// to the whole tarball.
type estargzWriter struct {
	dst   io.Writer
	spool *os.File
	tar   *tarWriter
	level Level

	tocDigest digest.Digest
	diffID    digest.Digest
}

func newEStargzWriter(dst io.Writer, cfg *config) (*estargzWriter, error) {
	spool, err := os.CreateTemp(cfg.tempDir, "dirpack-estargz-*.tar")
	if err != nil {
		return nil, fmt.Errorf("create estargz spool: %w", err)
	}
	return &estargzWriter{
		dst:   dst,
		spool: spool,
		tar:   &tarWriter{tw: tar.NewWriter(spool)},
		level: cfg.level,
	}, nil
}

func (e *estargzWriter) WriteHeader(hdr *Header) error {
	return e.tar.WriteHeader(hdr)
}

func (e *estargzWriter) Write(p []byte) (int, error) {
	return e.tar.Write(p)
}

// Close finishes the spooled tarball, converts it and copies the result to
// the destination. The spool file is removed in every case.
func (e *estargzWriter) Close() (err error) {
	defer func() {
		err = errors.Join(err, e.spool.Close(), os.Remove(e.spool.Name()))
	}()

	if err := e.tar.Close(); err != nil {
		return err
	}
	info, err := e.spool.Stat()
	if err != nil {
		return fmt.Errorf("stat estargz spool: %w", err)
	}

	sr := io.NewSectionReader(e.spool, 0, info.Size())
	blob, err := estargz.Build(sr, estargz.WithCompressionLevel(e.level.gzip()))
	if err != nil {
		return fmt.Errorf("build estargz: %w", err)
	}
	defer blob.Close()

	if _, err := io.Copy(e.dst, blob); err != nil {
		return fmt.Errorf("write estargz: %w", err)
	}
	e.tocDigest = blob.TOCDigest()
	e.diffID = blob.DiffID()
	return nil
}

// annotations describes the converted blob. Only valid after Close.
func (e *estargzWriter) annotations() map[string]string {
	if e.tocDigest == "" {
		return nil
	}
	return map[string]string{
		estargz.TOCJSONDigestAnnotation: e.tocDigest.String(),
		annotationDiffID:                e.diffID.String(),
	}
}
