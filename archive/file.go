package archive

import (
	_ "crypto/sha256" // registers digest.Canonical
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/dirpack/internal/ioutil"
)

// ErrClosed is returned when a File is closed more than once.
var ErrClosed = errors.New("archive already closed")

// annotationDiffID records the digest of the uncompressed tarball.
const annotationDiffID = "io.meigma.dirpack.diffid"

// annotator is implemented by backends that describe their output.
type annotator interface {
	annotations() map[string]string
}

// File is a Writer bound to a destination file. It measures and digests
// every byte written so the finished archive can be described by an OCI
// descriptor.
type File struct {
	Writer

	name     string
	format   Format
	f        *os.File
	cw       *ioutil.CountingWriter
	digester digest.Digester
	closed   bool
	desc     *ocispec.Descriptor
}

// Create creates (or truncates) dest and returns a Writer producing format f
// into it.
func Create(dest string, f Format, opts ...Option) (*File, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	d := digest.Canonical.Digester()
	cw := &ioutil.CountingWriter{W: io.MultiWriter(out, d.Hash())}
	w, err := NewWriter(cw, f, opts...)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return nil, err
	}

	return &File{
		Writer:   w,
		name:     dest,
		format:   f,
		f:        out,
		cw:       cw,
		digester: d,
	}, nil
}

// Name returns the destination path.
func (a *File) Name() string {
	return a.name
}

// Format returns the archive format.
func (a *File) Format() Format {
	return a.format
}

// Close finalizes the archive, syncs it to disk and closes the file. The
// file is closed even when finalizing fails.
func (a *File) Close() error {
	if a.closed {
		return ErrClosed
	}
	a.closed = true

	werr := a.Writer.Close()
	var serr error
	if werr == nil {
		serr = a.f.Sync()
	}
	cerr := a.f.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		return err
	}

	desc := ocispec.Descriptor{
		MediaType: a.format.MediaType(),
		Digest:    a.digester.Digest(),
		Size:      int64(a.cw.N), //nolint:gosec // file sizes fit in int64
		Annotations: map[string]string{
			ocispec.AnnotationTitle: filepath.Base(a.name),
		},
	}
	if an, ok := a.Writer.(annotator); ok {
		for k, v := range an.annotations() {
			desc.Annotations[k] = v
		}
	}
	a.desc = &desc
	return nil
}

// Descriptor describes the finished archive. It returns false until Close
// has succeeded.
func (a *File) Descriptor() (ocispec.Descriptor, bool) {
	if a.desc == nil {
		return ocispec.Descriptor{}, false
	}
	return *a.desc, true
}
