// Package archive is the boundary between dirpack and the archive container
// libraries it writes through.
//
// A [Writer] is the capability set the traversal core consumes: commit an
// entry header, append body bytes to that entry, finalize. Backends exist for
// tar (plain, gzip, zstd, lz4), zip and eStargz; [Create] binds one of them
// to a destination file and records the digest of the bytes written.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// ErrNoEntry is returned when body bytes are written before any entry header.
var ErrNoEntry = errors.New("no entry header written")

// EntryType identifies the kind of an archive entry.
type EntryType uint8

const (
	// TypeReg is a regular file with a body.
	TypeReg EntryType = iota

	// TypeDir is a directory. Directories never carry body bytes.
	TypeDir
)

// String returns the string representation of the entry type.
func (t EntryType) String() string {
	switch t {
	case TypeReg:
		return "file"
	case TypeDir:
		return "dir"
	default:
		return "unknown"
	}
}

// Header is the format-neutral metadata written ahead of an entry body.
type Header struct {
	// Name is the slash-separated entry path relative to the archive root,
	// without a trailing slash. Backends add the slash directories need.
	Name string

	// Type is the entry kind.
	Type EntryType

	// Size is the number of body bytes that follow. Zero for directories.
	Size int64

	// Mode holds the permission bits.
	Mode fs.FileMode

	// ModTime is the modification time recorded when the format supports it.
	ModTime time.Time

	// UID and GID are recorded by tar-based formats.
	UID int
	GID int
}

// Writer is the write-oriented entry API of an archive backend.
//
// WriteHeader starts a new entry; Write appends body bytes to the entry most
// recently started; Close finalizes the container and flushes any codec
// layers. Writers are not safe for concurrent use.
type Writer interface {
	WriteHeader(hdr *Header) error
	Write(p []byte) (int, error)
	Close() error
}

// NewWriter returns a Writer producing format f onto w.
// Closing the returned Writer finalizes the archive but does not close w.
func NewWriter(w io.Writer, f Format, opts ...Option) (Writer, error) {
	cfg := newConfig(opts)
	switch f {
	case FormatTar, FormatTarGzip, FormatTarZstd, FormatTarLZ4:
		return newTarWriter(w, f, cfg)
	case FormatZip:
		return newZipWriter(w, cfg), nil
	case FormatEStargz:
		return newEStargzWriter(w, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}
