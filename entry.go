package dirpack

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/meigma/dirpack/archive"
	"github.com/meigma/dirpack/internal/platform"
)

// EntryType identifies the kind of an archive entry.
type EntryType = archive.EntryType

// Entry types.
const (
	TypeReg = archive.TypeReg
	TypeDir = archive.TypeDir
)

// Record is the archive-facing metadata of one entry. It lives for a single
// traversal step: built right before its header is written and dropped once
// the entry's body has been streamed.
type Record struct {
	// Pathname is the slash-separated name inside the archive, relative to
	// the archive root.
	Pathname string

	Type EntryType

	// Size is the body length in bytes. Zero for directories.
	Size int64

	// Perm holds the permission bits.
	Perm fs.FileMode

	ModTime time.Time
	UID     int
	GID     int
}

func (r *Record) header() *archive.Header {
	return &archive.Header{
		Name:    r.Pathname,
		Type:    r.Type,
		Size:    r.Size,
		Mode:    r.Perm,
		ModTime: r.ModTime,
		UID:     r.UID,
		GID:     r.GID,
	}
}

func validatePathname(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPathname)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: contains NUL byte", ErrInvalidPathname)
	}
	return nil
}

// Entry is one filesystem object ready to be written: its record and, for
// regular files, the open body. Close must be called once the entry has been
// written or abandoned.
type Entry struct {
	Record

	// Path is the filesystem path the entry was built from.
	Path string

	body *Body
}

// Body returns the file content stream, or nil for directories.
func (e *Entry) Body() *Body {
	return e.body
}

// Close releases the file handle held by the entry, if any.
func (e *Entry) Close() error {
	if e.body == nil {
		return nil
	}
	return e.body.Close()
}

// Build stats path and returns the entry to be written under name.
//
// Directories and regular files are supported; anything else fails with
// ErrUnsupportedKind. Regular files are opened before Build returns, so a
// file that cannot be read is reported before any archive header exists for
// it.
func Build(path, name string, opts ...Option) (*Entry, error) {
	return newBuilder(newConfig(opts)).build(path, name)
}

// builder builds entries for one walk. The chunk buffer is shared between
// bodies, so only one body may be read at a time.
type builder struct {
	buf    []byte
	strict bool
}

func newBuilder(cfg *config) *builder {
	return &builder{
		buf:    make([]byte, cfg.chunkSize),
		strict: cfg.changeDetection == ChangeDetectionStrict,
	}
}

func (b *builder) build(path, name string) (*Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, fsError("stat", path, err, KindStat, KindStat)
	}

	rec := Record{
		Pathname: name,
		Perm:     info.Mode().Perm(),
		ModTime:  info.ModTime(),
	}
	rec.UID, rec.GID = platform.FileOwner(info)

	mode := info.Mode()
	switch {
	case mode.IsDir():
		rec.Type = TypeDir
		return &Entry{Record: rec, Path: path}, nil
	case mode.IsRegular():
		rec.Type = TypeReg
		rec.Size = info.Size()
	default:
		return nil, unsupported("build", path, mode)
	}

	body, err := b.open(path, info)
	if err != nil {
		return nil, err
	}
	return &Entry{Record: rec, Path: path, body: body}, nil
}

func (b *builder) open(path string, info fs.FileInfo) (*Body, error) {
	f, err := platform.OpenNoFollow(path)
	if err != nil {
		return nil, fsError("open", path, err, KindRead, KindRead)
	}

	finfo, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fsError("stat", path, err, KindStat, KindStat)
	}
	if !finfo.Mode().IsRegular() {
		_ = f.Close()
		return nil, unsupported("open", path, finfo.Mode())
	}
	if b.strict && !os.SameFile(info, finfo) {
		_ = f.Close()
		return nil, &Error{Kind: KindRead, Op: "open", Path: path, Err: ErrFileChanged}
	}

	return &Body{
		f:      f,
		path:   path,
		size:   info.Size(),
		before: finfo,
		buf:    b.buf,
		strict: b.strict,
	}, nil
}

func unsupported(op, path string, mode fs.FileMode) *Error {
	return &Error{Kind: KindUnsupportedKind, Op: op, Path: path, Err: fmt.Errorf("file mode %s", mode.Type())}
}

// Body streams a regular file in fixed-size chunks. It is forward-only and
// yields exactly the number of bytes the file had when its entry was built.
type Body struct {
	f      *os.File
	path   string
	size   int64
	read   int64
	before fs.FileInfo
	buf    []byte
	strict bool
	done   bool
}

// Size returns the number of bytes the body yields.
func (b *Body) Size() int64 {
	return b.size
}

// Next returns the next chunk, or io.EOF once Size bytes were returned.
// The chunk is only valid until the following call. A file that ends early
// fails with ErrFileChanged.
func (b *Body) Next() ([]byte, error) {
	if b.f == nil {
		return nil, &Error{Kind: KindRead, Op: "read", Path: b.path, Err: fs.ErrClosed}
	}
	if b.read >= b.size {
		if !b.done {
			b.done = true
			if err := b.checkUnchanged(); err != nil {
				return nil, err
			}
		}
		return nil, io.EOF
	}

	want := min(int64(len(b.buf)), b.size-b.read)
	n, err := io.ReadFull(b.f, b.buf[:want])
	b.read += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: expected %d bytes, got %d", ErrFileChanged, b.size, b.read)
		}
		return nil, &Error{Kind: KindRead, Op: "read", Path: b.path, Err: err}
	}
	return b.buf[:n], nil
}

// checkUnchanged compares size, mtime and permissions before and after the
// read in strict mode.
func (b *Body) checkUnchanged() error {
	if !b.strict {
		return nil
	}
	after, err := b.f.Stat()
	if err != nil {
		return fsError("stat", b.path, err, KindStat, KindStat)
	}
	if after.Size() != b.before.Size() || !after.ModTime().Equal(b.before.ModTime()) || after.Mode().Perm() != b.before.Mode().Perm() {
		return &Error{Kind: KindRead, Op: "read", Path: b.path, Err: ErrFileChanged}
	}
	return nil
}

// Close releases the file handle. It is safe to call more than once.
func (b *Body) Close() error {
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}
