package dirpack

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/meigma/dirpack/internal/platform"
)

// Kind classifies an archiving failure.
type Kind uint8

const (
	KindPathNotFound Kind = iota + 1
	KindStat
	KindUnsupportedKind
	KindPermissionDenied
	KindRead
	KindOpen
	KindWrite
	KindClose
	KindRecursive
	KindTooDeep
	KindTooManyEntries
)

// Sentinel errors, one per Kind. An *Error matches the sentinel of its Kind
// with errors.Is.
var (
	// ErrPathNotFound is returned when the archive root does not exist.
	ErrPathNotFound = errors.New("path not found")

	// ErrStat is returned when entry metadata cannot be read.
	ErrStat = errors.New("stat failed")

	// ErrUnsupportedKind is returned for symlinks, devices, sockets and FIFOs.
	ErrUnsupportedKind = errors.New("unsupported file type")

	// ErrPermissionDenied is returned when an entry cannot be accessed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRead is returned when a directory listing or file body cannot be read.
	ErrRead = errors.New("read failed")

	// ErrOpen is returned when the destination archive cannot be created.
	ErrOpen = errors.New("open archive failed")

	// ErrWrite is returned when the archive rejects a header or body write.
	ErrWrite = errors.New("write failed")

	// ErrClose is returned when the archive cannot be finalized.
	ErrClose = errors.New("close archive failed")

	// ErrRecursive is returned when traversal below a directory failed.
	ErrRecursive = errors.New("traversal failed")

	// ErrTooDeep is returned when the tree is deeper than the configured limit.
	ErrTooDeep = errors.New("directory tree too deep")

	// ErrTooManyEntries is returned when the tree holds more entries than allowed.
	ErrTooManyEntries = errors.New("too many entries")
)

// Causes reported inside an *Error.
var (
	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionFailed is returned when a session is used after a failed write.
	ErrSessionFailed = errors.New("session failed")

	// ErrInvalidPathname is returned for empty or NUL-containing entry names.
	ErrInvalidPathname = errors.New("invalid entry pathname")

	// ErrIncompleteBody is returned when a header is written before the
	// previous entry received all of its declared bytes.
	ErrIncompleteBody = errors.New("previous entry body incomplete")

	// ErrBodyOverflow is returned when more body bytes are written than the
	// entry header declared.
	ErrBodyOverflow = errors.New("body exceeds declared size")

	// ErrNoEntry is returned when body bytes are written without a pending
	// regular-file entry.
	ErrNoEntry = errors.New("no entry awaiting body")

	// ErrFileChanged is returned when a file changed while it was archived.
	ErrFileChanged = errors.New("file changed during archive creation")
)

var kindSentinels = map[Kind]error{
	KindPathNotFound:     ErrPathNotFound,
	KindStat:             ErrStat,
	KindUnsupportedKind:  ErrUnsupportedKind,
	KindPermissionDenied: ErrPermissionDenied,
	KindRead:             ErrRead,
	KindOpen:             ErrOpen,
	KindWrite:            ErrWrite,
	KindClose:            ErrClose,
	KindRecursive:        ErrRecursive,
	KindTooDeep:          ErrTooDeep,
	KindTooManyEntries:   ErrTooManyEntries,
}

// String returns the message of the Kind's sentinel error.
func (k Kind) String() string {
	if err, ok := kindSentinels[k]; ok {
		return err.Error()
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Error describes a failure on one path.
type Error struct {
	Kind Kind

	// Op is the operation that failed, e.g. "stat" or "write header".
	Op string

	// Path is the filesystem path or archive pathname involved.
	Path string

	// Err is the underlying cause, often the archive library's error.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteByte(' ')
	}
	if e.Path != "" {
		b.WriteString(strconv.Quote(e.Path))
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's Kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// PartialError reports entries that were skipped under a lenient
// ErrorPolicy. Everything else was archived.
type PartialError struct {
	Failures []error
}

func (e *PartialError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("1 entry skipped: %v", e.Failures[0])
	}
	return fmt.Sprintf("%d entries skipped; first: %v", len(e.Failures), e.Failures[0])
}

func (e *PartialError) Unwrap() []error {
	return e.Failures
}

// fsError classifies a filesystem error on path. Missing paths get the
// notFound kind so callers can distinguish a missing root from a vanished
// child; causes without a more specific kind get fallback.
func fsError(op, path string, err error, notFound, fallback Kind) *Error {
	kind := fallback
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = notFound
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermissionDenied
	case errors.Is(err, platform.ErrSymlink):
		kind = KindUnsupportedKind
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
