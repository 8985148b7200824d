package dirpack

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/zeebo/xxh3"

	"github.com/meigma/dirpack/archive"
)

type sessionState uint8

const (
	// stateReady accepts a header.
	stateReady sessionState = iota
	// stateBody is waiting for the rest of a regular file's body.
	stateBody
	stateFailed
	stateClosed
)

// Session owns one open archive writer for the duration of a run.
//
// Entries are committed strictly in call order: WriteHeader starts an entry,
// WriteBody appends to it until the declared size is reached. Once any write
// fails the session is failed and only Close is accepted. Close must be
// called exactly once, also after failures, and always releases the writer.
//
// A Session is not safe for concurrent use.
type Session struct {
	w      archive.Writer
	name   string
	logger *slog.Logger

	state     sessionState
	cur       Record
	remaining int64
	hasher    *xxh3.Hasher

	manifest Manifest
	bytes    uint64
}

// Open creates dest and starts a session writing format into it.
// It fails with ErrOpen when the destination cannot be created.
func Open(dest string, format archive.Format, opts ...Option) (*Session, error) {
	cfg := newConfig(opts)
	f, err := archive.Create(dest, format, cfg.archiveOpts...)
	if err != nil {
		return nil, &Error{Kind: KindOpen, Op: "open", Path: dest, Err: err}
	}

	s := newSession(f, dest, cfg)
	s.manifest.Format = format
	s.logger.Debug("archive opened", slog.String("path", dest), slog.String("format", format.String()))
	return s, nil
}

// NewSession starts a session over an already open writer.
func NewSession(w archive.Writer, opts ...Option) *Session {
	return newSession(w, "", newConfig(opts))
}

func newSession(w archive.Writer, name string, cfg *config) *Session {
	return &Session{
		w:      w,
		name:   name,
		logger: cfg.logger,
		hasher: xxh3.New(),
	}
}

// Destination returns the destination path, or "" for sessions created with
// NewSession.
func (s *Session) Destination() string {
	return s.name
}

// Failed reports whether a write failed.
func (s *Session) Failed() bool {
	return s.state == stateFailed
}

// Entries returns the number of fully written entries.
func (s *Session) Entries() int {
	return len(s.manifest.Entries)
}

// BytesWritten returns the number of body bytes accepted so far.
func (s *Session) BytesWritten() uint64 {
	return s.bytes
}

// Manifest returns the entries committed so far. After a successful Close
// of a session created with Open it also describes the archive file.
func (s *Session) Manifest() *Manifest {
	m := s.manifest
	m.Entries = append([]ManifestEntry(nil), s.manifest.Entries...)
	return &m
}

// WriteHeader commits the metadata of a new entry. The previous entry must
// have received all of its body bytes.
func (s *Session) WriteHeader(rec Record) error {
	const op = "write header"
	if err := s.usable(op, rec.Pathname); err != nil {
		return err
	}
	if s.state == stateBody {
		s.state = stateFailed
		return &Error{Kind: KindWrite, Op: op, Path: rec.Pathname,
			Err: fmt.Errorf("%w: %q is missing %d bytes", ErrIncompleteBody, s.cur.Pathname, s.remaining)}
	}
	if err := validatePathname(rec.Pathname); err != nil {
		return &Error{Kind: KindWrite, Op: op, Path: rec.Pathname, Err: err}
	}
	if rec.Type == TypeDir {
		rec.Size = 0
	}
	if rec.Size < 0 {
		return &Error{Kind: KindWrite, Op: op, Path: rec.Pathname, Err: fmt.Errorf("negative size %d", rec.Size)}
	}

	if err := s.w.WriteHeader(rec.header()); err != nil {
		s.state = stateFailed
		return &Error{Kind: KindWrite, Op: op, Path: rec.Pathname, Err: err}
	}
	s.logger.Debug("entry header written",
		slog.String("path", rec.Pathname),
		slog.String("type", rec.Type.String()),
		slog.Int64("size", rec.Size),
	)

	s.cur = rec
	s.remaining = rec.Size
	s.hasher.Reset()
	if s.remaining == 0 {
		s.commit()
		return nil
	}
	s.state = stateBody
	return nil
}

// WriteBody appends p to the entry most recently started by WriteHeader.
// Writing more bytes than the header declared is rejected without touching
// the archive.
func (s *Session) WriteBody(p []byte) error {
	const op = "write body"
	if err := s.usable(op, s.cur.Pathname); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	if s.state != stateBody {
		return &Error{Kind: KindWrite, Op: op, Err: ErrNoEntry}
	}
	if int64(len(p)) > s.remaining {
		return &Error{Kind: KindWrite, Op: op, Path: s.cur.Pathname,
			Err: fmt.Errorf("%w: %d bytes left, got %d", ErrBodyOverflow, s.remaining, len(p))}
	}

	n, err := s.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		s.state = stateFailed
		return &Error{Kind: KindWrite, Op: op, Path: s.cur.Pathname, Err: err}
	}

	_, _ = s.hasher.Write(p)
	s.remaining -= int64(n)
	s.bytes += uint64(n) //nolint:gosec // n is non-negative
	if s.remaining == 0 {
		s.commit()
	}
	return nil
}

// Close finalizes the archive and releases the writer. It is attempted even
// after a failed write so partial output is never left open. A second call
// fails with ErrSessionClosed.
func (s *Session) Close() error {
	if s.state == stateClosed {
		return &Error{Kind: KindClose, Op: "close", Path: s.name, Err: ErrSessionClosed}
	}
	s.state = stateClosed

	if err := s.w.Close(); err != nil {
		return &Error{Kind: KindClose, Op: "close", Path: s.name, Err: err}
	}
	if f, ok := s.w.(*archive.File); ok {
		if desc, ok := f.Descriptor(); ok {
			s.manifest.Archive = &desc
		}
	}
	s.logger.Debug("archive closed",
		slog.String("path", s.name),
		slog.Int("entries", len(s.manifest.Entries)),
		slog.Uint64("bytes", s.bytes),
	)
	return nil
}

func (s *Session) usable(op, path string) error {
	switch s.state {
	case stateClosed:
		return &Error{Kind: KindWrite, Op: op, Path: path, Err: ErrSessionClosed}
	case stateFailed:
		return &Error{Kind: KindWrite, Op: op, Path: path, Err: ErrSessionFailed}
	default:
		return nil
	}
}

// commit records the current entry once all of its bytes are written.
func (s *Session) commit() {
	e := ManifestEntry{
		Path: s.cur.Pathname,
		Type: s.cur.Type.String(),
		Size: s.cur.Size,
		Mode: fmt.Sprintf("%#o", uint32(s.cur.Perm.Perm())),
	}
	if s.cur.Type == TypeReg {
		e.XXH3 = fmt.Sprintf("%016x", s.hasher.Sum64())
	}
	s.manifest.Entries = append(s.manifest.Entries, e)
	s.state = stateReady
}
