package dirpack

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/dirpack/internal/pathutil"
)

// frame is one pending visit on the walk stack.
type frame struct {
	path   string // filesystem path
	name   string // archive pathname
	depth  int
	parent string // filesystem path of the parent directory
}

// Walk writes root and everything below it into s in pre-order: each
// directory's entry precedes all of its descendants. Children are visited in
// the order the filesystem lists them.
//
// Walk uses an explicit stack, so tree depth is bounded only by WithMaxDepth.
// Failures before an entry's header is written are handled according to the
// ErrorPolicy; failures after that always abort, since the archive cannot
// take an entry back. When failures were skipped Walk returns a
// *PartialError. Walk does not close s.
func Walk(ctx context.Context, root string, s *Session, opts ...Option) error {
	w := &walker{
		cfg:     newConfig(opts),
		session: s,
	}
	w.builder = newBuilder(w.cfg)
	return w.run(ctx, root)
}

type walker struct {
	cfg      *config
	session  *Session
	builder  *builder
	entries  int
	bytes    uint64
	failures []error
}

func (w *walker) run(ctx context.Context, root string) error {
	resolved, info, err := resolveRoot(root)
	if err != nil {
		return err
	}

	stack := []frame{{path: resolved, name: rootName(w.cfg.prefix, root, info)}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, fatal, err := w.visit(ctx, fr)
		if err != nil {
			if err := w.handle(fr, err, fatal); err != nil {
				return err
			}
			continue
		}
		// Push in reverse so children pop in listing order.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	w.emit(ProgressEvent{Stage: StageFinalizing})
	if len(w.failures) > 0 {
		return &PartialError{Failures: w.failures}
	}
	return nil
}

// resolveRoot stats the root, following a symlink at the root itself so
// that e.g. a symlinked home directory can be archived.
func resolveRoot(root string) (string, fs.FileInfo, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return "", nil, fsError("stat", root, err, KindPathNotFound, KindStat)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return root, info, nil
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", nil, fsError("resolve", root, err, KindPathNotFound, KindStat)
	}
	info, err = os.Lstat(resolved)
	if err != nil {
		return "", nil, fsError("stat", resolved, err, KindPathNotFound, KindStat)
	}
	return resolved, info, nil
}

// rootName picks the pathname of the root entry. root is the path as the
// caller gave it, so a symlinked file root keeps the link's name.
func rootName(prefix, root string, info fs.FileInfo) string {
	if prefix != "" {
		return pathutil.FromPrefix(prefix)
	}
	if info.IsDir() {
		return pathutil.Root
	}
	return filepath.Base(root)
}

// visit writes one entry and lists its children. fatal reports that the
// failure happened after the entry's header reached the archive, or that it
// is a limit that applies to the whole walk.
func (w *walker) visit(ctx context.Context, fr frame) (children []frame, fatal bool, err error) {
	if w.cfg.maxDepth > 0 && fr.depth > w.cfg.maxDepth {
		return nil, true, &Error{Kind: KindTooDeep, Op: "walk", Path: fr.path}
	}
	if w.cfg.maxEntries > 0 && w.entries >= w.cfg.maxEntries {
		return nil, true, &Error{Kind: KindTooManyEntries, Op: "walk", Path: fr.path}
	}

	entry, err := w.builder.build(fr.path, fr.name)
	if err != nil {
		return nil, false, err
	}
	defer entry.Close()

	if err := w.session.WriteHeader(entry.Record); err != nil {
		return nil, true, err
	}
	if body := entry.Body(); body != nil {
		if err := w.copyBody(ctx, body); err != nil {
			return nil, true, err
		}
	}
	w.entries++
	w.emit(ProgressEvent{Stage: StageEntry, Path: fr.name})

	if entry.Type != TypeDir {
		return nil, false, nil
	}
	children, err = w.list(fr)
	return children, false, err
}

func (w *walker) copyBody(ctx context.Context, body *Body) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := body.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.session.WriteBody(chunk); err != nil {
			return err
		}
		w.bytes += uint64(len(chunk))
	}
}

// list returns the children of a directory in listing order, without the
// self and parent pseudo-entries and without skipped entries.
func (w *walker) list(fr frame) ([]frame, error) {
	dir, err := os.Open(fr.path)
	if err != nil {
		return nil, fsError("open", fr.path, err, KindRead, KindRead)
	}
	defer dir.Close()

	des, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fsError("list", fr.path, err, KindRead, KindRead)
	}

	children := make([]frame, 0, len(des))
	for _, d := range des {
		name := d.Name()
		if name == "." || name == ".." {
			continue
		}
		p := filepath.Join(fr.path, name)
		if w.cfg.skipped(p, d) {
			w.cfg.logger.Debug("entry excluded", slog.String("path", p))
			continue
		}
		children = append(children, frame{
			path:   p,
			name:   pathutil.Child(fr.name, name),
			depth:  fr.depth + 1,
			parent: fr.path,
		})
	}
	return children, nil
}

// handle applies the error policy to a failed visit. It returns nil when the
// failure was skipped.
func (w *walker) handle(fr frame, err error, fatal bool) error {
	var ctxErr bool
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		ctxErr = true
	}
	if !fatal && !ctxErr && fr.depth > 0 && w.skips(err) {
		w.failures = append(w.failures, err)
		w.cfg.logger.Warn("entry skipped", slog.String("path", fr.path), slog.Any("error", err))
		if w.cfg.onError != nil {
			w.cfg.onError(fr.path, err)
		}
		w.emit(ProgressEvent{Stage: StageSkipped, Path: fr.name})
		return nil
	}
	if ctxErr || fr.depth == 0 {
		return err
	}
	return &Error{Kind: KindRecursive, Op: "walk", Path: fr.parent, Err: err}
}

func (w *walker) skips(err error) bool {
	switch w.cfg.policy {
	case PolicyAbort:
		return false
	case PolicyContinue:
		return true
	default:
		return errors.Is(err, ErrUnsupportedKind) || errors.Is(err, ErrPermissionDenied)
	}
}

func (w *walker) emit(ev ProgressEvent) {
	if w.cfg.progress == nil {
		return
	}
	ev.BytesDone = w.bytes
	ev.EntriesDone = w.entries
	ev.Skipped = len(w.failures)
	w.cfg.progress(ev)
}
