package dirpack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/dirpack/archive"
)

// Result summarizes a finished Pack.
type Result struct {
	// Destination is the archive path.
	Destination string

	// Format is the archive format.
	Format archive.Format

	// Entries is the number of entries written.
	Entries int

	// Bytes is the number of file content bytes written, before compression.
	Bytes uint64

	// Manifest lists the written entries and describes the archive file.
	Manifest *Manifest

	// Skipped holds the failures skipped under a lenient ErrorPolicy.
	Skipped []error
}

// Pack archives root into dest using format.
//
// A root that does not exist fails with ErrPathNotFound before dest is
// created. Otherwise Pack opens a session, walks root, and closes the
// session whatever the walk returned. When the walk or the close fails the
// partial archive is removed unless WithKeepPartial(true) is set. If dest
// lies inside root it is left out of the archive.
//
// When entries were skipped Pack returns both the Result and a
// *PartialError.
func Pack(ctx context.Context, root, dest string, format archive.Format, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)

	if _, err := os.Stat(root); err != nil {
		return nil, fsError("stat", root, err, KindPathNotFound, KindStat)
	}

	s, err := Open(dest, format, opts...)
	if err != nil {
		return nil, err
	}

	walkOpts := append(opts[:len(opts):len(opts)], WithSkip(sameFileAs(dest)))
	walkErr := Walk(ctx, root, s, walkOpts...)
	closeErr := s.Close()

	var partial *PartialError
	if errors.As(walkErr, &partial) {
		walkErr = nil
	}
	if err := errors.Join(walkErr, closeErr); err != nil {
		if !cfg.keepPartial {
			if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				cfg.logger.Warn("remove partial archive", slog.String("path", dest), slog.Any("error", rmErr))
			}
		}
		return nil, err
	}

	res := &Result{
		Destination: dest,
		Format:      format,
		Entries:     s.Entries(),
		Bytes:       s.BytesWritten(),
		Manifest:    s.Manifest(),
	}
	if cfg.manifestPath != "" {
		if err := res.Manifest.WriteFile(cfg.manifestPath); err != nil {
			return nil, err
		}
	}
	if partial != nil {
		res.Skipped = partial.Failures
		return res, partial
	}
	return res, nil
}

// sameFileAs skips the file at dest, so an archive written inside the tree
// being archived does not include itself.
func sameFileAs(dest string) SkipFunc {
	destInfo, err := os.Stat(dest)
	if err != nil {
		return nil
	}
	return func(_ string, d fs.DirEntry) bool {
		if !d.Type().IsRegular() {
			return false
		}
		info, err := d.Info()
		if err != nil {
			return false
		}
		return os.SameFile(destInfo, info)
	}
}

// OutputName returns the default archive name for dir: its base name,
// lowercased, with spaces replaced by underscores, plus the format extension.
func OutputName(dir string, format archive.Format) (string, error) {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) || base == ".." {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", dir, err)
		}
		base = filepath.Base(abs)
	}
	if base == string(filepath.Separator) || base == "" {
		base = "root"
	}
	name := strings.ReplaceAll(strings.ToLower(base), " ", "_")
	return name + format.Extension(), nil
}
