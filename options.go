package dirpack

import (
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/meigma/dirpack/archive"
)

// DefaultChunkSize is the size of the chunks file bodies are streamed in.
const DefaultChunkSize = 4096

// ErrorPolicy decides which per-entry failures a walk survives.
type ErrorPolicy uint8

const (
	// PolicySkipUnsupported reports and skips unsupported and
	// permission-denied entries; any other failure aborts the walk.
	PolicySkipUnsupported ErrorPolicy = iota

	// PolicyAbort aborts the walk on the first failure.
	PolicyAbort

	// PolicyContinue reports and skips every failure that happens before an
	// entry's header is committed.
	PolicyContinue
)

// ParseErrorPolicy resolves "abort", "skip-unsupported" or "continue".
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip-unsupported":
		return PolicySkipUnsupported, nil
	case "abort":
		return PolicyAbort, nil
	case "continue":
		return PolicyContinue, nil
	default:
		return PolicySkipUnsupported, fmt.Errorf("unknown error policy %q (must be one of abort,skip-unsupported,continue)", s)
	}
}

// String returns the string representation of the policy.
func (p ErrorPolicy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	case PolicyContinue:
		return "continue"
	default:
		return "skip-unsupported"
	}
}

// ChangeDetection controls how strictly file changes are detected during creation.
type ChangeDetection uint8

const (
	ChangeDetectionNone ChangeDetection = iota
	ChangeDetectionStrict
)

// SkipFunc returns true when an entry (and, for directories, its subtree)
// should be left out of the archive. path is the filesystem path.
type SkipFunc func(path string, d fs.DirEntry) bool

// config holds configuration for walking, building and packing.
type config struct {
	policy          ErrorPolicy
	onError         func(path string, err error)
	maxDepth        int
	maxEntries      int
	prefix          string
	skip            []SkipFunc
	chunkSize       int
	changeDetection ChangeDetection
	logger          *slog.Logger
	progress        ProgressFunc
	archiveOpts     []archive.Option
	keepPartial     bool
	manifestPath    string
}

// Option configures archive creation.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.chunkSize <= 0 {
		cfg.chunkSize = DefaultChunkSize
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// WithErrorPolicy sets which per-entry failures the walk survives.
// The default is PolicySkipUnsupported.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(cfg *config) {
		cfg.policy = p
	}
}

// WithOnError registers a callback for every failure the walk skips.
func WithOnError(fn func(path string, err error)) Option {
	return func(cfg *config) {
		cfg.onError = fn
	}
}

// WithMaxDepth limits how many directory levels below the root are walked.
// Zero means no limit.
func WithMaxDepth(n int) Option {
	return func(cfg *config) {
		cfg.maxDepth = n
	}
}

// WithMaxEntries limits the number of entries written to the archive.
// Zero or negative means no limit, which is the default.
func WithMaxEntries(n int) Option {
	return func(cfg *config) {
		cfg.maxEntries = n
	}
}

// WithPrefix names the root entry prefix and every other entry prefix/child.
// Without a prefix the root directory is named "." and entries are relative
// to it.
func WithPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.prefix = prefix
	}
}

// WithSkip adds predicates that leave entries out of the archive.
func WithSkip(fns ...SkipFunc) Option {
	return func(cfg *config) {
		cfg.skip = append(cfg.skip, fns...)
	}
}

// WithChunkSize sets the chunk size file bodies are streamed in.
// Non-positive values use DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(cfg *config) {
		cfg.chunkSize = n
	}
}

// WithChangeDetection controls whether files are verified not to change
// while they are archived. The zero value disables change detection to
// reduce syscalls; enable ChangeDetectionStrict for stronger guarantees.
func WithChangeDetection(cd ChangeDetection) Option {
	return func(cfg *config) {
		cfg.changeDetection = cd
	}
}

// WithLogger sets a logger. If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithProgress sets a callback that receives progress updates.
func WithProgress(fn ProgressFunc) Option {
	return func(cfg *config) {
		cfg.progress = fn
	}
}

// WithArchiveOptions passes options to the archive backend when a session
// opens its destination.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(cfg *config) {
		cfg.archiveOpts = append(cfg.archiveOpts, opts...)
	}
}

// WithKeepPartial keeps the output of a failed Pack instead of removing it.
func WithKeepPartial(keep bool) Option {
	return func(cfg *config) {
		cfg.keepPartial = keep
	}
}

// WithManifestPath makes Pack write the archive manifest as JSON to path.
func WithManifestPath(path string) Option {
	return func(cfg *config) {
		cfg.manifestPath = path
	}
}

func (cfg *config) skipped(path string, d fs.DirEntry) bool {
	for _, fn := range cfg.skip {
		if fn != nil && fn(path, d) {
			return true
		}
	}
	return false
}
