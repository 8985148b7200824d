package archive

// config holds backend configuration.
type config struct {
	level           Level
	skipCompression []SkipCompressionFunc
	tempDir         string
}

// Option configures an archive backend.
type Option func(*config)

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithLevel sets the compression level for codecs that support one.
func WithLevel(l Level) Option {
	return func(cfg *config) {
		cfg.level = l
	}
}

// WithSkipCompression adds predicates that decide to store a file uncompressed.
// Only formats with per-entry compression (zip) consult them.
// These checks are on the hot path, so keep them cheap.
func WithSkipCompression(fns ...SkipCompressionFunc) Option {
	return func(cfg *config) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// WithTempDir sets the directory used for spool files (eStargz).
// Empty uses os.TempDir.
func WithTempDir(dir string) Option {
	return func(cfg *config) {
		cfg.tempDir = dir
	}
}
