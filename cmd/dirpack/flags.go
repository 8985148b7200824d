package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/meigma/dirpack"
	"github.com/meigma/dirpack/archive"
	"github.com/meigma/dirpack/cmd/dirpack/internal/config"
)

const (
	formatFlag      = "format"
	prefixFlag      = "prefix"
	onErrorFlag     = "on-error"
	maxDepthFlag    = "max-depth"
	maxEntriesFlag  = "max-entries"
	levelFlag       = "level"
	keepPartialFlag = "keep-partial"
	manifestFlag    = "manifest"
	strictFlag      = "strict"
	configFlag      = "config"
	verboseFlag     = "verbose"
)

type packOptions struct {
	format      archive.Format
	prefix      string
	onError     string
	maxDepth    int
	maxEntries  int
	level       string
	keepPartial bool
	manifest    string
	strict      bool
	configPath  string
	verbose     bool
}

func addFlags(cmd *cobra.Command, opts *packOptions) {
	flags := cmd.Flags()
	flags.VarP(&opts.format, formatFlag, "f", "archive format (tar.zst, tar.gz, tar.lz4, tar, zip, estargz)")
	flags.StringVar(&opts.prefix, prefixFlag, "", "pathname of the root entry (default: the directory's base name)")
	flags.StringVar(&opts.onError, onErrorFlag, dirpack.PolicySkipUnsupported.String(), "entry failure policy: abort, skip-unsupported or continue")
	flags.IntVar(&opts.maxDepth, maxDepthFlag, 0, "maximum directory depth below the root (0 = unlimited)")
	flags.IntVar(&opts.maxEntries, maxEntriesFlag, 0, "maximum number of entries (0 = unlimited)")
	flags.StringVar(&opts.level, levelFlag, archive.LevelDefault.String(), "compression level: fastest, default or best")
	flags.BoolVar(&opts.keepPartial, keepPartialFlag, false, "keep the output file when packing fails")
	flags.StringVar(&opts.manifest, manifestFlag, "", "write a JSON manifest of the archive to this path")
	flags.BoolVar(&opts.strict, strictFlag, false, "fail when a file changes while it is archived")
	flags.StringVar(&opts.configPath, configFlag, "", "config file (default: $XDG_CONFIG_HOME/dirpack/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, verboseFlag, "v", false, "verbose output")
}

// loadConfig reads the config file. An explicit path must exist; the
// default one is optional.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		return config.Load(path)
	}

	path, err := config.DefaultPath()
	if err != nil {
		return &config.Config{}, nil //nolint:nilerr // no config dir means no config
	}
	return config.Load(path)
}

// resolveOptions merges the config file with the flags. A flag given on the
// command line always wins.
func resolveOptions(flags *pflag.FlagSet, opts *packOptions, cfg *config.Config, dir string) (archive.Format, []dirpack.Option, error) {
	format := opts.format
	if !flags.Changed(formatFlag) && cfg.Format != nil {
		f, err := archive.ParseFormat(*cfg.Format)
		if err != nil {
			return "", nil, err
		}
		format = f
	}

	levelName := opts.level
	if !flags.Changed(levelFlag) && cfg.Level != nil {
		levelName = *cfg.Level
	}
	level, err := archive.ParseLevel(levelName)
	if err != nil {
		return "", nil, err
	}

	policyName := opts.onError
	if !flags.Changed(onErrorFlag) && cfg.OnError != nil {
		policyName = *cfg.OnError
	}
	policy, err := dirpack.ParseErrorPolicy(policyName)
	if err != nil {
		return "", nil, err
	}

	maxDepth := pick(flags, maxDepthFlag, opts.maxDepth, cfg.MaxDepth)
	if maxDepth < 0 {
		return "", nil, fmt.Errorf("--%s must not be negative", maxDepthFlag)
	}
	maxEntries := pick(flags, maxEntriesFlag, opts.maxEntries, cfg.MaxEntries)
	keepPartial := pick(flags, keepPartialFlag, opts.keepPartial, cfg.KeepPartial)
	strict := pick(flags, strictFlag, opts.strict, cfg.Strict)

	prefix := opts.prefix
	if !flags.Changed(prefixFlag) {
		prefix = defaultPrefix(dir)
	}

	packOpts := []dirpack.Option{
		dirpack.WithErrorPolicy(policy),
		dirpack.WithMaxDepth(maxDepth),
		dirpack.WithMaxEntries(maxEntries),
		dirpack.WithPrefix(prefix),
		dirpack.WithKeepPartial(keepPartial),
		dirpack.WithManifestPath(opts.manifest),
		dirpack.WithArchiveOptions(
			archive.WithLevel(level),
			archive.WithSkipCompression(archive.DefaultSkipCompression(0)),
		),
	}
	if strict {
		packOpts = append(packOpts, dirpack.WithChangeDetection(dirpack.ChangeDetectionStrict))
	}
	if skip := cfg.Skip(); skip != nil {
		packOpts = append(packOpts, dirpack.WithSkip(skip))
	}
	return format, packOpts, nil
}

func pick[T any](flags *pflag.FlagSet, name string, flagValue T, fileValue *T) T {
	if flags.Changed(name) || fileValue == nil {
		return flagValue
	}
	return *fileValue
}

// defaultPrefix names the root entry after the directory itself, so the
// archive unpacks into a directory of that name.
func defaultPrefix(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	base := filepath.Base(abs)
	if base == string(filepath.Separator) || base == "." {
		return ""
	}
	return base
}
