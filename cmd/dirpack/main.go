// Command dirpack archives a directory tree into a single file.
//
//	dirpack <directory> [<output-archive>]
//
// Without an output path the archive is written to the current directory,
// named after the directory (lowercased, spaces replaced by underscores)
// with the format's extension.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/acronis/go-stacktrace"
	slogex "github.com/acronis/go-stacktrace/slogex"
	"github.com/dusted-go/logging/prettylog"
	"github.com/mattn/go-isatty"
	slogformatter "github.com/samber/slog-formatter"
	"github.com/spf13/cobra"

	"github.com/meigma/dirpack"
	"github.com/meigma/dirpack/archive"
)

func initLogging(w io.Writer, verbose bool) {
	logLvl := func() slog.Level {
		if verbose {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	}()

	logger := slog.New(
		slogformatter.NewFormatterHandler(
			slogformatter.ErrorFormatter("error"),
			slogformatter.FormatByType(func(s []string) slog.Value {
				return slog.StringValue(strings.Join(s, ","))
			}),
		)(
			prettylog.New(&slog.HandlerOptions{Level: logLvl},
				prettylog.WithDestinationWriter(w),
				func() prettylog.Option {
					if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
						return prettylog.WithColor()
					}
					return func(_ *prettylog.Handler) {}
				}(),
			),
		),
	)
	slog.SetDefault(logger)
}

// commandError marks failures that happened after the arguments were
// accepted. Anything else is reported together with the usage text.
type commandError struct {
	Inner error
	Msg   string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Msg, e.Inner)
}

func (e *commandError) Unwrap() error {
	return e.Inner
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	return &commandError{
		Inner: err,
		Msg:   "command failed",
	}
}

func main() {
	os.Exit(mainFn())
}

func mainFn() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(newRootCmd(ctx), os.Args[1:])
}

func execute(cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		var cmdErr *commandError
		if errors.As(err, &cmdErr) && cmdErr.Inner != nil {
			slog.Error("Command failed", slogex.ErrToSlogAttr(cmdErr.Inner))
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			_ = cmd.Usage()
		}
		return 1
	}
	return 0
}

func newRootCmd(ctx context.Context) *cobra.Command {
	opts := &packOptions{format: archive.DefaultFormat}

	cmd := &cobra.Command{
		Use:   "dirpack <directory> [<output-archive>]",
		Short: "dirpack archives a directory tree into a single file",
		Long: "dirpack walks <directory> depth-first and writes every directory and regular file\n" +
			"below it into one archive. Symlinks, devices, sockets and FIFOs are reported and\n" +
			"skipped unless --on-error=abort is given.",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initLogging(cmd.ErrOrStderr(), opts.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return wrapError(run(ctx, cmd, args, opts))
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	addFlags(cmd, opts)
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, args []string, opts *packOptions) error {
	dir := args[0]

	fileCfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	format, packOpts, err := resolveOptions(cmd.Flags(), opts, fileCfg, dir)
	if err != nil {
		return err
	}
	packOpts = append(packOpts,
		dirpack.WithLogger(slog.Default()),
		dirpack.WithProgress(logProgress),
	)

	dest := ""
	if len(args) > 1 {
		dest = args[1]
	} else {
		dest, err = dirpack.OutputName(dir, format)
		if err != nil {
			return err
		}
	}

	slog.Info("Packing directory",
		slog.String("path", dir),
		slog.String("archive", dest),
		slog.String("format", format.String()),
	)

	res, err := dirpack.Pack(ctx, dir, dest, format, packOpts...)
	var partial *dirpack.PartialError
	if errors.As(err, &partial) {
		slog.Warn("Some entries were skipped", slogex.ErrToSlogAttr(skippedTrace(partial)))
		err = nil
	}
	if err != nil {
		return wrapTrace("pack failed", err)
	}

	attrs := []any{
		slog.String("filename", res.Destination),
		slog.Int("entries", res.Entries),
		slog.Uint64("bytes", res.Bytes),
		slog.Int("skipped", len(res.Skipped)),
	}
	if res.Manifest.Archive != nil {
		attrs = append(attrs, slog.String("digest", res.Manifest.Archive.Digest.String()))
	}
	slog.Info("Packing has been completed", attrs...)
	return nil
}

func logProgress(ev dirpack.ProgressEvent) {
	if ev.Stage == dirpack.StageFinalizing {
		slog.Debug("Finalizing archive",
			slog.Int("entries", ev.EntriesDone),
			slog.Uint64("bytes", ev.BytesDone),
		)
	}
}

// skippedTrace turns the failures of a lenient walk into one trace per
// skipped path.
func skippedTrace(partial *dirpack.PartialError) error {
	st := stacktrace.StackTrace{}
	for _, err := range partial.Failures {
		_ = st.Append(wrapTrace("entry skipped", err))
	}
	return &st
}

func wrapTrace(msg string, err error) *stacktrace.StackTrace {
	var e *dirpack.Error
	if errors.As(err, &e) && e.Path != "" {
		return stacktrace.NewWrapped(msg, err,
			stacktrace.WithInfo("kind", e.Kind.String()),
			stacktrace.WithInfo("path", e.Path),
		)
	}
	return stacktrace.NewWrapped(msg, err)
}
