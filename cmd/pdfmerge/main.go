package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/puzzithinker/pdfmerge/merge"
	"github.com/puzzithinker/pdfmerge/observability"
)

type options struct {
	inputs  []string
	output  string
	version string
	verbose bool
	quiet   bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfmerge: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfmerge: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfmerge [flags] -out merged.pdf <pdf> <pdf> [pdf...]\n")
		flag.PrintDefaults()
	}
	output := flag.String("out", "merged.pdf", "Path of the merged output file")
	version := flag.String("pdf-version", "", "Override the output PDF header version")
	verbose := flag.Bool("v", false, "Log parser and merge internals")
	quiet := flag.Bool("quiet", false, "Suppress per-file progress output")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return options{}, fmt.Errorf("no input files given")
	}
	opts.inputs = flag.Args()
	opts.output = *output
	opts.version = *version
	opts.verbose = *verbose
	opts.quiet = *quiet
	return opts, nil
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlogLogger(slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var progress chan merge.Progress
	done := make(chan struct{})
	if showProgress(opts) {
		progress = make(chan merge.Progress, len(opts.inputs)*2)
		go func() {
			defer close(done)
			// One line per file as work on it starts; the engine
			// also reports completions, which would read as noise.
			seen := 0
			for p := range progress {
				if p.Index == seen {
					fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", p.Index+1, p.Total, p.File)
				} else {
					seen = p.Index
				}
			}
		}()
	} else {
		close(done)
	}

	err := merge.Merge(ctx, opts.inputs, opts.output, merge.Options{
		Logger:   logger,
		Progress: progress,
		Version:  opts.version,
	})
	if progress != nil {
		close(progress)
	}
	<-done
	if err != nil {
		return err
	}
	if !opts.quiet {
		fmt.Printf("merged %d files into %s\n", len(opts.inputs), opts.output)
	}
	return nil
}

// showProgress limits the per-file ticker to interactive sessions so
// piped stderr stays parseable.
func showProgress(opts options) bool {
	return !opts.quiet && term.IsTerminal(int(os.Stderr.Fd()))
}
