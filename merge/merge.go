// Package merge combines the pages of several PDF files into one output
// document. Each input is parsed, renumbered into a shared object number
// space, and copied whole into the merged store; pages are then gathered
// in input order under a fresh page tree and catalog, and the result is
// written atomically to the destination path.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/puzzithinker/pdfmerge/observability"
	"github.com/puzzithinker/pdfmerge/parser"
	"github.com/puzzithinker/pdfmerge/recovery"
	"github.com/puzzithinker/pdfmerge/security"
	"github.com/puzzithinker/pdfmerge/writer"
)

// defaultVersion is the header version stamped on merged output. Inputs
// may declare anything; the output makes no claim beyond the features it
// actually uses.
const defaultVersion = "1.5"

// Progress reports merge advancement. Index counts input files fully
// absorbed so far: each file emits one event as work on it starts and
// one when it is done, so the last event before the output is written
// carries Index == Total.
type Progress struct {
	Index int
	Total int
	File  string
}

type Options struct {
	// Limits bounds resource use during parsing. Zero fields take
	// their defaults.
	Limits security.Limits

	// Logger receives structured progress and timing events. Nil
	// discards them.
	Logger observability.Logger

	// Progress, when non-nil, receives events as input files are
	// processed. Sends never block: events are dropped if the
	// receiver lags.
	Progress chan<- Progress

	// Version overrides the output header version.
	Version string
}

func (o *Options) logger() observability.Logger {
	if o.Logger == nil {
		return observability.NopLogger{}
	}
	return o.Logger
}

func (o *Options) notify(index, total int, file string) {
	if o.Progress == nil {
		return
	}
	select {
	case o.Progress <- Progress{Index: index, Total: total, File: filepath.Base(file)}:
	default:
	}
}

// Merge reads every file in inputs, in order, and writes the merged
// document to dest. It fails on the first unusable input; an error
// always identifies the stage and the file that caused it, and a failed
// merge never leaves a partial file at dest.
func Merge(ctx context.Context, inputs []string, dest string, opts Options) error {
	if len(inputs) == 0 {
		return stageErr(StageValidate, "", ErrEmptyInputList)
	}
	log := opts.logger()

	merged := newMergedDocument()
	for i, input := range inputs {
		opts.notify(i, len(inputs), input)
		if err := ctx.Err(); err != nil {
			return stageErr(StageLoad, input, err)
		}
		if err := absorb(ctx, merged, i, input, opts); err != nil {
			return err
		}
		opts.notify(i+1, len(inputs), input)
	}
	log.Info("inputs merged",
		observability.Int("files", len(inputs)),
		observability.Int(observability.MetricPageCount, len(merged.pages)),
		observability.Int(observability.MetricObjectCount, len(merged.objects)))

	version := opts.Version
	if version == "" {
		version = defaultVersion
	}
	doc, err := merged.finalize(version)
	if err != nil {
		return stageErr(StageBuild, "", err)
	}

	start := time.Now()
	if err := writer.New(writer.Config{Version: version}).WriteFile(dest, doc); err != nil {
		return stageErr(StageWrite, dest, err)
	}
	log.Info("output written",
		observability.String("dest", dest),
		observability.Int64(observability.MetricWriteTime, time.Since(start).Milliseconds()))
	return nil
}

// absorb loads one input and folds its objects and pages into merged.
// The number space high-water mark advances as soon as the input is
// renumbered, before its objects are copied, so a later failure cannot
// hand out identifiers the failed input already claimed.
func absorb(ctx context.Context, merged *mergedDocument, index int, input string, opts Options) error {
	log := opts.logger()

	start := time.Now()
	data, err := os.ReadFile(input)
	if err != nil {
		return stageErr(StageLoad, input, err)
	}
	if len(data) == 0 {
		return stageErr(StageValidate, input, ErrEmptyFile)
	}

	p := parser.NewDocumentParser(parser.Config{
		Limits:   opts.Limits,
		Recovery: &recovery.Lenient{},
		Logger:   log,
	})
	doc, err := p.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return stageErr(StageLoad, input, err)
	}
	log.Debug("input loaded",
		observability.String("file", input),
		observability.Int(observability.MetricObjectCount, len(doc.Objects)),
		observability.Int64(observability.MetricLoadTime, time.Since(start).Milliseconds()))

	if doc.Encrypted {
		if info, ok := security.InspectEncryption(doc); ok {
			return stageErr(StageValidate, input, fmt.Errorf("%w (%s)", ErrEncrypted, info))
		}
		return stageErr(StageValidate, input, ErrEncrypted)
	}

	merged.nextObjectNumber = doc.Renumber(merged.nextObjectNumber)

	if err := merged.importObjects(doc); err != nil {
		return stageErr(StageCopy, input, err)
	}

	pages, err := collectPages(doc)
	if err != nil {
		return stageErr(StageCollect, input, err)
	}
	for _, ref := range pages {
		merged.pages = append(merged.pages, pageEntry{fileIndex: index, ref: ref})
	}
	return nil
}

// Run performs Merge on a background goroutine and delivers its single
// result on the returned channel. The channel is buffered, so the result
// arrives even if nobody is listening yet; a panicked worker reports as
// ErrWorker instead of crashing the process.
func Run(ctx context.Context, inputs []string, dest string, opts Options) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- stageErr(StageWorker, "", fmt.Errorf("%w: %v", ErrWorker, r))
			}
		}()
		result <- Merge(ctx, inputs, dest, opts)
	}()
	return result
}
