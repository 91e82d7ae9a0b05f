package merge

import (
	"errors"
	"fmt"
)

// Stage names reported by Error. They follow the engine's state machine:
// every failure names the stage that was running and, for per-file
// stages, the offending source file.
const (
	StageLoad     = "load"
	StageValidate = "validate"
	StageRenumber = "renumber"
	StageCopy     = "copy"
	StageCollect  = "collect"
	StageBuild    = "build"
	StageWrite    = "write"
	StageWorker   = "worker"
)

var (
	// ErrEmptyInputList reports a merge invoked with no source files.
	ErrEmptyInputList = errors.New("no input files to merge")

	// ErrEmptyFile reports a zero-byte source file.
	ErrEmptyFile = errors.New("file is empty")

	// ErrEncrypted reports a source that declares an Encrypt dictionary.
	// The merger does not decrypt; such files are rejected before any
	// of their objects reach the merged store.
	ErrEncrypted = errors.New("document is encrypted")

	// ErrCorruptedStructure reports a page tree that cannot be walked:
	// missing catalog, malformed nodes, cycles, or a /Count that
	// disagrees with the pages actually found.
	ErrCorruptedStructure = errors.New("corrupted document structure")

	// ErrWorker reports that the background merge task itself failed
	// to run to completion.
	ErrWorker = errors.New("merge worker failed")
)

// Missing-file errors surface as the os.ReadFile error, so callers can
// test errors.Is(err, fs.ErrNotExist). A non-PDF input surfaces as
// parser.ErrNotAPDF; any other load failure is a parse error.

// Error is the failure type returned by Merge: the stage that failed,
// the file it was processing (source file, or destination for write
// failures), and the underlying cause.
type Error struct {
	Stage string
	File  string
	Err   error
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("merge %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("merge %s %q: %v", e.Stage, e.File, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageErr(stage, file string, err error) *Error {
	return &Error{Stage: stage, File: file, Err: err}
}
