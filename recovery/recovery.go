// Package recovery decides how parsing reacts to structural damage in an
// input file: fail immediately, or tolerate the defect and continue.
package recovery

// Strategy is consulted whenever a component detects a structural problem
// it could work around.
type Strategy interface {
	OnError(err error, location Location) Action
}

// Location names where in the input the problem was found.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	// ActionFail aborts processing with the original error.
	ActionFail Action = iota
	// ActionSkip drops the damaged element and continues.
	ActionSkip
	// ActionFix continues with a best-effort reading of the element.
	ActionFix
)
