package recovery

import "fmt"

// Strict fails on the first structural defect. Document parsing defaults
// to it when no strategy is configured.
type Strict struct{}

func (Strict) OnError(err error, location Location) Action { return ActionFail }

// Lenient records defects and keeps going with a best-effort reading. The
// merge engine loads inputs under it so that a broken cross-reference
// table alone does not doom an otherwise readable file.
type Lenient struct {
	Errors []error
}

func (s *Lenient) OnError(err error, location Location) Action {
	s.Errors = append(s.Errors, fmt.Errorf("%s at offset %d: %w", location.Component, location.ByteOffset, err))
	return ActionFix
}
