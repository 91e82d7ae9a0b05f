// Package security holds the parse limits that bound resource use while
// reading untrusted files, and the inspection of encryption dictionaries.
// The merger detects encryption; it never decrypts.
package security

// Limits bounds parsing work so a malformed or hostile input cannot
// exhaust memory or stall the merge.
type Limits struct {
	// Maximum indirect reference depth. Default: 100.
	MaxIndirectDepth int

	// Maximum xref chain depth (Prev entries). Default: 50.
	MaxXRefDepth int

	// Maximum string length in bytes. Default: 10 MB.
	MaxStringLength int64

	// Maximum raw stream length in bytes. Default: 50 MB.
	MaxStreamLength int64
}

// DefaultLimits returns safe defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxIndirectDepth: 100,
		MaxXRefDepth:     50,
		MaxStringLength:  10 * 1024 * 1024,
		MaxStreamLength:  50 * 1024 * 1024,
	}
}

// OrDefaults fills zero fields from DefaultLimits.
func (l Limits) OrDefaults() Limits {
	d := DefaultLimits()
	if l.MaxIndirectDepth == 0 {
		l.MaxIndirectDepth = d.MaxIndirectDepth
	}
	if l.MaxXRefDepth == 0 {
		l.MaxXRefDepth = d.MaxXRefDepth
	}
	if l.MaxStringLength == 0 {
		l.MaxStringLength = d.MaxStringLength
	}
	if l.MaxStreamLength == 0 {
		l.MaxStreamLength = d.MaxStreamLength
	}
	return l
}
