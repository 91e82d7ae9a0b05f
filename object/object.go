// Package object defines the PDF object model used throughout the merger:
// the tagged object variants, indirect references, and the Document that
// owns one file's object store and trailer.
package object

import "fmt"

// ObjectRef uniquely identifies one indirect object within a document.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the union of all PDF object variants. Exactly the concrete
// types in this package implement it.
type Object interface {
	Type() string
}

// Name is a PDF name such as /Type or /Kids.
type Name struct{ Val string }

func (n Name) Type() string { return "name" }

// Number is a PDF numeric value, integer or real.
type Number struct {
	I     int64
	F     float64
	IsInt bool
}

func (n Number) Type() string { return "number" }

func (n Number) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

// Bool is a PDF boolean.
type Bool struct{ V bool }

func (b Bool) Type() string { return "boolean" }

// Null is the PDF null object.
type Null struct{}

func (Null) Type() string { return "null" }

// String is a PDF string. Hex records whether the source used hex
// notation; the writer picks its own notation based on the payload.
type String struct {
	Bytes []byte
	Hex   bool
}

func (s String) Type() string { return "string" }

// Array is an ordered sequence of objects.
type Array struct{ Items []Object }

func (a *Array) Type() string    { return "array" }
func (a *Array) Len() int        { return len(a.Items) }
func (a *Array) Append(o Object) { a.Items = append(a.Items, o) }

// Dict maps name keys (without the leading slash) to objects.
type Dict struct{ KV map[string]Object }

func (d *Dict) Type() string { return "dict" }

func (d *Dict) Get(key string) (Object, bool) {
	o, ok := d.KV[key]
	return o, ok
}

func (d *Dict) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}

func (d *Dict) Delete(key string) { delete(d.KV, key) }

func (d *Dict) HasKey(key string) bool { _, ok := d.KV[key]; return ok }

func (d *Dict) Len() int { return len(d.KV) }

// GetName returns the string value of a name-valued entry.
func (d *Dict) GetName(key string) (string, bool) {
	if n, ok := d.KV[key].(Name); ok {
		return n.Val, true
	}
	return "", false
}

// GetInt returns the value of an integer-valued entry.
func (d *Dict) GetInt(key string) (int64, bool) {
	if n, ok := d.KV[key].(Number); ok && n.IsInt {
		return n.I, true
	}
	return 0, false
}

// Stream is a dictionary with an attached raw byte payload. The payload is
// never decoded by this module; filters and their parameters travel with
// the dictionary untouched.
type Stream struct {
	Dict *Dict
	Data []byte
}

func (s *Stream) Type() string { return "stream" }

// Reference is an indirect reference to another object. It is only
// meaningful relative to the object store it was read from.
type Reference struct{ R ObjectRef }

func (r Reference) Type() string { return "ref" }

// Constructors in the style the rest of the module composes objects with.

func NewDict() *Dict                         { return &Dict{KV: make(map[string]Object)} }
func NewArray(items ...Object) *Array        { return &Array{Items: items} }
func NewStream(d *Dict, data []byte) *Stream { return &Stream{Dict: d, Data: data} }
func Integer(i int64) Number                 { return Number{I: i, IsInt: true} }
func Real(f float64) Number                  { return Number{F: f} }
func Str(b []byte) String                    { return String{Bytes: b} }
func Ref(num, gen int) Reference             { return Reference{R: ObjectRef{Num: num, Gen: gen}} }
