package object

import "sort"

// Document is the root container for one parsed PDF: its object store, the
// trailer dictionary, and the declared header version. A Document's
// references only resolve against its own store.
type Document struct {
	Objects   map[ObjectRef]Object
	Trailer   *Dict
	Version   string
	Encrypted bool
}

func NewDocument() *Document {
	return &Document{
		Objects: make(map[ObjectRef]Object),
		Trailer: NewDict(),
	}
}

// MaxObjectNumber returns the highest object number present in the store,
// or 0 for an empty store.
func (d *Document) MaxObjectNumber() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Resolve follows indirect references until a direct object is reached.
// A reference that does not resolve within the store yields Null, as does
// a reference chain longer than the store itself (a cycle).
func (d *Document) Resolve(o Object) Object {
	for hops := 0; hops <= len(d.Objects); hops++ {
		ref, ok := o.(Reference)
		if !ok {
			return o
		}
		o, ok = d.Objects[ref.R]
		if !ok {
			return Null{}
		}
	}
	return Null{}
}

// ResolveDict resolves o and returns it as a dictionary. Stream
// dictionaries are not unwrapped.
func (d *Document) ResolveDict(o Object) (*Dict, bool) {
	dict, ok := d.Resolve(o).(*Dict)
	return dict, ok
}

// ResolveArray resolves o and returns it as an array.
func (d *Document) ResolveArray(o Object) (*Array, bool) {
	arr, ok := d.Resolve(o).(*Array)
	return arr, ok
}

// Catalog returns the document catalog named by the trailer Root entry.
func (d *Document) Catalog() (*Dict, bool) {
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, false
	}
	return d.ResolveDict(root)
}

// Renumber reassigns every object in the store to a fresh number in
// [start, start+count), in ascending order of the old identifiers so the
// outcome is deterministic, and rewrites every reference in the store and
// the trailer to the corresponding new identifier. All generation numbers
// become 0. References that do not point into the store rewrite to null:
// after renumbering they could otherwise alias objects of an unrelated
// document sharing the same number space.
//
// The returned value is start+count, the caller's next free object number.
func (d *Document) Renumber(start int) int {
	olds := make([]ObjectRef, 0, len(d.Objects))
	for ref := range d.Objects {
		olds = append(olds, ref)
	}
	sort.Slice(olds, func(i, j int) bool {
		if olds[i].Num != olds[j].Num {
			return olds[i].Num < olds[j].Num
		}
		return olds[i].Gen < olds[j].Gen
	})

	mapping := make(map[ObjectRef]ObjectRef, len(olds))
	next := start
	for _, old := range olds {
		mapping[old] = ObjectRef{Num: next}
		next++
	}

	renumbered := make(map[ObjectRef]Object, len(olds))
	for old, obj := range d.Objects {
		renumbered[mapping[old]] = rewriteRefs(obj, mapping)
	}
	d.Objects = renumbered
	if d.Trailer != nil {
		d.Trailer = rewriteRefs(d.Trailer, mapping).(*Dict)
	}
	return next
}

// rewriteRefs maps every Reference inside o through mapping. Containers
// are rewritten in place; only the identifier stored in each reference is
// touched, so reference cycles need no special handling.
func rewriteRefs(o Object, mapping map[ObjectRef]ObjectRef) Object {
	switch v := o.(type) {
	case Reference:
		if n, ok := mapping[v.R]; ok {
			return Reference{R: n}
		}
		return Null{}
	case *Array:
		for i, item := range v.Items {
			v.Items[i] = rewriteRefs(item, mapping)
		}
		return v
	case *Dict:
		for key, item := range v.KV {
			v.KV[key] = rewriteRefs(item, mapping)
		}
		return v
	case *Stream:
		if v.Dict != nil {
			v.Dict = rewriteRefs(v.Dict, mapping).(*Dict)
		}
		return v
	default:
		return o
	}
}
