package object

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestObjectRefString(t *testing.T) {
	ref := ObjectRef{Num: 12, Gen: 3}
	if got := ref.String(); got != "12 3 R" {
		t.Fatalf("expected %q, got %q", "12 3 R", got)
	}
}

func TestDictAccessors(t *testing.T) {
	d := NewDict()
	d.Set("Type", Name{Val: "Page"})
	d.Set("Count", Integer(5))
	d.Set("Kids", NewArray())

	if got, ok := d.GetName("Type"); !ok || got != "Page" {
		t.Fatalf("GetName(Type) = %q, %v", got, ok)
	}
	if got, ok := d.GetInt("Count"); !ok || got != 5 {
		t.Fatalf("GetInt(Count) = %d, %v", got, ok)
	}
	if _, ok := d.GetInt("Type"); ok {
		t.Fatalf("GetInt on a name should not succeed")
	}
	if !d.HasKey("Kids") {
		t.Fatalf("HasKey(Kids) = false")
	}
	d.Delete("Kids")
	if d.HasKey("Kids") {
		t.Fatalf("Kids still present after Delete")
	}
	if d.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", d.Len())
	}
}

func TestDictSetOnZeroValue(t *testing.T) {
	var d Dict
	d.Set("A", Integer(1))
	if got, ok := d.GetInt("A"); !ok || got != 1 {
		t.Fatalf("Set on zero-value dict lost the entry")
	}
}

func TestNumberFloat(t *testing.T) {
	if got := Integer(7).Float(); got != 7.0 {
		t.Fatalf("Integer(7).Float() = %v", got)
	}
	if got := Real(2.5).Float(); got != 2.5 {
		t.Fatalf("Real(2.5).Float() = %v", got)
	}
}

func TestArrayAppend(t *testing.T) {
	a := NewArray()
	a.Append(Integer(1))
	a.Append(Name{Val: "X"})
	want := &Array{Items: []Object{Integer(1), Name{Val: "X"}}}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Fatalf("array mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamConstruction(t *testing.T) {
	d := NewDict()
	d.Set("Length", Integer(3))
	s := NewStream(d, []byte("abc"))
	if s.Dict != d {
		t.Fatalf("stream dict not attached")
	}
	if string(s.Data) != "abc" {
		t.Fatalf("stream payload = %q", s.Data)
	}
}
