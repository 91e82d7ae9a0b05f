package merge

import (
	"errors"
	"testing"

	"github.com/puzzithinker/pdfmerge/object"
)

// treeDoc builds a document whose page tree is described by the caller:
// the trailer Root points at object 1, the page tree root is object 2.
func treeDoc() *object.Document {
	doc := object.NewDocument()
	catalog := object.NewDict()
	catalog.Set("Type", object.Name{Val: "Catalog"})
	catalog.Set("Pages", object.Ref(2, 0))
	doc.Objects[object.ObjectRef{Num: 1}] = catalog
	doc.Trailer.Set("Root", object.Ref(1, 0))
	return doc
}

func pagesNode(kids ...object.Object) *object.Dict {
	d := object.NewDict()
	d.Set("Type", object.Name{Val: "Pages"})
	d.Set("Kids", object.NewArray(kids...))
	return d
}

func pageNode() *object.Dict {
	d := object.NewDict()
	d.Set("Type", object.Name{Val: "Page"})
	return d
}

func TestCollectPagesFlatTree(t *testing.T) {
	doc := treeDoc()
	root := pagesNode(object.Ref(3, 0), object.Ref(4, 0))
	root.Set("Count", object.Integer(2))
	doc.Objects[object.ObjectRef{Num: 2}] = root
	doc.Objects[object.ObjectRef{Num: 3}] = pageNode()
	doc.Objects[object.ObjectRef{Num: 4}] = pageNode()

	pages, err := collectPages(doc)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	want := []object.ObjectRef{{Num: 3}, {Num: 4}}
	if len(pages) != 2 || pages[0] != want[0] || pages[1] != want[1] {
		t.Fatalf("pages = %v, want %v", pages, want)
	}
}

func TestCollectPagesNestedTreeOrder(t *testing.T) {
	doc := treeDoc()
	root := pagesNode(object.Ref(3, 0), object.Ref(6, 0))
	root.Set("Count", object.Integer(3))
	doc.Objects[object.ObjectRef{Num: 2}] = root
	doc.Objects[object.ObjectRef{Num: 3}] = pagesNode(object.Ref(4, 0), object.Ref(5, 0))
	doc.Objects[object.ObjectRef{Num: 4}] = pageNode()
	doc.Objects[object.ObjectRef{Num: 5}] = pageNode()
	doc.Objects[object.ObjectRef{Num: 6}] = pageNode()

	pages, err := collectPages(doc)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	want := []object.ObjectRef{{Num: 4}, {Num: 5}, {Num: 6}}
	for i := range want {
		if pages[i] != want[i] {
			t.Fatalf("pages = %v, want %v", pages, want)
		}
	}
}

func TestCollectPagesMaterializesInheritedAttributes(t *testing.T) {
	doc := treeDoc()
	box := object.NewArray(object.Integer(0), object.Integer(0), object.Integer(300), object.Integer(400))
	root := pagesNode(object.Ref(3, 0), object.Ref(4, 0))
	root.Set("MediaBox", box)
	root.Set("Rotate", object.Integer(90))
	doc.Objects[object.ObjectRef{Num: 2}] = root

	plain := pageNode()
	doc.Objects[object.ObjectRef{Num: 3}] = plain
	own := pageNode()
	ownBox := object.NewArray(object.Integer(0), object.Integer(0), object.Integer(612), object.Integer(792))
	own.Set("MediaBox", ownBox)
	doc.Objects[object.ObjectRef{Num: 4}] = own

	if _, err := collectPages(doc); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if got, _ := plain.Get("MediaBox"); got != object.Object(box) {
		t.Fatalf("inherited MediaBox not materialized: %v", got)
	}
	if rot, ok := plain.GetInt("Rotate"); !ok || rot != 90 {
		t.Fatalf("inherited Rotate not materialized: %d %v", rot, ok)
	}
	// A page's own value always beats the inherited one.
	if got, _ := own.Get("MediaBox"); got != object.Object(ownBox) {
		t.Fatalf("own MediaBox was overwritten: %v", got)
	}
}

func TestCollectPagesLeafWithoutType(t *testing.T) {
	doc := treeDoc()
	root := pagesNode(object.Ref(3, 0))
	doc.Objects[object.ObjectRef{Num: 2}] = root
	doc.Objects[object.ObjectRef{Num: 3}] = object.NewDict() // no Type, no Kids

	pages, err := collectPages(doc)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(pages) != 1 || pages[0] != (object.ObjectRef{Num: 3}) {
		t.Fatalf("pages = %v", pages)
	}
}

func TestCollectPagesRejectsCycle(t *testing.T) {
	doc := treeDoc()
	doc.Objects[object.ObjectRef{Num: 2}] = pagesNode(object.Ref(3, 0))
	doc.Objects[object.ObjectRef{Num: 3}] = pagesNode(object.Ref(2, 0))

	_, err := collectPages(doc)
	if !errors.Is(err, ErrCorruptedStructure) {
		t.Fatalf("expected corrupted structure error, got %v", err)
	}
}

func TestCollectPagesRejectsCountMismatch(t *testing.T) {
	doc := treeDoc()
	root := pagesNode(object.Ref(3, 0))
	root.Set("Count", object.Integer(5))
	doc.Objects[object.ObjectRef{Num: 2}] = root
	doc.Objects[object.ObjectRef{Num: 3}] = pageNode()

	_, err := collectPages(doc)
	if !errors.Is(err, ErrCorruptedStructure) {
		t.Fatalf("expected corrupted structure error, got %v", err)
	}
}

func TestCollectPagesRejectsDirectKid(t *testing.T) {
	doc := treeDoc()
	doc.Objects[object.ObjectRef{Num: 2}] = pagesNode(pageNode())

	_, err := collectPages(doc)
	if !errors.Is(err, ErrCorruptedStructure) {
		t.Fatalf("expected corrupted structure error, got %v", err)
	}
}

func TestCollectPagesRejectsMissingCatalog(t *testing.T) {
	doc := object.NewDocument()
	if _, err := collectPages(doc); !errors.Is(err, ErrCorruptedStructure) {
		t.Fatalf("expected corrupted structure error, got %v", err)
	}
}

func TestCollectPagesRejectsMissingNode(t *testing.T) {
	doc := treeDoc()
	doc.Objects[object.ObjectRef{Num: 2}] = pagesNode(object.Ref(42, 0))

	_, err := collectPages(doc)
	if !errors.Is(err, ErrCorruptedStructure) {
		t.Fatalf("expected corrupted structure error, got %v", err)
	}
}
