package merge

import (
	"errors"
	"fmt"

	"github.com/puzzithinker/pdfmerge/object"
)

// pageEntry records one collected page: which input file it came from
// and its renumbered identifier in the merged store. Entries are ordered
// by input position first, then by the source file's own reading order.
type pageEntry struct {
	fileIndex int
	ref       object.ObjectRef
}

// mergedDocument accumulates the output: the union of all renumbered
// source stores, the next free object number, and the ordered page list.
// It grows monotonically, one source file at a time, and is finalized
// exactly once.
type mergedDocument struct {
	objects          map[object.ObjectRef]object.Object
	nextObjectNumber int
	pages            []pageEntry
}

func newMergedDocument() *mergedDocument {
	return &mergedDocument{
		objects:          make(map[object.ObjectRef]object.Object),
		nextObjectNumber: 1,
	}
}

func (m *mergedDocument) alloc() object.ObjectRef {
	ref := object.ObjectRef{Num: m.nextObjectNumber}
	m.nextObjectNumber++
	return ref
}

// importObjects transplants a renumbered document's entire store into
// the merged store. Renumbering made the identifiers globally unique, so
// a collision here is an internal invariant violation, not a property of
// the input.
func (m *mergedDocument) importObjects(doc *object.Document) error {
	for ref, obj := range doc.Objects {
		if _, exists := m.objects[ref]; exists {
			return fmt.Errorf("object %s already present in merged store", ref)
		}
		if ref.Num >= m.nextObjectNumber {
			return fmt.Errorf("object %s outside allocated range (next free %d)", ref, m.nextObjectNumber)
		}
		m.objects[ref] = obj
	}
	return nil
}

// finalize builds the fresh page tree and catalog over the accumulated
// page list and returns the document ready for serialization. Every
// collected page is re-parented onto the new root Pages node; a page
// keeping its origin document's parent would break attribute inheritance
// for renderers.
func (m *mergedDocument) finalize(version string) (*object.Document, error) {
	if len(m.pages) == 0 {
		return nil, errors.New("no pages to merge")
	}

	pagesRef := m.alloc()
	kids := object.NewArray()
	for _, entry := range m.pages {
		kids.Append(object.Reference{R: entry.ref})
	}
	pagesDict := object.NewDict()
	pagesDict.Set("Type", object.Name{Val: "Pages"})
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", object.Integer(int64(len(m.pages))))

	for _, entry := range m.pages {
		page, ok := m.objects[entry.ref].(*object.Dict)
		if !ok {
			return nil, fmt.Errorf("page %s is not a dictionary", entry.ref)
		}
		page.Set("Parent", object.Reference{R: pagesRef})
		page.Set("Type", object.Name{Val: "Page"})
	}
	m.objects[pagesRef] = pagesDict

	catalogRef := m.alloc()
	catalog := object.NewDict()
	catalog.Set("Type", object.Name{Val: "Catalog"})
	catalog.Set("Pages", object.Reference{R: pagesRef})
	m.objects[catalogRef] = catalog

	trailer := object.NewDict()
	trailer.Set("Root", object.Reference{R: catalogRef})

	return &object.Document{
		Objects: m.objects,
		Trailer: trailer,
		Version: version,
	}, nil
}
