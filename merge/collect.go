package merge

import (
	"fmt"

	"github.com/puzzithinker/pdfmerge/object"
)

// inheritable attributes flow from Pages nodes down to leaf pages. The
// collector materializes them onto each page that lacks its own value,
// because re-parenting onto the fresh root would otherwise lose them.
var inheritableAttrs = []string{"MediaBox", "CropBox", "Rotate", "Resources"}

// collectPages walks doc's page tree from the catalog and returns the
// leaf page identifiers in reading order. Storage order carries no
// meaning; only the tree defines how pages are sequenced. The walk
// refuses cyclic trees and trees whose root /Count disagrees with the
// pages actually reached.
func collectPages(doc *object.Document) ([]object.ObjectRef, error) {
	catalog, ok := doc.Catalog()
	if !ok {
		return nil, fmt.Errorf("%w: no document catalog", ErrCorruptedStructure)
	}
	rootObj, ok := catalog.Get("Pages")
	if !ok {
		return nil, fmt.Errorf("%w: catalog has no Pages entry", ErrCorruptedStructure)
	}
	rootRef, ok := rootObj.(object.Reference)
	if !ok {
		return nil, fmt.Errorf("%w: catalog Pages is not an indirect reference", ErrCorruptedStructure)
	}

	w := &treeWalker{doc: doc, visited: make(map[object.ObjectRef]bool)}
	pages, err := w.walk(rootRef.R, nil)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrCorruptedStructure)
	}

	if root, ok := doc.ResolveDict(rootObj); ok {
		if declared, ok := root.GetInt("Count"); ok && root.HasKey("Kids") {
			if declared != int64(len(pages)) {
				return nil, fmt.Errorf("%w: page tree declares %d pages but %d were found",
					ErrCorruptedStructure, declared, len(pages))
			}
		}
	}
	return pages, nil
}

type treeWalker struct {
	doc     *object.Document
	visited map[object.ObjectRef]bool
}

// walk performs a pre-order descent through Kids. inherited carries the
// attribute values accumulated on the path from the root.
func (w *treeWalker) walk(ref object.ObjectRef, inherited map[string]object.Object) ([]object.ObjectRef, error) {
	if w.visited[ref] {
		return nil, fmt.Errorf("%w: page tree node %s appears twice", ErrCorruptedStructure, ref)
	}
	w.visited[ref] = true

	node, ok := w.doc.Objects[ref]
	if !ok {
		return nil, fmt.Errorf("%w: page tree references missing object %s", ErrCorruptedStructure, ref)
	}
	dict, ok := node.(*object.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: page tree node %s is not a dictionary", ErrCorruptedStructure, ref)
	}

	for _, key := range inheritableAttrs {
		if val, ok := dict.Get(key); ok {
			if inherited == nil {
				inherited = make(map[string]object.Object, len(inheritableAttrs))
			} else {
				inherited = cloneAttrs(inherited)
			}
			inherited[key] = val
		}
	}

	// A node without Kids is a leaf page even when /Type is missing;
	// damaged files omit it often enough that the walk infers it.
	nodeType, _ := dict.GetName("Type")
	if nodeType == "Page" || (nodeType != "Pages" && !dict.HasKey("Kids")) {
		for key, val := range inherited {
			if _, own := dict.Get(key); !own {
				dict.Set(key, val)
			}
		}
		return []object.ObjectRef{ref}, nil
	}

	kidsObj, ok := dict.Get("Kids")
	if !ok {
		return nil, fmt.Errorf("%w: Pages node %s has no Kids", ErrCorruptedStructure, ref)
	}
	kids, ok := w.doc.ResolveArray(kidsObj)
	if !ok {
		return nil, fmt.Errorf("%w: Kids of %s is not an array", ErrCorruptedStructure, ref)
	}

	var pages []object.ObjectRef
	for _, kid := range kids.Items {
		kidRef, ok := kid.(object.Reference)
		if !ok {
			return nil, fmt.Errorf("%w: Kids of %s holds a direct object", ErrCorruptedStructure, ref)
		}
		sub, err := w.walk(kidRef.R, inherited)
		if err != nil {
			return nil, err
		}
		pages = append(pages, sub...)
	}
	return pages, nil
}

func cloneAttrs(attrs map[string]object.Object) map[string]object.Object {
	out := make(map[string]object.Object, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
