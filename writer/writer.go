// Package writer serializes an object.Document to PDF syntax: header,
// body of indirect objects, cross-reference table, and trailer. The file
// variant writes through a temporary path and renames into place so a
// failure mid-write never leaves a half-written destination.
package writer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/puzzithinker/pdfmerge/object"
)

type Config struct {
	// Version overrides the document's declared version. Empty keeps
	// doc.Version, falling back to "1.5".
	Version string
}

type Writer struct {
	cfg Config
}

func New(cfg Config) *Writer { return &Writer{cfg: cfg} }

// Write serializes doc to out. The trailer must name a Root catalog.
func (w *Writer) Write(out io.Writer, doc *object.Document) error {
	if doc == nil || len(doc.Objects) == 0 {
		return errors.New("document has no objects")
	}
	if _, ok := doc.Trailer.Get("Root"); !ok {
		return errors.New("trailer has no Root entry")
	}

	version := w.cfg.Version
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = "1.5"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	// Binary marker comment so transfer tools treat the file as binary.
	buf.WriteString("%\xe2\xe3\xcf\xd3\n")

	ordered := make([]object.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	offsets := make(map[int]int64, len(ordered))
	for _, ref := range ordered {
		offsets[ref.Num] = int64(buf.Len())
		serializeIndirect(&buf, ref, doc.Objects[ref])
	}

	xrefOffset := buf.Len()
	maxNum := ordered[len(ordered)-1].Num
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := object.NewDict()
	for key, val := range doc.Trailer.KV {
		trailer.Set(key, val)
	}
	trailer.Set("Size", object.Integer(int64(maxNum+1)))
	buf.WriteString("trailer\n")
	serializePrimitive(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

// WriteFile serializes doc to path atomically: the bytes go to a
// temporary file in the destination directory which is fsynced and then
// renamed over path.
func (w *Writer) WriteFile(path string, doc *object.Document) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := w.Write(tmp, doc); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
