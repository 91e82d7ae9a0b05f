package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/puzzithinker/pdfmerge/object"
	"github.com/puzzithinker/pdfmerge/recovery"
)

// pdfBuilder assembles a classic-xref PDF in memory, tracking object
// offsets as they are emitted.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func newPDFBuilder(version string) *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int)}
	fmt.Fprintf(&b.buf, "%%PDF-%s\n", version)
	return b
}

func (b *pdfBuilder) obj(num int, body string) {
	b.offsets[num] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) finish(size int, trailerExtra string) []byte {
	xrefOffset := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", size)
	b.buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < size; num++ {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", b.offsets[num])
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\n", size, trailerExtra)
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return b.buf.Bytes()
}

func buildMinimalPDF() []byte {
	b := newPDFBuilder("1.7")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	return b.finish(4, "")
}

func TestParseMinimalDocument(t *testing.T) {
	p := NewDocumentParser(Config{})
	doc, err := p.Parse(context.Background(), bytes.NewReader(buildMinimalPDF()))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Version != "1.7" {
		t.Fatalf("version = %q", doc.Version)
	}
	if len(doc.Objects) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(doc.Objects))
	}
	cat, ok := doc.Catalog()
	if !ok {
		t.Fatalf("catalog missing")
	}
	if typ, _ := cat.GetName("Type"); typ != "Catalog" {
		t.Fatalf("catalog Type = %q", typ)
	}
	if doc.Encrypted {
		t.Fatalf("plain document flagged encrypted")
	}
}

func TestParseJunkBeforeHeader(t *testing.T) {
	data := append([]byte("garbage prefix\n"), buildMinimalPDF()...)
	// Offsets in the xref table are now shifted, so only the lenient
	// path can load this file.
	p := NewDocumentParser(Config{Recovery: &recovery.Lenient{}})
	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Version != "1.7" {
		t.Fatalf("version not detected behind junk: %q", doc.Version)
	}
}

func TestParseRejectsNonPDF(t *testing.T) {
	p := NewDocumentParser(Config{})
	_, err := p.Parse(context.Background(), bytes.NewReader([]byte("plain text, nothing else")))
	if !errors.Is(err, ErrNotAPDF) {
		t.Fatalf("expected ErrNotAPDF, got %v", err)
	}
}

func TestParseStreamWithDirectLength(t *testing.T) {
	b := newPDFBuilder("1.5")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	payload := "q 0 0 100 100 re f Q"
	b.obj(3, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(payload), payload))
	data := b.finish(4, "")

	p := NewDocumentParser(Config{})
	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	stream, ok := doc.Objects[object.ObjectRef{Num: 3}].(*object.Stream)
	if !ok {
		t.Fatalf("object 3 is %T, want stream", doc.Objects[object.ObjectRef{Num: 3}])
	}
	if string(stream.Data) != payload {
		t.Fatalf("stream payload = %q, want %q", stream.Data, payload)
	}
}

func TestParseStreamWithIndirectLength(t *testing.T) {
	b := newPDFBuilder("1.5")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	payload := "BT /F1 12 Tf ET"
	b.obj(3, fmt.Sprintf("<< /Length 4 0 R >>\nstream\n%s\nendstream", payload))
	b.obj(4, fmt.Sprintf("%d", len(payload)))
	data := b.finish(5, "")

	p := NewDocumentParser(Config{})
	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	stream, ok := doc.Objects[object.ObjectRef{Num: 3}].(*object.Stream)
	if !ok {
		t.Fatalf("object 3 is %T, want stream", doc.Objects[object.ObjectRef{Num: 3}])
	}
	if string(stream.Data) != payload {
		t.Fatalf("stream payload = %q, want %q", stream.Data, payload)
	}
}

func TestParseFlagsEncryptedDocument(t *testing.T) {
	b := newPDFBuilder("1.6")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [] /Count 0 >>")
	b.obj(3, "<< /Filter /Standard /V 2 /R 3 /Length 128 >>")
	data := b.finish(4, " /Encrypt 3 0 R")

	p := NewDocumentParser(Config{})
	doc, err := p.Parse(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !doc.Encrypted {
		t.Fatalf("Encrypt in trailer not flagged")
	}
}

func TestParseRepairsLyingOffsets(t *testing.T) {
	data := buildMinimalPDF()
	// Shift every declared offset by prepending bytes after the header,
	// leaving the table itself intact but wrong.
	corrupted := bytes.Replace(data, []byte("1 0 obj"), []byte("% pad\n1 0 obj"), 1)

	p := NewDocumentParser(Config{})
	if _, err := p.Parse(context.Background(), bytes.NewReader(corrupted)); err == nil {
		t.Fatalf("strict parse should fail on lying offsets")
	}

	p = NewDocumentParser(Config{Recovery: &recovery.Lenient{}})
	doc, err := p.Parse(context.Background(), bytes.NewReader(corrupted))
	if err != nil {
		t.Fatalf("lenient parse failed: %v", err)
	}
	if len(doc.Objects) != 3 {
		t.Fatalf("repair recovered %d objects, want 3", len(doc.Objects))
	}
}

func TestParseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewDocumentParser(Config{})
	if _, err := p.Parse(ctx, bytes.NewReader(buildMinimalPDF())); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
