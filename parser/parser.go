// Package parser turns the raw bytes of one PDF into an object.Document:
// it sniffs the header, resolves the cross-reference structure, loads
// every in-use indirect object, and flags declared encryption. It checks
// no semantic structure beyond that; page-tree integrity is judged by the
// merge engine.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/puzzithinker/pdfmerge/object"
	"github.com/puzzithinker/pdfmerge/observability"
	"github.com/puzzithinker/pdfmerge/recovery"
	"github.com/puzzithinker/pdfmerge/security"
	"github.com/puzzithinker/pdfmerge/xref"
)

// ErrNotAPDF reports input that does not begin with a %PDF header.
var ErrNotAPDF = errors.New("not a PDF file")

type Config struct {
	Limits   security.Limits
	Recovery recovery.Strategy
	Logger   observability.Logger
}

// DocumentParser builds an object.Document from xref tables and the
// object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.OrDefaults()
	if cfg.Recovery == nil {
		cfg.Recovery = recovery.Strict{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*object.Document, error) {
	version := detectHeaderVersion(r)
	if version == "" {
		return nil, ErrNotAPDF
	}

	table, err := xref.Resolve(ctx, r, xref.Config{
		MaxXRefDepth: p.cfg.Limits.MaxXRefDepth,
		Recovery:     p.cfg.Recovery,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}

	doc, err := p.loadAll(ctx, r, table, version)
	if err == nil {
		return doc, nil
	}

	// Declared offsets can lie even when the table parses. If the
	// strategy tolerates it, rebuild the table from the file contents
	// and try once more.
	if p.cfg.Recovery.OnError(err, recovery.Location{Component: "parser"}) == recovery.ActionFail {
		return nil, err
	}
	p.cfg.Logger.Warn("document load failed, rebuilding xref", observability.Error("cause", err))
	repaired, rerr := xref.Repair(ctx, r)
	if rerr != nil {
		return nil, err
	}
	return p.loadAll(ctx, r, repaired, version)
}

func (p *DocumentParser) loadAll(ctx context.Context, r io.ReaderAt, table *xref.Table, version string) (*object.Document, error) {
	loader := newLoader(r, table, p.cfg.Limits, p.cfg.Recovery)

	doc := object.NewDocument()
	doc.Version = version
	if trailer := table.Trailer(); trailer != nil {
		doc.Trailer = trailer
	}

	for _, num := range table.Objects() {
		if num == 0 {
			continue // head of the free list
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, gen, ok := table.Lookup(num)
		if !ok {
			continue
		}
		ref := object.ObjectRef{Num: num, Gen: gen}
		obj, err := loader.load(num)
		if err != nil {
			return nil, fmt.Errorf("load object %d: %w", num, err)
		}
		doc.Objects[ref] = obj
	}

	if _, ok := doc.Trailer.Get("Encrypt"); ok {
		doc.Encrypted = true
	}

	p.cfg.Logger.Debug("document parsed",
		observability.String("version", doc.Version),
		observability.Int(observability.MetricObjectCount, len(doc.Objects)))
	return doc, nil
}

// detectHeaderVersion reads the %PDF-x.y header line. PDF allows junk
// before the header within the first 1024 bytes.
func detectHeaderVersion(r io.ReaderAt) string {
	buf := make([]byte, 1024)
	n, err := r.ReadAt(buf, 0)
	if n == 0 && err != nil {
		return ""
	}
	head := string(buf[:n])
	idx := strings.Index(head, "%PDF-")
	if idx < 0 {
		return ""
	}
	rest := head[idx+len("%PDF-"):]
	end := strings.IndexAny(rest, "\r\n \t")
	if end < 0 {
		end = len(rest)
	}
	version := strings.TrimSpace(rest[:end])
	if version == "" {
		return ""
	}
	return version
}
