// Package xref locates and parses the cross-reference information of a
// PDF: the startxref pointer, classic xref tables including incremental
// updates chained through Prev, and the trailer dictionary. When the
// declared structure is unusable it can rebuild a table by scanning the
// whole file for object headers.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/puzzithinker/pdfmerge/object"
	"github.com/puzzithinker/pdfmerge/recovery"
	"github.com/puzzithinker/pdfmerge/scanner"
)

type entry struct {
	offset int64
	gen    int
}

// Table maps object numbers to byte offsets and carries the trailer
// assembled while walking the xref chain.
type Table struct {
	entries map[int]entry
	trailer *object.Dict
}

func (t *Table) Lookup(objNum int) (offset int64, gen int, found bool) {
	e, ok := t.entries[objNum]
	if !ok {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

// Objects returns the in-use object numbers in ascending order.
func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *Table) Trailer() *object.Dict { return t.trailer }

type Config struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
}

// Resolve parses the file's cross-reference structure. If the declared
// tables are broken and cfg.Recovery permits it, the whole-file repair
// scan is used instead.
func Resolve(ctx context.Context, r io.ReaderAt, cfg Config) (*Table, error) {
	data := readAll(r)
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}

	table, err := resolveDeclared(data, cfg)
	if err == nil {
		return table, nil
	}
	if cfg.Recovery != nil {
		action := cfg.Recovery.OnError(err, recovery.Location{Component: "xref"})
		if action != recovery.ActionFail {
			if repaired, rerr := repair(ctx, data); rerr == nil {
				return repaired, nil
			}
		}
	}
	return nil, err
}

func resolveDeclared(data []byte, cfg Config) (*Table, error) {
	offset, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}

	maxDepth := cfg.MaxXRefDepth
	if maxDepth <= 0 {
		maxDepth = 50
	}

	table := &Table{entries: make(map[int]entry)}
	seen := make(map[int64]bool)
	for depth := 0; ; depth++ {
		if depth >= maxDepth {
			return nil, errors.New("xref Prev chain too deep")
		}
		if offset <= 0 || offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}
		if seen[offset] {
			return nil, errors.New("xref Prev chain loops")
		}
		seen[offset] = true

		trailer, err := parseSection(data, offset, table)
		if err != nil {
			return nil, err
		}
		// Walking newest-to-oldest: the first trailer seen wins, and
		// entries already present are the more recent revisions.
		if table.trailer == nil {
			table.trailer = trailer
		}
		prev, ok := trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = prev
	}
	if len(table.entries) == 0 {
		return nil, errors.New("xref table is empty")
	}
	return table, nil
}

// findStartXRef locates the last startxref marker near the end of the
// file and returns the offset it names.
func findStartXRef(data []byte) (int64, error) {
	tail := data
	const window = 2048
	if len(tail) > window {
		tail = tail[len(tail)-window:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := tail[idx+len("startxref"):]
	for _, line := range strings.FieldsFunc(string(rest), func(r rune) bool { return r == '\r' || r == '\n' }) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		val, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse startxref: %w", err)
		}
		return val, nil
	}
	return 0, errors.New("startxref value missing")
}

// parseSection reads one xref section at offset into table and returns
// the trailer dictionary that follows it. Entries already present in the
// table are kept: they come from a newer incremental update.
func parseSection(data []byte, offset int64, table *Table) (*object.Dict, error) {
	s := newLineReader(data[offset:])
	first, err := s.line()
	if err != nil || strings.TrimSpace(first) != "xref" {
		return nil, errors.New("xref keyword not found at startxref offset")
	}
	for {
		header, err := s.line()
		if err != nil {
			return nil, errors.New("unexpected end of xref section")
		}
		header = strings.TrimSpace(header)
		if header == "" {
			continue
		}
		if strings.HasPrefix(header, "trailer") {
			dictStart := offset + s.lastStart + int64(strings.Index(s.lastLine, "trailer")+len("trailer"))
			return parseTrailer(data, dictStart)
		}
		parts := strings.Fields(header)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid xref subsection header: %q", header)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("parse xref subsection start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("parse xref subsection count: %w", err)
		}
		for i := 0; i < count; i++ {
			line, err := s.line()
			if err != nil {
				return nil, errors.New("unexpected end of xref subsection")
			}
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("invalid xref entry: %q", line)
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse xref entry offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("parse xref entry generation: %w", err)
			}
			if fields[2] != "n" {
				continue // free entry
			}
			num := startObj + i
			if _, exists := table.entries[num]; !exists {
				table.entries[num] = entry{offset: off, gen: gen}
			}
		}
	}
}

// parseTrailer parses the dictionary following the trailer keyword.
func parseTrailer(data []byte, offset int64) (*object.Dict, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	obj, err := readObject(s)
	if err != nil {
		return nil, fmt.Errorf("parse trailer: %w", err)
	}
	dict, ok := obj.(*object.Dict)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return dict, nil
}

// lineReader yields EOL-terminated lines and tracks the consumed length,
// which the xref grammar needs because entry lines are fixed-width.
type lineReader struct {
	data      []byte
	pos       int64
	lastStart int64
	lastLine  string
}

func newLineReader(data []byte) *lineReader { return &lineReader{data: data} }

func (l *lineReader) line() (string, error) {
	if l.pos >= int64(len(l.data)) {
		return "", io.EOF
	}
	start := l.pos
	for l.pos < int64(len(l.data)) && !isEOL(l.data[l.pos]) {
		l.pos++
	}
	line := string(l.data[start:l.pos])
	l.lastStart = start
	l.lastLine = line
	if l.pos < int64(len(l.data)) && l.data[l.pos] == '\r' {
		l.pos++
	}
	if l.pos < int64(len(l.data)) && l.data[l.pos] == '\n' {
		l.pos++
	}
	return line, nil
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = 64 * 1024
	tmp := make([]byte, chunk)
	for off := int64(0); ; off += chunk {
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil || n < chunk {
			break
		}
	}
	return buf.Bytes()
}
