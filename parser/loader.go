package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/puzzithinker/pdfmerge/object"
	"github.com/puzzithinker/pdfmerge/recovery"
	"github.com/puzzithinker/pdfmerge/scanner"
	"github.com/puzzithinker/pdfmerge/security"
	"github.com/puzzithinker/pdfmerge/xref"
)

// loader reads individual indirect objects at their xref offsets. It
// keeps one scanner for sequential loads and spins up temporary scanners
// when a stream Length is itself an indirect reference, so the main
// cursor is never clobbered mid-object.
type loader struct {
	reader  io.ReaderAt
	table   *xref.Table
	limits  security.Limits
	rec     recovery.Strategy
	scanner *scanner.Scanner
}

func newLoader(r io.ReaderAt, table *xref.Table, limits security.Limits, rec recovery.Strategy) *loader {
	return &loader{reader: r, table: table, limits: limits, rec: rec}
}

func (l *loader) scannerConfig() scanner.Config {
	return scanner.Config{
		MaxStringLength: l.limits.MaxStringLength,
		MaxStreamLength: l.limits.MaxStreamLength,
		Recovery:        l.rec,
	}
}

func (l *loader) load(objNum int) (object.Object, error) {
	offset, gen, ok := l.table.Lookup(objNum)
	if !ok {
		return nil, errors.New("object not in xref table")
	}
	if l.scanner == nil {
		l.scanner = scanner.New(l.reader, l.scannerConfig())
	}
	return l.scanObject(l.scanner, objNum, offset, gen)
}

func (l *loader) scanObject(s *scanner.Scanner, objNum int, offset int64, gen int) (object.Object, error) {
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	tr := newTokenReader(s)

	// "<num> <gen> obj"
	tokNum, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokNum.Type != scanner.TokenNumber || !tokNum.IsInt || int(tokNum.Int) != objNum {
		return nil, fmt.Errorf("object header mismatch at offset %d: want object %d", offset, objNum)
	}
	tokGen, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt || int(tokGen.Int) != gen {
		return nil, fmt.Errorf("object %d: generation mismatch", objNum)
	}
	tokObj, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tokObj.Type != scanner.TokenKeyword || tokObj.Str != "obj" {
		return nil, fmt.Errorf("object %d: expected obj keyword", objNum)
	}

	obj, err := parseObject(tr, l.rec, objNum, gen)
	if err != nil {
		return nil, err
	}

	// A dictionary followed by a stream keyword is a stream object. The
	// payload length comes from the dictionary, resolving an indirect
	// Length through the xref table first.
	if dict, ok := obj.(*object.Dict); ok {
		hint, err := l.resolveStreamLength(dict)
		if err != nil {
			return nil, err
		}
		tr.setStreamLengthHint(hint)
		streamTok, err := tr.next()
		switch {
		case err != nil:
			tr.setStreamLengthHint(-1)
		case streamTok.Type == scanner.TokenStream:
			return object.NewStream(dict, streamTok.Bytes), nil
		default:
			tr.unread(streamTok)
		}
	}
	return obj, nil
}

func (l *loader) resolveStreamLength(dict *object.Dict) (int64, error) {
	val, ok := dict.Get("Length")
	if !ok {
		return -1, nil
	}
	switch v := val.(type) {
	case object.Number:
		if v.IsInt {
			return v.I, nil
		}
		return -1, nil
	case object.Reference:
		offset, gen, ok := l.table.Lookup(v.R.Num)
		if !ok {
			return -1, nil
		}
		tmp := scanner.New(l.reader, l.scannerConfig())
		obj, err := l.scanObject(tmp, v.R.Num, offset, gen)
		if err != nil {
			return 0, fmt.Errorf("resolve stream Length %v: %w", v.R, err)
		}
		if num, ok := obj.(object.Number); ok && num.IsInt {
			return num.I, nil
		}
		return 0, fmt.Errorf("stream Length %v is not an integer", v.R)
	default:
		return -1, nil
	}
}

// Token-stream parsing helpers. The xref package carries a reduced copy
// for trailer dictionaries; this one additionally knows stream hints and
// recovery for unterminated dictionaries.

type tokenReader struct {
	s   *scanner.Scanner
	buf []scanner.Token
}

func newTokenReader(s *scanner.Scanner) *tokenReader { return &tokenReader{s: s} }

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func (r *tokenReader) setStreamLengthHint(n int64) { r.s.SetNextStreamLength(n) }

func parseObject(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (object.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return object.Name{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return object.Integer(tok.Int), nil
		}
		return object.Real(tok.Float), nil
	case scanner.TokenBoolean:
		return object.Bool{V: tok.Bool}, nil
	case scanner.TokenNull:
		return object.Null{}, nil
	case scanner.TokenString:
		return object.Str(tok.Bytes), nil
	case scanner.TokenRef:
		return object.Ref(int(tok.Int), tok.Gen), nil
	case scanner.TokenArray:
		return parseArray(tr, rec, objNum, gen)
	case scanner.TokenDict:
		return parseDict(tr, rec, objNum, gen)
	case scanner.TokenKeyword:
		return nil, fmt.Errorf("unexpected keyword %q", tok.Str)
	}
	return nil, errors.New("unexpected token")
}

func parseArray(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (object.Object, error) {
	arr := object.NewArray()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		tr.unread(tok)
		item, err := parseObject(tr, rec, objNum, gen)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *tokenReader, rec recovery.Strategy, objNum, gen int) (object.Object, error) {
	d := object.NewDict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			if tok.Type == scanner.TokenKeyword && tok.Str == "endobj" {
				// Missing '>>'; a lenient strategy accepts what was read.
				err := errors.New("dictionary not closed before endobj")
				if rec.OnError(err, recovery.Location{ObjectNum: objNum, ObjectGen: gen, Component: "parser"}) != recovery.ActionFail {
					tr.unread(tok)
					return d, nil
				}
				return nil, err
			}
			return nil, errors.New("expected name key in dictionary")
		}
		val, err := parseObject(tr, rec, objNum, gen)
		if err != nil {
			return nil, err
		}
		d.Set(tok.Str, val)
	}
}
