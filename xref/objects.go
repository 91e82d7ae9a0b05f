package xref

import (
	"errors"

	"github.com/puzzithinker/pdfmerge/object"
	"github.com/puzzithinker/pdfmerge/scanner"
)

// Token-level object reading, duplicated from the document parser in the
// reduced form xref needs: trailer dictionaries never contain streams.

type tokenReader struct {
	s   *scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func readObject(s *scanner.Scanner) (object.Object, error) {
	return parseObject(&tokenReader{s: s})
}

func parseObject(tr *tokenReader) (object.Object, error) {
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
		return parseArray(tr)
	case scanner.TokenDict:
		return parseDict(tr)
	}
	return nil, errors.New("unexpected token")
}

func parseArray(tr *tokenReader) (object.Object, error) {
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
		item, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
	}
}

func parseDict(tr *tokenReader) (object.Object, error) {
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
			return nil, errors.New("expected name key in dictionary")
		}
		val, err := parseObject(tr)
		if err != nil {
			return nil, err
		}
		d.Set(tok.Str, val)
	}
}
