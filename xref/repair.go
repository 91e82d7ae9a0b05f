package xref

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/puzzithinker/pdfmerge/object"
	"github.com/puzzithinker/pdfmerge/recovery"
	"github.com/puzzithinker/pdfmerge/scanner"
)

// Repair rebuilds a cross-reference table by scanning the whole file for
// object headers, ignoring the declared xref structure entirely. The
// document parser falls back to it when declared offsets turn out to be
// wrong.
func Repair(ctx context.Context, r io.ReaderAt) (*Table, error) {
	return repair(ctx, readAll(r))
}

// repair scans for "N G obj" headers and trailer dictionaries. The last
// occurrence of an object number wins, matching how incremental updates
// shadow older revisions, and the last trailer seen is kept.
func repair(ctx context.Context, data []byte) (*Table, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{Recovery: &recovery.Lenient{}})
	entries := make(map[int]entry)
	var trailer *object.Dict

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue // scanner made progress; keep hunting
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			tokGen, err := s.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil || tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
				continue
			}
			tokObj, err := s.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err == nil && tokObj.Type == scanner.TokenKeyword && tokObj.Str == "obj" {
				entries[int(tok.Int)] = entry{offset: tok.Pos, gen: int(tokGen.Int)}
				continue
			}
			// The generation candidate may itself start an object header.
			if err := s.SeekTo(tokGen.Pos); err != nil {
				return nil, err
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			if obj, err := readObject(s); err == nil {
				if dict, ok := obj.(*object.Dict); ok {
					trailer = dict
				}
			}
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("repair found no objects")
	}
	if trailer == nil {
		trailer = object.NewDict()
		trailer.Set("Size", object.Integer(int64(len(entries))))
	}
	return &Table{entries: entries, trailer: trailer}, nil
}
