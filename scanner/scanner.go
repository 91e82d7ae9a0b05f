// Package scanner tokenizes PDF syntax from an io.ReaderAt. It buffers the
// input in fixed-size windows so object loading can seek to xref offsets
// without reading the whole file up front.
package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/puzzithinker/pdfmerge/recovery"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // integer or real
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenRef                      // indirect reference '5 0 R'
	TokenStream                   // stream payload following the 'stream' keyword
	TokenKeyword                  // obj, endobj, trailer, '>>', ']', ...
)

// Token is one lexical element. The populated payload field depends on
// Type: Str for names and keywords, Int/Float for numbers, Bytes for
// strings and stream payloads, Int+Gen for references.
type Token struct {
	Type  TokenType
	Str   string
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Bytes []byte
	Gen   int
	Pos   int64
}

type Config struct {
	MaxStringLength int64
	MaxStreamLength int64
	MaxStreamScan   int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

// Scanner walks the input token by token. SeekTo repositions it at an
// absolute byte offset, as object loading jumps between xref offsets.
type Scanner struct {
	reader        io.ReaderAt
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
}

func New(r io.ReaderAt, cfg Config) *Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &Scanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *Scanner) Position() int64 { return s.pos }

func (s *Scanner) SeekTo(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if err := s.ensure(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.data)) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	return nil
}

// SetNextStreamLength tells the scanner how many payload bytes the next
// 'stream' keyword carries (from the stream dictionary's Length). A
// negative value clears the hint and falls back to endstream scanning.
func (s *Scanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *Scanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	if err := s.ensure(s.pos); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenKeyword, Str: "]", Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isNumberStart(c) {
		return s.scanNumberOrRef()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	s.pos++
	return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
}

func (s *Scanner) skipWSAndComments() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for {
				s.pos++
				if err := s.ensure(s.pos); err != nil {
					return err
				}
				if isEOL(s.data[s.pos]) {
					break
				}
			}
			continue
		}
		return nil
	}
}

// ensure grows the window until offset n is readable, or reports io.EOF.
func (s *Scanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	n, err := s.reader.ReadAt(buf, int64(len(s.data)))
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	switch {
	case errors.Is(err, io.EOF):
		s.eof = true
		return nil
	case err != nil:
		return err
	case n == 0:
		s.eof = true
	}
	return nil
}

func (s *Scanner) peekAhead(n int64) byte {
	if err := s.ensure(s.pos + n); err != nil {
		return 0
	}
	return s.data[s.pos+n]
}

// atEnd reports whether the current position has run off the buffered
// input with nothing left to load.
func (s *Scanner) atEnd() bool {
	return s.ensure(s.pos) != nil
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // '/'
	var out bytes.Buffer
	for !s.atEnd() {
		c := s.data[s.pos]
		if isDelimiter(c) || isWhitespace(c) {
			break
		}
		if c == '#' {
			s.pos++
			a := s.hexNibble()
			b := s.hexNibble()
			out.WriteByte(a<<4 | b)
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *Scanner) hexNibble() byte {
	if s.atEnd() {
		return 0
	}
	c := s.data[s.pos]
	s.pos++
	return fromHex(c)
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for depth > 0 {
		if s.atEnd() {
			if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
				return Token{}, err
			}
			break
		}
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if s.atEnd() {
				continue
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r':
				s.pos++
				if !s.atEnd() && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2 && !s.atEnd(); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				s.pos++
			}
		case '(':
			depth++
			buf.WriteByte(c)
			s.pos++
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(c)
			}
			s.pos++
		default:
			buf.WriteByte(c)
			s.pos++
		}
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, errors.New("literal string too long")
		}
	}
	return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // '<'
	var hexbuf []byte
	closed := false
	for !s.atEnd() {
		c := s.data[s.pos]
		if c == '>' {
			s.pos++
			closed = true
			break
		}
		if isWhitespace(c) {
			s.pos++
			continue
		}
		hexbuf = append(hexbuf, c)
		s.pos++
		if s.cfg.MaxStringLength > 0 && int64(len(hexbuf)/2) > s.cfg.MaxStringLength {
			return Token{}, errors.New("hex string too long")
		}
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0')
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
	}
	return Token{Type: TokenString, Bytes: out, Pos: start}, nil
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	var buf bytes.Buffer
	for !s.atEnd() {
		c := s.data[s.pos]
		if isDelimiter(c) || isWhitespace(c) {
			break
		}
		buf.WriteByte(c)
		s.pos++
	}
	kw := buf.String()
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

func (s *Scanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		s.pos++
		return Token{}, errors.New("invalid number")
	}

	// "N G R" is an indirect reference; look ahead for two more tokens
	// and back off if the pattern does not complete.
	if s.skipWSAndComments() == nil {
		secondStart := s.pos
		if num2 := s.scanNumberString(); num2 != "" {
			if s.skipWSAndComments() == nil && !s.atEnd() && s.data[s.pos] == 'R' && s.isRefTerminator(s.pos+1) {
				n1, err1 := strconv.Atoi(num1)
				n2, err2 := strconv.Atoi(num2)
				if err1 == nil && err2 == nil {
					s.pos++
					return Token{Type: TokenRef, Int: int64(n1), Gen: n2, Pos: start}, nil
				}
			}
			s.pos = secondStart
		}
	}

	if i, err := strconv.ParseInt(num1, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(num1, 64)
	if err != nil {
		return Token{}, errors.New("invalid number: " + num1)
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

// isRefTerminator reports whether the byte after a candidate 'R' ends the
// keyword, so that 'R' inside names like 'Rect' is not misread.
func (s *Scanner) isRefTerminator(off int64) bool {
	if s.ensure(off) != nil {
		return true
	}
	c := s.data[off]
	return isDelimiter(c) || isWhitespace(c)
}

func (s *Scanner) scanNumberString() string {
	start := s.pos
	var buf bytes.Buffer
	seenDigit := false
	for !s.atEnd() {
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			buf.WriteByte(c)
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return buf.String()
}

// scanStream captures the raw payload between 'stream' and 'endstream'.
// With a length hint the payload is taken verbatim; without one the
// scanner searches for an endstream marker on a token boundary.
func (s *Scanner) scanStream(start int64) (Token, error) {
	if s.atEnd() {
		return Token{}, errors.New("stream missing data")
	}
	// PDF 7.3.8: the stream keyword is followed by CRLF or LF.
	switch s.data[s.pos] {
	case '\r':
		s.pos++
		if !s.atEnd() && s.data[s.pos] == '\n' {
			s.pos++
		}
	case '\n':
		s.pos++
	default:
		if err := s.recover(errors.New("stream keyword not followed by EOL"), "stream"); err != nil {
			return Token{}, err
		}
	}
	dataStart := s.pos
	hint := s.nextStreamLen
	s.nextStreamLen = -1

	if hint >= 0 {
		if s.cfg.MaxStreamLength > 0 && hint > s.cfg.MaxStreamLength {
			return Token{}, errors.New("stream too long")
		}
		if err := s.ensure(dataStart + hint - 1); err != nil {
			if err := s.recover(errors.New("stream ends before declared length"), "stream"); err != nil {
				return Token{}, err
			}
		}
		end := dataStart + hint
		if end > int64(len(s.data)) {
			end = int64(len(s.data))
		}
		payload := append([]byte(nil), s.data[dataStart:end]...)
		s.pos = end
		s.consumeEndstream()
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}

	needle := []byte("endstream")
	for i := dataStart; ; i++ {
		if err := s.ensure(i + int64(len(needle)) - 1); err != nil {
			// Ran out of input without a marker: everything left is payload.
			if rerr := s.recover(errors.New("endstream not found"), "stream"); rerr != nil {
				return Token{}, rerr
			}
			payload := append([]byte(nil), s.data[dataStart:]...)
			s.pos = int64(len(s.data))
			return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
		}
		if s.cfg.MaxStreamScan > 0 && i-dataStart > s.cfg.MaxStreamScan {
			return Token{}, errors.New("endstream not found within scan limit")
		}
		if s.data[i] != 'e' || !bytes.HasPrefix(s.data[i:], needle) {
			continue
		}
		breakBefore := i == dataStart || isWhitespace(s.data[i-1])
		followOK := s.ensure(i+int64(len(needle))) != nil || isDelimiter(s.data[i+int64(len(needle))]) || isWhitespace(s.data[i+int64(len(needle))])
		if !breakBefore || !followOK {
			continue
		}
		end := i
		// The EOL before the marker belongs to the syntax, not the payload.
		if end > dataStart && s.data[end-1] == '\n' {
			end--
		}
		if end > dataStart && s.data[end-1] == '\r' {
			end--
		}
		payload := append([]byte(nil), s.data[dataStart:end]...)
		if s.cfg.MaxStreamLength > 0 && int64(len(payload)) > s.cfg.MaxStreamLength {
			return Token{}, errors.New("stream too long")
		}
		s.pos = i + int64(len(needle))
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}
}

// consumeEndstream skips the optional EOL and the endstream keyword after
// a hinted payload read.
func (s *Scanner) consumeEndstream() {
	if !s.atEnd() && s.data[s.pos] == '\r' {
		s.pos++
	}
	if !s.atEnd() && s.data[s.pos] == '\n' {
		s.pos++
	}
	needle := []byte("endstream")
	if s.ensure(s.pos+int64(len(needle))-1) == nil && bytes.HasPrefix(s.data[s.pos:], needle) {
		s.pos += int64(len(needle))
		return
	}
	// Length lied; resynchronize on the next marker.
	if idx := bytes.Index(s.data[s.pos:], needle); idx >= 0 {
		s.pos += int64(idx + len(needle))
	}
}

func (s *Scanner) recover(err error, where string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	action := s.cfg.Recovery.OnError(err, recovery.Location{
		ByteOffset: s.pos,
		Component:  "scanner:" + where,
	})
	if action == recovery.ActionFail {
		return err
	}
	return nil
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isDelimiter(c) && !isWhitespace(c) }

func isNumberStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}
