package writer

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/puzzithinker/pdfmerge/object"
)

func serializeIndirect(buf *bytes.Buffer, ref object.ObjectRef, obj object.Object) {
	fmt.Fprintf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	serializePrimitive(buf, obj)
	buf.WriteString("\nendobj\n")
}

func serializePrimitive(buf *bytes.Buffer, o object.Object) {
	switch v := o.(type) {
	case object.Name:
		writeName(buf, v.Val)
	case object.Number:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			// 'f' format: PDF numbers have no exponent notation.
			buf.WriteString(strconv.FormatFloat(v.F, 'f', -1, 64))
		}
	case object.Bool:
		if v.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case object.Null:
		buf.WriteString("null")
	case object.String:
		writeString(buf, v.Bytes)
	case object.Reference:
		fmt.Fprintf(buf, "%d %d R", v.R.Num, v.R.Gen)
	case *object.Array:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			serializePrimitive(buf, item)
		}
		buf.WriteByte(']')
	case *object.Dict:
		writeDict(buf, v)
	case *object.Stream:
		dict := v.Dict
		if dict == nil {
			dict = object.NewDict()
		}
		// Length always reflects the payload actually written.
		dict.Set("Length", object.Integer(int64(len(v.Data))))
		writeDict(buf, dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString("null")
	}
}

func writeDict(buf *bytes.Buffer, d *object.Dict) {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteString("<<")
	for _, k := range keys {
		buf.WriteByte('/')
		writeNameBody(buf, k)
		buf.WriteByte(' ')
		serializePrimitive(buf, d.KV[k])
	}
	buf.WriteString(">>")
}

func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	writeNameBody(buf, name)
}

// writeNameBody hex-escapes bytes that cannot appear literally in a name.
func writeNameBody(buf *bytes.Buffer, name string) {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= 0x20 || c > 0x7e || c == '#' || isDelimiterByte(c) {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

// writeString picks literal notation for printable payloads and hex
// notation otherwise, so copied binary strings (document IDs, dates with
// odd encodings) survive byte-exactly.
func writeString(buf *bytes.Buffer, data []byte) {
	printable := true
	for _, c := range data {
		if (c < 0x20 || c > 0x7e) && c != '\n' && c != '\r' && c != '\t' {
			printable = false
			break
		}
	}
	if !printable {
		buf.WriteByte('<')
		for _, c := range data {
			fmt.Fprintf(buf, "%02X", c)
		}
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, c := range data {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}

func isDelimiterByte(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
