package security

import "github.com/puzzithinker/pdfmerge/object"

// EncryptionInfo describes the protection declared by a document's
// Encrypt dictionary. It is purely informational: the merger refuses
// encrypted inputs and uses this to say how the file is protected.
type EncryptionInfo struct {
	Filter  string // security handler name, normally "Standard"
	V       int    // algorithm version
	R       int    // standard handler revision
	KeyBits int    // key length in bits
}

// String renders a short human-readable description for error messages.
func (e EncryptionInfo) String() string {
	algo := "unknown cipher"
	switch {
	case e.V >= 5:
		algo = "AES-256"
	case e.V == 4:
		algo = "AES-128"
	case e.V >= 1:
		algo = "RC4"
	}
	if e.Filter != "" && e.Filter != "Standard" {
		return e.Filter + " security handler"
	}
	return algo
}

// InspectEncryption reads the trailer's Encrypt entry, resolving it
// through the document store when indirect. It returns ok=false when the
// document declares no encryption.
func InspectEncryption(doc *object.Document) (EncryptionInfo, bool) {
	if doc == nil || doc.Trailer == nil {
		return EncryptionInfo{}, false
	}
	encObj, ok := doc.Trailer.Get("Encrypt")
	if !ok {
		return EncryptionInfo{}, false
	}
	info := EncryptionInfo{Filter: "Standard", V: 1, KeyBits: 40}
	dict, ok := doc.ResolveDict(encObj)
	if !ok {
		// Encrypt present but unreadable still means encrypted.
		return info, true
	}
	if f, ok := dict.GetName("Filter"); ok {
		info.Filter = f
	}
	if v, ok := dict.GetInt("V"); ok && v > 0 {
		info.V = int(v)
	}
	if r, ok := dict.GetInt("R"); ok {
		info.R = int(r)
	}
	switch {
	case info.V >= 5:
		info.KeyBits = 256
	case info.V == 4:
		info.KeyBits = 128
	}
	if n, ok := dict.GetInt("Length"); ok && n > 0 {
		info.KeyBits = int(n)
	}
	return info, true
}
