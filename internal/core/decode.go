package core

// decode.go turns uploaded bytes into text.
//
// Listing exports come from many agency tools, so the encoding is not known
// up front. The Decoder tries a fixed priority list and keeps the first
// candidate that decodes every byte. Decoding is all-or-nothing per
// candidate: a candidate that would need a replacement character fails.

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncodings is the candidate order used when a schema names none.
var DefaultEncodings = []string{"UTF-8", "windows-1252", "ISO-8859-1"}

// EncodingError is returned when no candidate encoding decodes the input.
type EncodingError struct {
	Tried []string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: file could not be decoded as any of %s", strings.Join(e.Tried, ", "))
}

// candidate is one encoding in the priority list.
type candidate struct {
	name string
	enc  encoding.Encoding
}

// Decoder decodes bytes with the first encoding that accepts all of them.
type Decoder struct {
	candidates []candidate
}

// NewDecoder resolves IANA encoding names into a Decoder. Candidates are
// reported under their preferred MIME name, so "latin1" reads "ISO-8859-1".
// With no names, DefaultEncodings is used.
func NewDecoder(names ...string) (*Decoder, error) {
	if len(names) == 0 {
		names = DefaultEncodings
	}

	d := &Decoder{}
	for _, name := range names {
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
		}
		if enc == nil {
			return nil, fmt.Errorf("unsupported encoding %q", name)
		}
		d.candidates = append(d.candidates, candidate{name: displayName(enc, name), enc: enc})
	}
	return d, nil
}

// displayName prefers the MIME name, then the IANA name, then the
// configured one.
func displayName(enc encoding.Encoding, configured string) string {
	if name, err := ianaindex.MIME.Name(enc); err == nil && name != "" {
		return name
	}
	if name, err := ianaindex.IANA.Name(enc); err == nil && name != "" {
		return name
	}
	return configured
}

// Names returns the candidate names in priority order.
func (d *Decoder) Names() []string {
	names := make([]string, len(d.candidates))
	for i, c := range d.candidates {
		names[i] = c.name
	}
	return names
}

// Decode returns the decoded text and the name of the encoding used.
func (d *Decoder) Decode(data []byte) (string, string, error) {
	for _, c := range d.candidates {
		if text, ok := decodeStrict(c.enc, data); ok {
			return text, c.name, nil
		}
	}
	return "", "", &EncodingError{Tried: d.Names()}
}

// decodeStrict decodes data with enc and reports whether every byte had a
// defined mapping.
func decodeStrict(enc encoding.Encoding, data []byte) (string, bool) {
	if enc == unicode.UTF8 || enc == unicode.UTF8BOM {
		if !utf8.Valid(data) {
			return "", false
		}
		return strings.TrimPrefix(string(data), "\ufeff"), true
	}

	if cm, ok := enc.(*charmap.Charmap); ok {
		var b strings.Builder
		b.Grow(len(data))
		for _, c := range data {
			r := cm.DecodeByte(c)
			if r == utf8.RuneError || (cm == charmap.Windows1252 && isUnassigned1252(c)) {
				return "", false
			}
			b.WriteRune(r)
		}
		return b.String(), true
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(out) || strings.ContainsRune(string(out), utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// isUnassigned1252 reports the five byte values windows-1252 leaves undefined.
func isUnassigned1252(c byte) bool {
	switch c {
	case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
		return true
	}
	return false
}
