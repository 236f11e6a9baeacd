package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncodings is the fallback order used when none is configured.
var DefaultEncodings = []string{"utf-8", "latin-1"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// errInvalidUTF8 is returned by the strict UTF-8 decoder.
var errInvalidUTF8 = errors.New("invalid utf-8 byte sequence")

// decoder turns raw file bytes into text, failing when the bytes are not
// valid under the encoding.
type decoder func([]byte) (string, error)

var decoders = map[string]decoder{
	"utf-8":        decodeUTF8,
	"utf-8-sig":    decodeUTF8,
	"utf-16":       xtext(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)),
	"latin-1":      xtext(charmap.ISO8859_1),
	"windows-1252": xtext(charmap.Windows1252),
	"iso-8859-15":  xtext(charmap.ISO8859_15),
}

var encodingAliases = map[string]string{
	"utf8":       "utf-8",
	"utf_8":      "utf-8",
	"utf-8-bom":  "utf-8-sig",
	"utf16":      "utf-16",
	"latin1":     "latin-1",
	"latin_1":    "latin-1",
	"iso-8859-1": "latin-1",
	"iso8859-1":  "latin-1",
	"cp1252":     "windows-1252",
	"latin-9":    "iso-8859-15",
}

// NormalizeEncoding maps a user-supplied encoding name to its canonical form.
// It reports false when the encoding is not supported.
func NormalizeEncoding(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := encodingAliases[n]; ok {
		n = a
	}
	_, ok := decoders[n]
	return n, ok
}

// SupportedEncodings lists the canonical encoding names.
func SupportedEncodings() []string {
	return []string{"utf-8", "utf-8-sig", "utf-16", "latin-1", "windows-1252", "iso-8859-15"}
}

func decodeUTF8(b []byte) (string, error) {
	b = bytes.TrimPrefix(b, utf8BOM)
	if !utf8.Valid(b) {
		return "", errInvalidUTF8
	}
	return string(b), nil
}

func xtext(enc encoding.Encoding) decoder {
	return func(b []byte) (string, error) {
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("decode: %w", err)
		}
		return string(out), nil
	}
}
