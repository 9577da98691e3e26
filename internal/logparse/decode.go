package logparse

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrBinaryInput is returned for content that is not text in any supported
// encoding.
var ErrBinaryInput = errors.New("input looks like binary data")

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// Decode converts raw input to text. A byte order mark selects UTF-8 or
// UTF-16 and is stripped; otherwise valid UTF-8 is used as is and anything
// else is read as Windows-1252, the usual encoding of IIS logs written on
// Western-locale servers.
func Decode(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	if bytes.HasPrefix(raw, bomUTF8) || bytes.HasPrefix(raw, bomUTF16BE) || bytes.HasPrefix(raw, bomUTF16LE) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err != nil {
			return "", fmt.Errorf("decode with byte order mark: %w", err)
		}
		return string(out), nil
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", ErrBinaryInput
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("decode windows-1252: %w", err)
	}
	return string(out), nil
}
