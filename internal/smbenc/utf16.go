package smbenc

import (
	"encoding/hex"
	"errors"
	"unicode/utf16"
)

// ErrInvalidUTF16 is returned for odd-length input or unpaired surrogates.
var ErrInvalidUTF16 = errors.New("smbenc: invalid utf-16le")

func EncodeString(s string) []byte {
	if s == "" {
		return nil
	}
	ws := utf16.Encode([]rune(s))
	bs := make([]byte, len(ws)*2)
	for i, w := range ws {
		le.PutUint16(bs[2*i:], w)
	}
	return bs
}

func EncodedStringLen(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 4
		} else {
			n += 2
		}
	}
	return n
}

// DecodeString decodes UTF-16LE strictly.
func DecodeString(bs []byte) (string, error) {
	if len(bs)%2 != 0 {
		return "", ErrInvalidUTF16
	}
	ws := make([]uint16, len(bs)/2)
	for i := range ws {
		ws[i] = le.Uint16(bs[2*i:])
	}
	for i := 0; i < len(ws); i++ {
		switch {
		case utf16.IsSurrogate(rune(ws[i])):
			if ws[i] >= 0xdc00 || i+1 == len(ws) || ws[i+1] < 0xdc00 || ws[i+1] > 0xdfff {
				return "", ErrInvalidUTF16
			}
			i++
		}
	}
	return string(utf16.Decode(ws)), nil
}

// DecodeStringOrHex decodes UTF-16LE and falls back to lowercase hex when
// the bytes are not valid text.
func DecodeStringOrHex(bs []byte) string {
	s, err := DecodeString(bs)
	if err != nil {
		return hex.EncodeToString(bs)
	}
	return s
}
