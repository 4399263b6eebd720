package packstore

import (
	"encoding/base64"
	"fmt"

	. "github.com/warpfork/go-errcat"

	"github.com/powersync-community/powergit/api"
)

/*
	Decodes a pack's base64 payload into raw packfile bytes.

	The fast path is the native decoder.  If it rejects the input, the
	manual decoder gets a second look: it tolerates embedded line breaks,
	which some sync transports insert into long payloads.  The two paths
	produce identical output for any input both accept.
*/
func DecodePackPayload(payload string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return raw, nil
	}
	raw, err := decodeBase64Manual(payload)
	if err != nil {
		return nil, Errorf(api.ErrDecode, "malformed pack payload: %s", err)
	}
	return raw, nil
}

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var b64Reverse = func() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(b64Alphabet); i++ {
		table[b64Alphabet[i]] = int8(i)
	}
	return table
}()

/*
	Byte-by-byte base64 decode of a binary string representation.
	Whitespace is skipped; '=' ends the data; any other byte outside the
	alphabet is an error, as is a dangling single sextet.
*/
func decodeBase64Manual(payload string) ([]byte, error) {
	out := make([]byte, 0, len(payload)/4*3)
	var acc uint32
	var nbits uint
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		switch c {
		case '\r', '\n', '\t', ' ':
			continue
		case '=':
			// padding: remaining bits must be zero fill only.
			return out, nil
		}
		v := b64Reverse[c]
		if v < 0 {
			return nil, fmt.Errorf("invalid base64 byte 0x%02x at offset %d", c, i)
		}
		acc = acc<<6 | uint32(v)
		nbits += 6
		if nbits >= 8 {
			nbits -= 8
			out = append(out, byte(acc>>nbits))
		}
	}
	if nbits >= 6 {
		return nil, fmt.Errorf("truncated base64 payload")
	}
	return out, nil
}
