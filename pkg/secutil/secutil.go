// Package secutil provides the plain-buffer utilities that surround the
// guarded container: hex text conversion and strict constant-time
// comparison. These operate on ordinary byte slices and are independent of
// the guard package's lock gate.
package secutil

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned by Compare when the operands differ in
// length. Unlike guard.Buffer.Equal, which defines unequal lengths as
// simply not equal, strict comparison of fixed-size values (MACs, digests,
// derived keys) treats a length mismatch as a usage error worth surfacing.
var ErrLengthMismatch = errors.New("secutil: buffers differ in length")

// EncodeHex returns b encoded as lowercase hexadecimal text.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex decodes hexadecimal text into bytes. Odd-length input or a
// non-hex digit is an error.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("secutil: invalid hex input: %w", err)
	}
	return b, nil
}

// Compare reports whether a and b hold identical bytes, taking time
// dependent only on their length. Operands of different length return
// ErrLengthMismatch before any bytes are examined.
func Compare(a, b []byte) (bool, error) {
	if len(a) != len(b) {
		return false, ErrLengthMismatch
	}
	return subtle.ConstantTimeCompare(a, b) == 1, nil
}
