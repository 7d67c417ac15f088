package bytes

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a wrapper around []byte that encodes data as hexadecimal strings
// for use in JSON and TOML.
type HexBytes []byte

// MarshalText encodes a HexBytes value as hexadecimal digits.
// This method is used by json.Marshal.
func (bz HexBytes) MarshalText() ([]byte, error) {
	enc := hex.EncodeToString([]byte(bz))
	return []byte(strings.ToUpper(enc)), nil
}

// UnmarshalText handles decoding of HexBytes from JSON strings.
// This method is used by json.Unmarshal.
func (bz *HexBytes) UnmarshalText(data []byte) error {
	input := string(data)
	switch input {
	case "null":
		return nil
	case "":
		*bz = HexBytes{}
		return nil
	}
	dec, err := hex.DecodeString(input)
	if err != nil {
		return err
	}
	*bz = HexBytes(dec)
	return nil
}

// Bytes fulfills various interfaces in light-client, etc...
func (bz HexBytes) Bytes() []byte {
	return bz
}

func (bz HexBytes) String() string {
	return strings.ToUpper(hex.EncodeToString(bz))
}

// Format writes either address of 0th element in a slice in base 16 notation,
// with leading 0x (%p), or casts HexBytes to bytes and writes as hexadecimal
// string to s.
func (bz HexBytes) Format(s fmt.State, verb rune) {
	switch verb {
	case 'p':
		s.Write([]byte(fmt.Sprintf("%p", bz)))
	default:
		s.Write([]byte(fmt.Sprintf("%X", []byte(bz))))
	}
}

func (bz HexBytes) Equal(b []byte) bool {
	return bytes.Equal(bz, b)
}

// ParseHexBytes decodes a hex string (upper or lower case).
func ParseHexBytes(s string) (HexBytes, error) {
	var bz HexBytes
	if err := bz.UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	return bz, nil
}

// Fingerprint returns the first 6 bytes of a byte slice.
// If the slice is less than 6 bytes, the fingerprint
// contains trailing zeroes.
func Fingerprint(slice []byte) []byte {
	fingerprint := make([]byte, 6)
	copy(fingerprint, slice)
	return fingerprint
}
