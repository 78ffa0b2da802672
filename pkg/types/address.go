// Package types holds the fixed-width identifiers shared by every claimer
// component: Address, Hash and Payload.
package types

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte width of an Address.
const AddressLength = 20

// Address is a 20-byte opaque chain identifier (an EVM account or contract
// address). Its string form is lowercase hex with an optional "0x" prefix.
type Address [AddressLength]byte

// ParseAddress parses a hex string, with or without a leading "0x", into an
// Address. It fails if the decoded length does not equal AddressLength.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeHex(s)
	if err != nil {
		return a, fmt.Errorf("parse address: %w", err)
	}
	if len(b) != AddressLength {
		return a, fmt.Errorf("parse address: want %d bytes, got %d", AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// String returns the lowercase hex form without a "0x" prefix.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Hex returns the lowercase hex form with a "0x" prefix.
func (a Address) Hex() string {
	return "0x" + a.String()
}

// Bytes returns a copy of the address's raw bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Equal reports byte-wise equality; ordering has no meaning for addresses.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}

// HashLength is the byte width of a Hash.
const HashLength = 32

// Hash is a 32-byte opaque content digest (an epoch hash, an output Merkle
// root, or a transaction hash).
type Hash [HashLength]byte

// ZeroHash is the sentinel used to acknowledge a duplicate claim.
var ZeroHash = Hash{}

// ParseHash parses a hex string, with or without a leading "0x", into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := decodeHex(s)
	if err != nil {
		return h, fmt.Errorf("parse hash: %w", err)
	}
	if len(b) != HashLength {
		return h, fmt.Errorf("parse hash: want %d bytes, got %d", HashLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// String returns the lowercase hex form without a "0x" prefix.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Hex returns the lowercase hex form with a "0x" prefix.
func (h Hash) Hex() string {
	return "0x" + h.String()
}

// Bytes returns a copy of the hash's raw bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashLength)
	copy(b, h[:])
	return b
}

// IsZero reports whether the hash is the all-zero value.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Equal reports byte-wise equality.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h[:], other[:])
}

// Payload is a variable-length opaque byte string whose wire form is base64.
type Payload []byte

// String returns the standard base64 encoding of the payload.
func (p Payload) String() string {
	return base64.StdEncoding.EncodeToString(p)
}

// ParsePayload decodes a standard base64 string into a Payload.
func ParsePayload(s string) (Payload, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return Payload(b), nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
