// Package types defines the address type shared by every X1-Lens package.
//
// Addresses follow Solana conventions and are compatible with the X1 network:
// 32 raw bytes with a base58 text form.
package types

import (
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Size constants for core types.
const (
	PubkeySize = 32

	// MinAddressLen and MaxAddressLen bound the base58 text form of a 32-byte key.
	MinAddressLen = 32
	MaxAddressLen = 44
)

var (
	// ErrInvalidPubkey is returned when a pubkey has invalid length.
	ErrInvalidPubkey = errors.New("invalid pubkey: must be 32 bytes")

	// ErrInvalidAddress is returned when address text does not decode to a pubkey.
	ErrInvalidAddress = errors.New("invalid address")
)

// Pubkey represents a 32-byte Ed25519 public key or program derived address.
type Pubkey [PubkeySize]byte

// PubkeyFromBase58 parses a base58-encoded public key.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var p Pubkey
	data, err := base58.Decode(s)
	if err != nil {
		return p, errors.Wrap(err, "base58 decode")
	}
	if len(data) != PubkeySize {
		return p, ErrInvalidPubkey
	}
	copy(p[:], data)
	return p, nil
}

// PubkeyFromBytes creates a Pubkey from a byte slice.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var p Pubkey
	if len(b) != PubkeySize {
		return p, ErrInvalidPubkey
	}
	copy(p[:], b)
	return p, nil
}

// ValidateAddress reports whether s is the text form of a 32-byte address.
// It never fails: any decoding problem yields false.
func ValidateAddress(s string) bool {
	if len(s) < MinAddressLen || len(s) > MaxAddressLen {
		return false
	}
	data, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(data) == PubkeySize
}

// ParseAddress validates s and returns it as a Pubkey.
func ParseAddress(s string) (Pubkey, error) {
	if !ValidateAddress(s) {
		return Pubkey{}, errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	return PubkeyFromBase58(s)
}

// AddressBytes returns the raw 32 bytes of a valid address.
func AddressBytes(s string) ([]byte, error) {
	p, err := ParseAddress(s)
	if err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

// String returns the base58-encoded representation.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns the pubkey as a byte slice.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeySize)
	copy(out, p[:])
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := PubkeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
