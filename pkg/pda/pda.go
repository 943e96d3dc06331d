// Package pda implements program derived address (PDA) operations: seed
// classification, bump search and on-chain existence checks.
package pda

import (
	"bytes"
	"crypto/sha256"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/toolerr"
)

// PDA constants.
const (
	MaxSeeds   = 16
	MaxSeedLen = 32
)

// PDA marker used in address derivation.
var pdaMarker = []byte("ProgramDerivedAddress")

// PDA errors.
var (
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrMaxSeedsExceeded      = errors.New("max seeds exceeded")
	ErrInvalidSeeds          = errors.New("invalid seeds - derived address is on curve")
	ErrInvalidProgramID      = errors.New("invalid program ID")
	ErrDerivationExhausted   = errors.New("unable to find a viable program address bump seed")
	ErrIllegalOwner          = errors.New("owner ends with the program derived address marker")
)

// DerivedAddress is the result of a bump search.
type DerivedAddress struct {
	Address types.Pubkey `json:"address"`
	Bump    uint8        `json:"bump"`
}

// CreateProgramAddress derives the address for an exact seed list, which must
// already include the bump if one is used.
//
// Program addresses must not lie on the ed25519 curve so that no private key
// exists for them. ErrInvalidSeeds is returned when the hash is a valid point.
func CreateProgramAddress(seeds [][]byte, programID []byte) ([]byte, error) {
	if len(programID) != types.PubkeySize {
		return nil, ErrInvalidProgramID
	}
	if len(seeds) > MaxSeeds {
		return nil, ErrMaxSeedsExceeded
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return nil, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(programID)
	h.Write(pdaMarker)

	var hash [32]byte
	copy(hash[:], h.Sum(nil))

	if isOnCurve(&hash) {
		return nil, ErrInvalidSeeds
	}

	return hash[:], nil
}

// FindProgramAddress finds a valid PDA by iterating bump seeds from 255 to 0.
func FindProgramAddress(seeds [][]byte, programID []byte) ([]byte, uint8, error) {
	for bump := uint8(255); ; bump-- {
		// Create a new slice to avoid modifying the input
		seedsWithBump := make([][]byte, len(seeds)+1)
		copy(seedsWithBump, seeds)
		seedsWithBump[len(seeds)] = []byte{bump}

		pda, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return pda, bump, nil
		}
		if err != ErrInvalidSeeds {
			return nil, 0, err
		}

		if bump == 0 {
			break
		}
	}

	return nil, 0, ErrDerivationExhausted
}

// Derive validates a program id and seed list and returns the canonical PDA
// with its bump. The result depends only on the inputs.
func Derive(programID string, seeds [][]byte) (DerivedAddress, error) {
	program, err := types.ParseAddress(programID)
	if err != nil {
		return DerivedAddress{}, toolerr.Wrap(ErrInvalidProgramID, toolerr.KindInvalidInput,
			"program id %q is not a valid base58 address", programID).
			WithHint("Provide the program id as a base58 encoded 32-byte address")
	}
	if len(seeds) > MaxSeeds-1 {
		return DerivedAddress{}, toolerr.Wrap(ErrMaxSeedsExceeded, toolerr.KindInvalidInput,
			"%d seeds given, at most %d are allowed with the bump", len(seeds), MaxSeeds-1)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return DerivedAddress{}, toolerr.Wrap(ErrMaxSeedLengthExceeded, toolerr.KindInvalidInput,
				"seed %d is %d bytes, at most %d are allowed", i, len(seed), MaxSeedLen).
				WithHint("Long values are usually hashed before being used as a seed; check the program's seed definition")
		}
	}

	addr, bump, err := FindProgramAddress(seeds, program[:])
	if err != nil {
		if errors.Is(err, ErrDerivationExhausted) {
			return DerivedAddress{}, toolerr.Wrap(err, toolerr.KindDerivationExhausted,
				"no bump in 255..0 yields an off-curve address")
		}
		return DerivedAddress{}, toolerr.Wrap(err, toolerr.KindInvalidInput, "derive address")
	}

	out := DerivedAddress{Bump: bump}
	copy(out.Address[:], addr)
	return out, nil
}

// CreateWithSeed derives sha256(base || seed || owner), the address scheme
// used for seeded system accounts such as the Anchor IDL account.
func CreateWithSeed(base types.Pubkey, seed string, owner types.Pubkey) (types.Pubkey, error) {
	if len(seed) > MaxSeedLen {
		return types.Pubkey{}, ErrMaxSeedLengthExceeded
	}
	if bytes.HasSuffix(owner[:], pdaMarker) {
		return types.Pubkey{}, ErrIllegalOwner
	}

	h := sha256.New()
	h.Write(base[:])
	h.Write([]byte(seed))
	h.Write(owner[:])

	var out types.Pubkey
	copy(out[:], h.Sum(nil))
	return out, nil
}

// isOnCurve reports whether b decodes to a valid compressed Edwards point.
// Tests replace it to force the bump search to run out.
var isOnCurve = func(b *[32]byte) bool {
	var A edwards25519.ExtendedGroupElement
	return A.FromBytes(b)
}
