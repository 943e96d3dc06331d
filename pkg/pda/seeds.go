package pda

import (
	"encoding/hex"
	"strings"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/toolerr"
)

// SeedKind records how a raw seed string was interpreted.
type SeedKind string

// Seed kinds, in classification priority order.
const (
	SeedHex     SeedKind = "hex"
	SeedAddress SeedKind = "address"
	SeedText    SeedKind = "text"
)

const hexPrefix = "0x"

// Seed is a classified and encoded seed.
type Seed struct {
	Index    int      `json:"index"`
	Original string   `json:"originalValue"`
	Kind     SeedKind `json:"classification"`
	Bytes    []byte   `json:"-"`
	Length   int      `json:"length"`
}

// Hex returns the encoded bytes as lowercase hex.
func (s Seed) Hex() string {
	return hex.EncodeToString(s.Bytes)
}

// ClassifySeed encodes one seed. A "0x" prefix always means hex, then a
// valid address means its 32 bytes, and anything else is UTF-8 text.
func ClassifySeed(index int, raw string) (Seed, error) {
	seed := Seed{Index: index, Original: raw}

	switch {
	case strings.HasPrefix(raw, hexPrefix):
		b, err := hex.DecodeString(raw[len(hexPrefix):])
		if err != nil {
			return Seed{}, toolerr.Wrap(err, toolerr.KindInvalidInput,
				"seed %d (%q) has a 0x prefix but is not valid hex", index, raw).
				WithHint("Hex seeds need an even number of 0-9a-f digits after 0x; drop the prefix to use the value as text")
		}
		seed.Kind = SeedHex
		seed.Bytes = b

	case types.ValidateAddress(raw):
		b, err := types.AddressBytes(raw)
		if err != nil {
			return Seed{}, toolerr.Wrap(err, toolerr.KindInvalidInput, "seed %d (%q)", index, raw)
		}
		seed.Kind = SeedAddress
		seed.Bytes = b

	default:
		seed.Kind = SeedText
		seed.Bytes = []byte(raw)
	}

	seed.Length = len(seed.Bytes)
	return seed, nil
}

// ClassifySeeds encodes every seed in order. Duplicates are kept.
func ClassifySeeds(raw []string) ([]Seed, error) {
	if len(raw) == 0 {
		return nil, toolerr.InvalidInput("at least one seed is required").
			WithHint("Pass the seeds in the order the program declares them, e.g. [\"vault\", \"<owner address>\"]")
	}

	seeds := make([]Seed, 0, len(raw))
	for i, r := range raw {
		seed, err := ClassifySeed(i, r)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// SeedBytes returns the encoded bytes of each seed, in order.
func SeedBytes(seeds []Seed) [][]byte {
	out := make([][]byte, len(seeds))
	for i, s := range seeds {
		out[i] = s.Bytes
	}
	return out
}
