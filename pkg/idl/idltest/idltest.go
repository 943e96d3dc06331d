// Package idltest provides IDL fixtures and a borsh writer for tests.
package idltest

import (
	"bytes"
	_ "embed"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"

	"github.com/fortiblox/X1-Lens/internal/types"
)

// SmartWalletJSON is a 0.30+ format IDL whose account layouts live in the
// shared type table.
//
//go:embed smart_wallet.json
var SmartWalletJSON []byte

// EscrowLegacyJSON is a legacy format IDL with inline account layouts.
//
//go:embed escrow_legacy.json
var EscrowLegacyJSON []byte

// Discriminators declared in SmartWalletJSON.
var (
	SmartWalletDisc       = []byte{67, 59, 220, 179, 41, 10, 60, 177}
	SmartWalletConfigDisc = []byte{138, 211, 3, 80, 65, 100, 207, 142}
)

// Writer builds borsh encoded account data.
type Writer struct {
	buf bytes.Buffer
	enc *bin.Encoder
}

// NewWriter starts a buffer with the given discriminator.
func NewWriter(disc []byte) *Writer {
	w := &Writer{}
	w.enc = bin.NewBorshEncoder(&w.buf)
	w.buf.Write(disc)
	return w
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) U8(v uint8) *Writer {
	_ = w.enc.WriteUint8(v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	_ = w.enc.WriteUint16(v, binary.LittleEndian)
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	_ = w.enc.WriteUint32(v, binary.LittleEndian)
	return w
}

func (w *Writer) U64(v uint64) *Writer {
	_ = w.enc.WriteUint64(v, binary.LittleEndian)
	return w
}

func (w *Writer) I64(v int64) *Writer {
	_ = w.enc.WriteInt64(v, binary.LittleEndian)
	return w
}

// U128 writes lo and hi as a little-endian 128-bit integer.
func (w *Writer) U128(lo, hi uint64) *Writer {
	return w.U64(lo).U64(hi)
}

func (w *Writer) Bool(v bool) *Writer {
	_ = w.enc.WriteBool(v)
	return w
}

func (w *Writer) Pubkey(p types.Pubkey) *Writer {
	_ = w.enc.WriteBytes(p[:], false)
	return w
}

// Raw appends b without a length prefix.
func (w *Writer) Raw(b []byte) *Writer {
	_ = w.enc.WriteBytes(b, false)
	return w
}

// String writes a u32 length prefix followed by s.
func (w *Writer) String(s string) *Writer {
	return w.U32(uint32(len(s))).Raw([]byte(s))
}

// None writes an empty option.
func (w *Writer) None() *Writer { return w.U8(0) }

// Some writes the tag of a present option; the value follows.
func (w *Writer) Some() *Writer { return w.U8(1) }

// SmartWallet describes one SmartWallet account in the SmartWalletJSON layout.
type SmartWallet struct {
	Base      types.Pubkey
	Bump      uint8
	Threshold uint64
	Owners    []types.Pubkey
	Authority types.Pubkey
	FeeBps    uint16
	MaxAmount uint64
	Label     *string
	Frozen    int64
}

// Encode writes the account data including the discriminator. A non-zero
// Frozen writes the Frozen status variant, otherwise Active.
func (s SmartWallet) Encode() []byte {
	w := NewWriter(SmartWalletDisc).
		Pubkey(s.Base).
		U8(s.Bump).
		U64(s.Threshold).
		U32(uint32(len(s.Owners)))
	for _, o := range s.Owners {
		w.Pubkey(o)
	}
	w.Pubkey(s.Authority).U16(s.FeeBps).Raw(make([]byte, 33)).U128(s.MaxAmount, 0)
	if s.Label == nil {
		w.None()
	} else {
		w.Some().String(*s.Label)
	}
	if s.Frozen != 0 {
		w.U8(1).I64(s.Frozen)
	} else {
		w.U8(0)
	}
	return w.Bytes()
}
