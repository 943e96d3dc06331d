package idl

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/pda"
	"github.com/fortiblox/X1-Lens/pkg/rpcfetch"
)

// IDLSeed is the seed Anchor uses for its IDL account.
const IDLSeed = "anchor:idl"

// Anchor IDL account layout: discriminator, authority, payload length.
const (
	idlAuthorityOffset = DiscriminatorSize
	idlLengthOffset    = idlAuthorityOffset + types.PubkeySize
	idlHeaderSize      = idlLengthOffset + 4

	// MaxIDLSize caps the inflated IDL document.
	MaxIDLSize = 16 << 20
)

// ErrMalformedIDLAccount is returned when the IDL account layout is invalid.
var ErrMalformedIDLAccount = errors.New("malformed IDL account")

// AccountGetter loads a single account; nil means the account does not exist.
type AccountGetter interface {
	GetAccountInfo(ctx context.Context, address types.Pubkey) (*rpcfetch.AccountInfo, error)
}

// Fetcher reads IDLs that programs published on chain.
type Fetcher struct {
	getter AccountGetter
}

// NewFetcher creates a Fetcher reading through getter.
func NewFetcher(getter AccountGetter) *Fetcher {
	return &Fetcher{getter: getter}
}

// Address returns the Anchor IDL account of program:
// createWithSeed(findProgramAddress([], program), "anchor:idl", program).
func Address(program types.Pubkey) (types.Pubkey, error) {
	base, _, err := pda.FindProgramAddress(nil, program[:])
	if err != nil {
		return types.Pubkey{}, errors.Wrap(err, "derive IDL base")
	}
	var basekey types.Pubkey
	copy(basekey[:], base)
	return pda.CreateWithSeed(basekey, IDLSeed, program)
}

// FetchRaw returns the inflated IDL JSON, or nil when the program has not
// published one.
func (f *Fetcher) FetchRaw(ctx context.Context, program types.Pubkey) ([]byte, error) {
	addr, err := Address(program)
	if err != nil {
		return nil, err
	}

	info, err := f.getter.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "load IDL account %s", addr)
	}
	if info == nil {
		return nil, nil
	}
	return DecodeIDLAccount(info.Data)
}

// Fetch returns the parsed IDL, or nil when the program has not published one.
func (f *Fetcher) Fetch(ctx context.Context, program types.Pubkey) (*IDL, error) {
	raw, err := f.FetchRaw(ctx, program)
	if err != nil || raw == nil {
		return nil, err
	}
	return Parse(raw)
}

// DecodeIDLAccount extracts and inflates the payload of an IDL account.
func DecodeIDLAccount(data []byte) ([]byte, error) {
	if len(data) < idlHeaderSize {
		return nil, errors.Wrapf(ErrMalformedIDLAccount, "%d bytes is shorter than the header", len(data))
	}
	n := binary.LittleEndian.Uint32(data[idlLengthOffset:idlHeaderSize])
	if uint64(n) > uint64(len(data)-idlHeaderSize) {
		return nil, errors.Wrapf(ErrMalformedIDLAccount, "payload length %d exceeds account data", n)
	}

	zr, err := zlib.NewReader(bytes.NewReader(data[idlHeaderSize : idlHeaderSize+int(n)]))
	if err != nil {
		return nil, errors.Wrap(ErrMalformedIDLAccount, err.Error())
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, MaxIDLSize+1))
	if err != nil {
		return nil, errors.Wrap(ErrMalformedIDLAccount, err.Error())
	}
	if len(out) > MaxIDLSize {
		return nil, errors.Wrapf(ErrMalformedIDLAccount, "inflated IDL exceeds %d bytes", MaxIDLSize)
	}
	return out, nil
}

// EncodeIDLAccount builds IDL account data for doc, the inverse of
// DecodeIDLAccount. It is used to seed fixtures and local validators.
func EncodeIDLAccount(authority types.Pubkey, doc []byte) ([]byte, error) {
	var payload bytes.Buffer
	zw := zlib.NewWriter(&payload)
	if _, err := zw.Write(doc); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	out := make([]byte, idlHeaderSize+payload.Len())
	disc := AccountDiscriminator(&AccountDef{Name: "IdlAccount"})
	copy(out, disc[:])
	copy(out[idlAuthorityOffset:], authority[:])
	binary.LittleEndian.PutUint32(out[idlLengthOffset:], uint32(payload.Len()))
	copy(out[idlHeaderSize:], payload.Bytes())
	return out, nil
}
