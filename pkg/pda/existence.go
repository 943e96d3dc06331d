package pda

import (
	"context"

	"github.com/fortiblox/X1-Lens/internal/types"
	"github.com/fortiblox/X1-Lens/pkg/rpcfetch"
	"github.com/fortiblox/X1-Lens/pkg/toolerr"
)

// AccountGetter loads a single account. A nil account with a nil error means
// the account does not exist.
type AccountGetter interface {
	GetAccountInfo(ctx context.Context, address types.Pubkey) (*rpcfetch.AccountInfo, error)
}

// Existence describes whether an account is present on chain.
type Existence struct {
	Exists     bool          `json:"exists"`
	Lamports   uint64        `json:"lamports"`
	DataLength int           `json:"dataLength"`
	Owner      *types.Pubkey `json:"owner"`
}

// CheckExistence looks up address. A missing account is a successful result
// with Exists false; only transport failures are errors.
func CheckExistence(ctx context.Context, getter AccountGetter, address types.Pubkey) (Existence, error) {
	info, err := getter.GetAccountInfo(ctx, address)
	if err != nil {
		return Existence{}, toolerr.Upstream(err, "check account %s", address)
	}
	if info == nil {
		return Existence{}, nil
	}

	owner := info.Owner
	return Existence{
		Exists:     true,
		Lamports:   info.Lamports,
		DataLength: len(info.Data),
		Owner:      &owner,
	}, nil
}
