package redeemer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenTransferor moves token value to a recipient. The host ledger supplies
// the real implementation; the redeemer only requires that a returned error
// means no value moved, so a failed claim can roll back cleanly.
type TokenTransferor interface {
	Transfer(ctx context.Context, token common.Address, to common.Address, amount *uint256.Int) error
}

// TransferorFunc adapts a function to the TokenTransferor interface.
type TransferorFunc func(ctx context.Context, token common.Address, to common.Address, amount *uint256.Int) error

func (f TransferorFunc) Transfer(ctx context.Context, token common.Address, to common.Address, amount *uint256.Int) error {
	return f(ctx, token, to, amount)
}
