package keeper_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/fracshare/testutil"
	"github.com/openalpha/fracshare/x/settlement/types"
)

func (f *fixture) transferAction(nonce uint64) types.Action {
	return types.Action{
		Type: types.ActionTransfer, Signer: f.seller, PoolID: f.poolID,
		Recipient: f.buyer, Amount: math.NewInt(10), Nonce: nonce,
	}
}

func TestAuthorize(t *testing.T) {
	f := setupSettlement(t)
	action := f.transferAction(1)
	sig := types.SignAction(f.sellKey, action, f.domain)

	id, err := f.k.Authorize(f.ctx, action, sig)
	require.NoError(t, err)
	require.Equal(t, action.ID(f.domain), id)
	require.True(t, f.k.IsActionExecuted(f.ctx, id))

	_, err = f.k.Authorize(f.ctx, action, sig)
	require.ErrorIs(t, err, types.ErrActionReplayed)

	// a fresh nonce is a new action
	next := f.transferAction(2)
	_, err = f.k.Authorize(f.ctx, next, types.SignAction(f.sellKey, next, f.domain))
	require.NoError(t, err)
}

func TestAuthorizeRejectsOtherSigner(t *testing.T) {
	f := setupSettlement(t)
	action := f.transferAction(1)

	_, err := f.k.Authorize(f.ctx, action, types.SignAction(f.buyKey, action, f.domain))
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	other := types.NewDomain("other-chain")
	_, err = f.k.Authorize(f.ctx, action, types.SignAction(f.sellKey, action, other))
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	// an order signature never authorizes an action
	ask := f.ask(10, 5)
	_, err = f.k.Authorize(f.ctx, action, types.SignOrder(f.sellKey, ask, f.domain))
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	require.False(t, f.k.IsActionExecuted(f.ctx, action.ID(f.domain)))
}

func TestAuthorizeExpiry(t *testing.T) {
	f := setupSettlement(t)
	action := f.transferAction(1)
	action.Expiry = f.ctx.BlockTime().Unix()

	_, err := f.k.Authorize(f.ctx, action, types.SignAction(f.sellKey, action, f.domain))
	require.ErrorIs(t, err, types.ErrActionExpired)

	action.Expiry++
	_, err = f.k.Authorize(f.ctx, action, types.SignAction(f.sellKey, action, f.domain))
	require.NoError(t, err)
}

func TestActionValidate(t *testing.T) {
	_, signer := testutil.Key("alice")
	cases := []struct {
		name   string
		action types.Action
		ok     bool
	}{
		{"create pool", types.Action{Type: types.ActionCreatePool, Signer: signer, AssetRef: "a", Denom: "uusdc", Amount: math.NewInt(1)}, true},
		{"create pool with pool id", types.Action{Type: types.ActionCreatePool, Signer: signer, PoolID: "pool-1", AssetRef: "a", Denom: "uusdc", Amount: math.NewInt(1)}, false},
		{"deposit", types.Action{Type: types.ActionDeposit, Signer: signer, PoolID: "pool-1", Amount: math.NewInt(1)}, true},
		{"deposit without amount", types.Action{Type: types.ActionDeposit, Signer: signer, PoolID: "pool-1"}, false},
		{"claim", types.Action{Type: types.ActionClaim, Signer: signer, PoolID: "pool-1", Amount: math.ZeroInt()}, true},
		{"claim with amount", types.Action{Type: types.ActionClaim, Signer: signer, PoolID: "pool-1", Amount: math.NewInt(3)}, false},
		{"transfer without recipient", types.Action{Type: types.ActionTransfer, Signer: signer, PoolID: "pool-1", Amount: math.NewInt(1)}, false},
		{"recombine with recipient", types.Action{Type: types.ActionRecombine, Signer: signer, PoolID: "pool-1", Recipient: signer}, false},
		{"unknown type", types.Action{Type: "MINT", Signer: signer, PoolID: "pool-1"}, false},
		{"no signer", types.Action{Type: types.ActionClaim, PoolID: "pool-1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.action.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, types.ErrInvalidAction)
		})
	}
}
