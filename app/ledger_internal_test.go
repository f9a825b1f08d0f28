package app

import (
	"testing"
	"time"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/fracshare/testutil"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

func TestExecuteRecoversPanic(t *testing.T) {
	params := settlementtypes.DefaultParams()
	l, err := NewLedger(Options{
		Params: params,
		Clock:  func() time.Time { return testutil.GenesisTime },
	})
	require.NoError(t, err)
	alice := testutil.Addr("alice")
	height := l.Height()

	err = l.execute("overflow", func(ctx sdk.Context) error {
		require.NoError(t, l.VaultKeeper.Mint(ctx, alice, sdk.NewCoin(params.Denom, math.NewInt(5))))
		panic("integer overflow")
	})
	require.ErrorIs(t, err, ErrPanic)
	require.Equal(t, KindInternal, KindOf(err))

	// the lock was released and the branch discarded
	require.Equal(t, height, l.Height())
	require.True(t, l.Balance(alice, params.Denom).IsZero())

	require.NoError(t, l.Fund(alice, sdk.NewCoin(params.Denom, math.NewInt(7))))
	require.Equal(t, height+1, l.Height())
	require.True(t, l.Balance(alice, params.Denom).Equal(math.NewInt(7)))
	require.NoError(t, l.CheckInvariants())
}
