package testutil

import (
	"crypto/sha256"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store"
	"cosmossdk.io/store/metrics"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	cosmossecp256k1 "github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// GenesisTime is the block time used by test contexts.
var GenesisTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// NewContext mounts the given keys on an in-memory IAVL multistore and
// returns a context at height 1.
func NewContext(t testing.TB, keys ...*storetypes.KVStoreKey) sdk.Context {
	t.Helper()

	db := dbm.NewMemDB()
	cms := store.NewCommitMultiStore(db, log.NewNopLogger(), metrics.NewNoOpMetrics())
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	header := cmtproto.Header{ChainID: "fracshare-test", Height: 1, Time: GenesisTime}
	return sdk.NewContext(cms, header, false, log.NewNopLogger())
}

// Addr derives a deterministic bech32 account address from a label.
func Addr(label string) string {
	sum := sha256.Sum256([]byte(label))
	return sdk.AccAddress(sum[:20]).String()
}

// Key derives a deterministic signing key from a label and returns it
// with its account address.
func Key(label string) (*secp256k1.PrivateKey, string) {
	sum := sha256.Sum256([]byte("key/" + label))
	priv := secp256k1.PrivKeyFromBytes(sum[:])
	pub := cosmossecp256k1.PubKey{Key: priv.PubKey().SerializeCompressed()}
	return priv, sdk.AccAddress(pub.Address()).String()
}
