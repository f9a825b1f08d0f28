package keeper

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/shares/types"
)

// VaultKeeper defines the expected interface for the vault module
type VaultKeeper interface {
	GetBalance(ctx sdk.Context, addr, denom string) math.Int
	Send(ctx sdk.Context, from, to string, coin sdk.Coin) error
}

// Keeper manages pools, share balances and dividend baselines
type Keeper struct {
	storeKey    storetypes.StoreKey
	vaultKeeper VaultKeeper
	logger      log.Logger
}

// NewKeeper creates a new shares keeper
func NewKeeper(storeKey storetypes.StoreKey, vaultKeeper VaultKeeper, logger log.Logger) *Keeper {
	return &Keeper{
		storeKey:    storeKey,
		vaultKeeper: vaultKeeper,
		logger:      logger.With("module", "x/shares"),
	}
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetStore returns the KVStore
func (k *Keeper) GetStore(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(k.storeKey)
}

// ============ Pool Store Operations ============

// SetPool saves a pool to the store
func (k *Keeper) SetPool(ctx sdk.Context, pool *types.Pool) {
	bz, err := json.Marshal(pool)
	if err != nil {
		panic(err)
	}
	k.GetStore(ctx).Set(types.PoolKey(pool.PoolID), bz)
}

// GetPool retrieves a pool, nil if unknown
func (k *Keeper) GetPool(ctx sdk.Context, poolID string) *types.Pool {
	bz := k.GetStore(ctx).Get(types.PoolKey(poolID))
	if bz == nil {
		return nil
	}
	var pool types.Pool
	if err := json.Unmarshal(bz, &pool); err != nil {
		return nil
	}
	return &pool
}

// GetAllPools returns every pool, active or not
func (k *Keeper) GetAllPools(ctx sdk.Context) []*types.Pool {
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), types.PoolKeyPrefix)
	defer iterator.Close()

	var pools []*types.Pool
	for ; iterator.Valid(); iterator.Next() {
		var pool types.Pool
		if err := json.Unmarshal(iterator.Value(), &pool); err != nil {
			continue
		}
		pools = append(pools, &pool)
	}
	return pools
}

func (k *Keeper) mustGetPool(ctx sdk.Context, poolID string) (*types.Pool, error) {
	pool := k.GetPool(ctx, poolID)
	if pool == nil {
		return nil, types.ErrPoolNotFound.Wrapf("pool %s", poolID)
	}
	return pool, nil
}

func (k *Keeper) nextPoolID(ctx sdk.Context) string {
	store := k.GetStore(ctx)
	bz := store.Get(types.PoolSequenceKey)
	var counter uint64
	if bz != nil {
		counter = binary.BigEndian.Uint64(bz)
	}
	counter++

	newBz := make([]byte, 8)
	binary.BigEndian.PutUint64(newBz, counter)
	store.Set(types.PoolSequenceKey, newBz)

	return fmt.Sprintf("pool-%d", counter)
}

// GetPoolByAsset returns the id of the active pool backed by assetRef
func (k *Keeper) GetPoolByAsset(ctx sdk.Context, assetRef string) (string, bool) {
	bz := k.GetStore(ctx).Get(types.AssetIndexKey(assetRef))
	if bz == nil {
		return "", false
	}
	return string(bz), true
}

// ============ Holder Records ============

func (k *Keeper) getInt(ctx sdk.Context, key []byte) math.Int {
	bz := k.GetStore(ctx).Get(key)
	if bz == nil {
		return math.ZeroInt()
	}
	var v math.Int
	if err := v.Unmarshal(bz); err != nil {
		return math.ZeroInt()
	}
	return v
}

func (k *Keeper) setInt(ctx sdk.Context, key []byte, v math.Int) {
	store := k.GetStore(ctx)
	if v.IsZero() {
		store.Delete(key)
		return
	}
	bz, err := v.Marshal()
	if err != nil {
		panic(err)
	}
	store.Set(key, bz)
}

// GetBalance returns the share balance of holder in a pool
func (k *Keeper) GetBalance(ctx sdk.Context, poolID, holder string) math.Int {
	return k.getInt(ctx, types.HolderKey(types.BalanceKeyPrefix, poolID, holder))
}

func (k *Keeper) setBalance(ctx sdk.Context, poolID, holder string, amt math.Int) {
	k.setInt(ctx, types.HolderKey(types.BalanceKeyPrefix, poolID, holder), amt)
}

// GetSettled returns the settled dividend baseline of holder in a pool
func (k *Keeper) GetSettled(ctx sdk.Context, poolID, holder string) math.Int {
	return k.getInt(ctx, types.HolderKey(types.BaselineKeyPrefix, poolID, holder))
}

func (k *Keeper) setSettled(ctx sdk.Context, poolID, holder string, amt math.Int) {
	k.setInt(ctx, types.HolderKey(types.BaselineKeyPrefix, poolID, holder), amt)
}

// GetHolding returns the full position of holder in a pool
func (k *Keeper) GetHolding(ctx sdk.Context, poolID, holder string) (*types.Holding, error) {
	pool, err := k.mustGetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return k.holding(ctx, pool, holder), nil
}

func (k *Keeper) holding(ctx sdk.Context, pool *types.Pool, holder string) *types.Holding {
	balance := k.GetBalance(ctx, pool.PoolID, holder)
	settled := k.GetSettled(ctx, pool.PoolID, holder)
	return &types.Holding{
		PoolID:    pool.PoolID,
		Holder:    holder,
		Balance:   balance,
		Settled:   settled,
		Claimable: pool.Claimable(balance, settled),
	}
}

// GetHolders returns every holder of a pool that has a balance or an
// outstanding baseline.
func (k *Keeper) GetHolders(ctx sdk.Context, poolID string) []*types.Holding {
	pool := k.GetPool(ctx, poolID)
	if pool == nil {
		return nil
	}

	seen := make(map[string]bool)
	var holders []*types.Holding
	for _, recordPrefix := range [][]byte{types.BalanceKeyPrefix, types.BaselineKeyPrefix} {
		prefix := types.HolderPrefix(recordPrefix, poolID)
		iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), prefix)
		for ; iterator.Valid(); iterator.Next() {
			holder := string(iterator.Key()[len(prefix):])
			if seen[holder] {
				continue
			}
			seen[holder] = true
			holders = append(holders, k.holding(ctx, pool, holder))
		}
		iterator.Close()
	}
	return holders
}
