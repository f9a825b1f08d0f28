package keeper

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/settlement/types"
)

// VaultKeeper defines the expected interface for the vault module
type VaultKeeper interface {
	Send(ctx sdk.Context, from, to string, coin sdk.Coin) error
}

// SharesKeeper defines the expected interface for the shares module
type SharesKeeper interface {
	// TransferShares moves shares and runs the dividend baseline hook
	TransferShares(ctx sdk.Context, poolID, from, to string, amount math.Int) error
}

// Keeper is the settlement executor. It owns the authoritative executed
// amount of every order and the cancellation records.
type Keeper struct {
	storeKey     storetypes.StoreKey
	vaultKeeper  VaultKeeper
	sharesKeeper SharesKeeper
	logger       log.Logger
}

// NewKeeper creates a new settlement keeper
func NewKeeper(
	storeKey storetypes.StoreKey,
	vaultKeeper VaultKeeper,
	sharesKeeper SharesKeeper,
	logger log.Logger,
) *Keeper {
	return &Keeper{
		storeKey:     storeKey,
		vaultKeeper:  vaultKeeper,
		sharesKeeper: sharesKeeper,
		logger:       logger.With("module", "x/settlement"),
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

// ============ Params ============

// GetParams returns the settlement params, defaults if never set
func (k *Keeper) GetParams(ctx sdk.Context) types.Params {
	bz := k.GetStore(ctx).Get(types.ParamsKey)
	if bz == nil {
		return types.DefaultParams()
	}
	var params types.Params
	if err := json.Unmarshal(bz, &params); err != nil {
		return types.DefaultParams()
	}
	return params
}

// SetParams validates and stores the settlement params
func (k *Keeper) SetParams(ctx sdk.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	bz, err := json.Marshal(params)
	if err != nil {
		return err
	}
	k.GetStore(ctx).Set(types.ParamsKey, bz)
	return nil
}

// Domain returns the order signing domain
func (k *Keeper) Domain(ctx sdk.Context) types.Domain {
	return types.NewDomain(k.GetParams(ctx).ChainID)
}

// ============ Executed Amounts ============

// GetExecuted returns the amount of an order already settled
func (k *Keeper) GetExecuted(ctx sdk.Context, orderID string) math.Int {
	bz := k.GetStore(ctx).Get(types.ExecutedKey(orderID))
	if bz == nil {
		return math.ZeroInt()
	}
	var amt math.Int
	if err := amt.Unmarshal(bz); err != nil {
		return math.ZeroInt()
	}
	return amt
}

func (k *Keeper) setExecuted(ctx sdk.Context, orderID string, amt math.Int) {
	bz, err := amt.Marshal()
	if err != nil {
		panic(err)
	}
	k.GetStore(ctx).Set(types.ExecutedKey(orderID), bz)
}

// GetOrderState returns the authoritative fill state of an order
func (k *Keeper) GetOrderState(ctx sdk.Context, order types.Order) *types.OrderState {
	orderID := order.ID(k.Domain(ctx))
	executed := k.GetExecuted(ctx, orderID)
	cancelled := k.IsCancelled(ctx, orderID)

	remaining := order.Amount.Sub(executed)
	if cancelled || remaining.IsNegative() {
		remaining = math.ZeroInt()
	}
	return &types.OrderState{
		OrderID:   orderID,
		Executed:  executed,
		Remaining: remaining,
		Cancelled: cancelled,
	}
}

// ============ Cancellations ============

// GetCancellation returns the cancellation record of an order, nil if none
func (k *Keeper) GetCancellation(ctx sdk.Context, orderID string) *types.Cancellation {
	bz := k.GetStore(ctx).Get(types.CancellationKey(orderID))
	if bz == nil {
		return nil
	}
	var c types.Cancellation
	if err := json.Unmarshal(bz, &c); err != nil {
		return nil
	}
	return &c
}

// IsCancelled reports whether an order has been cancelled
func (k *Keeper) IsCancelled(ctx sdk.Context, orderID string) bool {
	return k.GetStore(ctx).Has(types.CancellationKey(orderID))
}

func (k *Keeper) setCancellation(ctx sdk.Context, c *types.Cancellation) {
	bz, _ := json.Marshal(c)
	k.GetStore(ctx).Set(types.CancellationKey(c.OrderID), bz)
}

// ============ Settlement Records ============

func (k *Keeper) nextSettlementSeq(ctx sdk.Context) []byte {
	store := k.GetStore(ctx)
	bz := store.Get(types.SettlementSequenceKey)
	var counter uint64
	if bz != nil {
		counter = binary.BigEndian.Uint64(bz)
	}
	counter++

	newBz := make([]byte, 8)
	binary.BigEndian.PutUint64(newBz, counter)
	store.Set(types.SettlementSequenceKey, newBz)
	return newBz
}

func (k *Keeper) setSettlement(ctx sdk.Context, seq []byte, s *types.Settlement) {
	bz, _ := json.Marshal(s)
	k.GetStore(ctx).Set(types.SettlementKey(seq), bz)
}

// GetSettlement retrieves a settlement record by id
func (k *Keeper) GetSettlement(ctx sdk.Context, settlementID string) (*types.Settlement, error) {
	var counter uint64
	if _, err := fmt.Sscanf(settlementID, "stl-%d", &counter); err != nil {
		return nil, types.ErrSettlementNotFound.Wrapf("id %q", settlementID)
	}
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, counter)

	bz := k.GetStore(ctx).Get(types.SettlementKey(seq))
	if bz == nil {
		return nil, types.ErrSettlementNotFound.Wrapf("id %q", settlementID)
	}
	var s types.Settlement
	if err := json.Unmarshal(bz, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetRecentSettlements returns up to limit settlements, newest first
func (k *Keeper) GetRecentSettlements(ctx sdk.Context, limit int) []*types.Settlement {
	iterator := storetypes.KVStoreReversePrefixIterator(k.GetStore(ctx), types.SettlementKeyPrefix)
	defer iterator.Close()

	var settlements []*types.Settlement
	count := 0
	for ; iterator.Valid() && count < limit; iterator.Next() {
		var s types.Settlement
		if err := json.Unmarshal(iterator.Value(), &s); err != nil {
			continue
		}
		settlements = append(settlements, &s)
		count++
	}
	return settlements
}
