package keeper

import (
	"cosmossdk.io/log"
	"cosmossdk.io/math"
	storetypes "cosmossdk.io/store/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/x/vault/types"
)

// Keeper holds per-account, per-denom value balances. Every write goes
// through the context's store so a discarded CacheContext discards it too.
type Keeper struct {
	storeKey storetypes.StoreKey
	logger   log.Logger
}

// NewKeeper creates a new vault keeper
func NewKeeper(storeKey storetypes.StoreKey, logger log.Logger) *Keeper {
	return &Keeper{
		storeKey: storeKey,
		logger:   logger.With("module", "x/vault"),
	}
}

// Logger returns the module logger
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetStore returns the KVStore for this module
func (k *Keeper) GetStore(ctx sdk.Context) storetypes.KVStore {
	return ctx.KVStore(k.storeKey)
}

// GetBalance returns the balance of addr in denom, zero if unset.
func (k *Keeper) GetBalance(ctx sdk.Context, addr, denom string) math.Int {
	bz := k.GetStore(ctx).Get(types.BalanceKey(addr, denom))
	if bz == nil {
		return math.ZeroInt()
	}
	var amt math.Int
	if err := amt.Unmarshal(bz); err != nil {
		return math.ZeroInt()
	}
	return amt
}

// GetAllBalances returns every non-zero balance held by addr.
func (k *Keeper) GetAllBalances(ctx sdk.Context, addr string) sdk.Coins {
	prefix := types.AddressBalancesPrefix(addr)
	iterator := storetypes.KVStorePrefixIterator(k.GetStore(ctx), prefix)
	defer iterator.Close()

	coins := sdk.NewCoins()
	for ; iterator.Valid(); iterator.Next() {
		denom := string(iterator.Key()[len(prefix):])
		var amt math.Int
		if err := amt.Unmarshal(iterator.Value()); err != nil {
			continue
		}
		coins = coins.Add(sdk.NewCoin(denom, amt))
	}
	return coins
}

func (k *Keeper) setBalance(ctx sdk.Context, addr, denom string, amt math.Int) {
	store := k.GetStore(ctx)
	key := types.BalanceKey(addr, denom)
	if amt.IsZero() {
		store.Delete(key)
		return
	}
	bz, err := amt.Marshal()
	if err != nil {
		panic(err)
	}
	store.Set(key, bz)
}

// GetSupply returns the total amount minted into the vault for denom.
func (k *Keeper) GetSupply(ctx sdk.Context, denom string) math.Int {
	bz := k.GetStore(ctx).Get(types.SupplyKey(denom))
	if bz == nil {
		return math.ZeroInt()
	}
	var amt math.Int
	if err := amt.Unmarshal(bz); err != nil {
		return math.ZeroInt()
	}
	return amt
}

func (k *Keeper) setSupply(ctx sdk.Context, denom string, amt math.Int) {
	bz, err := amt.Marshal()
	if err != nil {
		panic(err)
	}
	k.GetStore(ctx).Set(types.SupplyKey(denom), bz)
}

// Mint credits newly issued value to addr. This is the on-ramp used by
// the ledger's funding operation; nothing else creates value. Module
// accounts cannot be minted to.
func (k *Keeper) Mint(ctx sdk.Context, addr string, coin sdk.Coin) error {
	if err := types.ValidateAccountAddress(addr); err != nil {
		return err
	}
	if !coin.IsValid() || coin.IsZero() {
		return types.ErrInvalidCoin.Wrapf("cannot mint %s", coin)
	}
	if !types.AmountInRange(coin.Amount) {
		return types.ErrInvalidCoin.Wrapf("mint amount exceeds %d bits", types.MaxAmountBits)
	}

	k.setBalance(ctx, addr, coin.Denom, k.GetBalance(ctx, addr, coin.Denom).Add(coin.Amount))
	k.setSupply(ctx, coin.Denom, k.GetSupply(ctx, coin.Denom).Add(coin.Amount))

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeMint,
			sdk.NewAttribute(types.AttributeKeyRecipient, addr),
			sdk.NewAttribute(types.AttributeKeyAmount, coin.String()),
		),
	)
	return nil
}

// Send moves coin from one account to another. A zero amount is a no-op.
func (k *Keeper) Send(ctx sdk.Context, from, to string, coin sdk.Coin) error {
	if err := types.ValidateAddress(from); err != nil {
		return err
	}
	if err := types.ValidateAddress(to); err != nil {
		return err
	}
	if !coin.IsValid() {
		return types.ErrInvalidCoin.Wrapf("cannot send %s", coin)
	}
	if coin.IsZero() {
		return nil
	}

	fromBalance := k.GetBalance(ctx, from, coin.Denom)
	if fromBalance.LT(coin.Amount) {
		return types.ErrInsufficientFunds.Wrapf("%s has %s%s, needs %s", from, fromBalance, coin.Denom, coin)
	}

	k.setBalance(ctx, from, coin.Denom, fromBalance.Sub(coin.Amount))
	k.setBalance(ctx, to, coin.Denom, k.GetBalance(ctx, to, coin.Denom).Add(coin.Amount))

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			types.EventTypeTransfer,
			sdk.NewAttribute(types.AttributeKeySender, from),
			sdk.NewAttribute(types.AttributeKeyRecipient, to),
			sdk.NewAttribute(types.AttributeKeyAmount, coin.String()),
		),
	)
	return nil
}
