package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store"
	storemetrics "cosmossdk.io/store/metrics"
	pruningtypes "cosmossdk.io/store/pruning/types"
	storetypes "cosmossdk.io/store/types"
	cmtproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/openalpha/fracshare/metrics"
	settlementkeeper "github.com/openalpha/fracshare/x/settlement/keeper"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
	shareskeeper "github.com/openalpha/fracshare/x/shares/keeper"
	sharestypes "github.com/openalpha/fracshare/x/shares/types"
	vaultkeeper "github.com/openalpha/fracshare/x/vault/keeper"
	vaulttypes "github.com/openalpha/fracshare/x/vault/types"
)

const (
	Name = "fracshare"
)

// EventListener is notified with the events of every committed operation
type EventListener func(height int64, events sdk.Events)

// Options configures a Ledger
type Options struct {
	// DB backs the multistore. A MemDB is used when nil.
	DB     dbm.DB
	Params settlementtypes.Params
	Logger log.Logger
	// Clock supplies block time. time.Now when nil.
	Clock func() time.Time
}

// Ledger is the single authoritative execution environment. Every
// mutating operation is serialized under one lock, runs in a branch of
// the multistore and is committed only when it returns no error.
type Ledger struct {
	mu sync.RWMutex

	cms    storetypes.CommitMultiStore
	keys   map[string]*storetypes.KVStoreKey
	logger log.Logger
	clock  func() time.Time

	chainID   string
	height    int64
	listeners []EventListener

	VaultKeeper      *vaultkeeper.Keeper
	SharesKeeper     *shareskeeper.Keeper
	SettlementKeeper *settlementkeeper.Keeper
}

// NewLedger mounts the module stores, loads the latest committed version
// and applies the settlement params.
func NewLedger(opts Options) (*Ledger, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.DB == nil {
		opts.DB = dbm.NewMemDB()
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}

	keys := storetypes.NewKVStoreKeys(
		vaulttypes.StoreKey,
		sharestypes.StoreKey,
		settlementtypes.StoreKey,
	)

	cms := store.NewCommitMultiStore(opts.DB, opts.Logger, storemetrics.NewNoOpMetrics())
	cms.SetPruning(pruningtypes.NewPruningOptions(pruningtypes.PruningEverything))
	for _, key := range keys {
		cms.MountStoreWithDB(key, storetypes.StoreTypeIAVL, nil)
	}
	if err := cms.LoadLatestVersion(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	vk := vaultkeeper.NewKeeper(keys[vaulttypes.StoreKey], opts.Logger)
	sk := shareskeeper.NewKeeper(keys[sharestypes.StoreKey], vk, opts.Logger)
	stk := settlementkeeper.NewKeeper(keys[settlementtypes.StoreKey], vk, sk, opts.Logger)

	l := &Ledger{
		cms:              cms,
		keys:             keys,
		logger:           opts.Logger.With("module", "app"),
		clock:            opts.Clock,
		chainID:          opts.Params.ChainID,
		height:           cms.LastCommitID().Version,
		VaultKeeper:      vk,
		SharesKeeper:     sk,
		SettlementKeeper: stk,
	}

	if err := l.execute("set_params", func(ctx sdk.Context) error {
		return stk.SetParams(ctx, opts.Params)
	}); err != nil {
		return nil, err
	}

	l.logger.Info("ledger loaded", "chain_id", l.chainID, "height", l.height)
	return l, nil
}

// Subscribe registers a listener for committed events. Listeners run
// synchronously after the commit, outside the ledger lock.
func (l *Ledger) Subscribe(listener EventListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

// Height returns the last committed height
func (l *Ledger) Height() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.height
}

// execute runs fn as one all-or-nothing unit at the next height
func (l *Ledger) execute(op string, fn func(ctx sdk.Context) error) error {
	timer := metrics.NewTimer()

	height, events, listeners, err := l.apply(fn)
	if err != nil {
		metrics.GetCollector().RecordLedgerOp(op, KindOf(err).String(), timer.ElapsedMs())
		if errors.Is(err, ErrPanic) {
			l.logger.Error("operation panicked", "op", op, "error", err)
		} else {
			l.logger.Debug("operation discarded", "op", op, "error", err)
		}
		return err
	}

	collector := metrics.GetCollector()
	collector.RecordLedgerOp(op, "ok", timer.ElapsedMs())
	collector.RecordHeight(height)

	for _, listener := range listeners {
		listener(height, events)
	}
	return nil
}

// apply runs fn in a branch under the write lock and commits the branch
// when fn succeeds. A panic in fn drops the branch and is returned as
// ErrPanic.
func (l *Ledger) apply(fn func(ctx sdk.Context) error) (height int64, events sdk.Events, listeners []EventListener, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = ErrPanic.Wrapf("%v", r)
		}
	}()

	header := cmtproto.Header{ChainID: l.chainID, Height: l.height + 1, Time: l.clock().UTC()}
	ctx := sdk.NewContext(l.cms, header, false, l.logger)

	cacheCtx, write := ctx.CacheContext()
	if err := fn(cacheCtx); err != nil {
		return 0, nil, nil, err
	}
	write()
	commitID := l.cms.Commit()
	l.height = commitID.Version

	return l.height, ctx.EventManager().Events(), append([]EventListener(nil), l.listeners...), nil
}

// query runs fn against a read-only branch of the latest state
func (l *Ledger) query(fn func(ctx sdk.Context)) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	header := cmtproto.Header{ChainID: l.chainID, Height: l.height, Time: l.clock().UTC()}
	fn(sdk.NewContext(l.cms.CacheMultiStore(), header, false, l.logger))
}
