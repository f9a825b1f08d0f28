package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/spf13/cobra"

	"github.com/openalpha/fracshare/api"
	"github.com/openalpha/fracshare/app"
	"github.com/openalpha/fracshare/offchain/matcher"
	"github.com/openalpha/fracshare/offchain/orderstore"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

const (
	flagHost             = "host"
	flagPort             = "port"
	flagDBBackend        = "db-backend"
	flagDBDir            = "db-dir"
	flagChainID          = "chain-id"
	flagFeeBps           = "fee-bps"
	flagNoMatcher        = "no-matcher"
	flagDisableRateLimit = "disable-rate-limit"

	shutdownTimeout = 10 * time.Second
)

// ServeCmd runs the ledger, the matcher service and the API server
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the ledger node and its API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyServeFlags(cmd, config); err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}
			noMatcher, _ := cmd.Flags().GetBool(flagNoMatcher)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, config, !noMatcher, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().String(flagHost, "", "API server host")
	cmd.Flags().Int(flagPort, 0, "API server port")
	cmd.Flags().String(flagDBBackend, "", "Ledger database backend (goleveldb or memdb)")
	cmd.Flags().String(flagDBDir, "", "Ledger database directory")
	cmd.Flags().String(flagChainID, "", "Chain id bound into order signatures")
	cmd.Flags().Int(flagFeeBps, -1, "Platform fee in basis points")
	cmd.Flags().Bool(flagNoMatcher, false, "Do not run the background matcher")
	cmd.Flags().Bool(flagDisableRateLimit, false, "Disable API rate limiting")
	return cmd
}

// applyServeFlags overrides the config with flags that were set
func applyServeFlags(cmd *cobra.Command, config *Config) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString(flagHost); v != "" {
		config.API.Host = v
	}
	if v, _ := flags.GetInt(flagPort); v > 0 {
		config.API.Port = v
	}
	if v, _ := flags.GetString(flagDBBackend); v != "" {
		config.DBBackend = v
	}
	if v, _ := flags.GetString(flagDBDir); v != "" {
		config.DBDir = v
	}
	if v, _ := flags.GetString(flagChainID); v != "" {
		config.Settlement.ChainID = v
	}
	if v, _ := flags.GetInt(flagFeeBps); v >= 0 {
		if v > settlementtypes.MaxFeeBps {
			return fmt.Errorf("fee bps %d exceeds %d", v, settlementtypes.MaxFeeBps)
		}
		config.Settlement.FeeBps = uint32(v)
	}
	if v, _ := flags.GetBool(flagDisableRateLimit); v {
		config.API.DisableRateLimit = true
	}
	if config.Matcher == nil {
		config.Matcher = matcher.DefaultConfig()
	}
	return nil
}

func openDB(config *Config) (dbm.DB, error) {
	if config.DBBackend == "memdb" {
		return dbm.NewMemDB(), nil
	}
	if err := os.MkdirAll(config.DBDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}
	return dbm.NewDB(app.Name, dbm.GoLevelDBBackend, config.DBDir)
}

// runNode wires the components and blocks until ctx is done or the API
// server fails.
func runNode(ctx context.Context, config *Config, runMatcher bool, logOut io.Writer) error {
	logger, err := newLogger(logOut, config)
	if err != nil {
		return err
	}

	db, err := openDB(config)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger, err := app.NewLedger(app.Options{
		DB:     db,
		Params: config.Settlement,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	store := orderstore.NewStore(ledger.Domain(), logger, time.Now)
	engine := matcher.NewEngine(store, logger, time.Now)
	submitter := matcher.NewSubmitter(ledger, store, logger)

	var service *matcher.Service
	if runMatcher {
		service = matcher.NewService(config.Matcher, store, engine, submitter, logger, time.Now)
		if err := service.Start(ctx); err != nil {
			return fmt.Errorf("failed to start matcher: %w", err)
		}
	}

	server := api.NewServer(config.ServerConfig(), api.Deps{
		Ledger:    ledger,
		Store:     store,
		Engine:    engine,
		Submitter: submitter,
		Service:   service,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("node started",
		"chain_id", ledger.Domain().ChainID,
		"height", ledger.Height(),
		"db_backend", config.DBBackend,
		"matcher", runMatcher,
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("api server stopped", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if service != nil {
		if err := service.Stop(); err != nil {
			logger.Error("matcher shutdown error", "error", err)
		}
	}
	return serveErr
}
