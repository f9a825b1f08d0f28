package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	apitypes "github.com/openalpha/fracshare/api/types"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), config)
	require.NoError(t, config.Validate())

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"db_backend": "memdb",
		"settlement": {"fee_bps": 100, "chain_id": "fracshare-dev"},
		"api": {"port": 9090}
	}`), 0o600))

	config, err = LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "memdb", config.DBBackend)
	require.Equal(t, uint32(100), config.Settlement.FeeBps)
	require.Equal(t, "fracshare-dev", config.Settlement.ChainID)
	// unset keys keep their defaults
	require.Equal(t, "uusdc", config.Settlement.Denom)
	require.Equal(t, 9090, config.ServerConfig().Port)
	require.NoError(t, config.Validate())

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	config.DBBackend = "rocksdb"
	require.Error(t, config.Validate())

	config = DefaultConfig()
	config.Settlement.FeeBps = settlementtypes.MaxFeeBps + 1
	require.ErrorIs(t, config.Validate(), settlementtypes.ErrInvalidParams)
}

func TestNewLogger(t *testing.T) {
	config := DefaultConfig()
	config.LogFormat = "json"
	var buf bytes.Buffer
	logger, err := newLogger(&buf, config)
	require.NoError(t, err)
	logger.Info("hello", "k", "v")
	require.Contains(t, buf.String(), `"k":"v"`)

	config.LogLevel = "loud"
	_, err = newLogger(&buf, config)
	require.Error(t, err)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKeygenAndSignOrder(t *testing.T) {
	out, err := run(t, "keygen")
	require.NoError(t, err)
	var info KeyInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))

	key, err := settlementtypes.KeyFromHex(info.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, info.Address, settlementtypes.OwnerAddress(key.PubKey()))

	out, err = run(t, "sign-order",
		"--key", info.PrivateKey, "--side", "ask", "--pool", "pool-1",
		"--amount", "100", "--price", "5", "--nonce", "3", "--chain-id", "fracshare-dev")
	require.NoError(t, err)

	var req apitypes.SignedOrderRequest
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	order, sig, err := req.Decode()
	require.NoError(t, err)
	require.Equal(t, settlementtypes.SideAsk, order.Side)
	require.Equal(t, info.Address, order.Owner)
	require.NoError(t, settlementtypes.VerifyOrder(order, settlementtypes.NewDomain("fracshare-dev"), sig))
	require.Error(t, settlementtypes.VerifyOrder(order, settlementtypes.NewDomain("fracshare-1"), sig))

	_, err = run(t, "sign-order", "--key", info.PrivateKey, "--side", "hold", "--pool", "pool-1",
		"--amount", "100", "--price", "5")
	require.ErrorIs(t, err, settlementtypes.ErrInvalidOrder)
}
