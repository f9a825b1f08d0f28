package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"

	apitypes "github.com/openalpha/fracshare/api/types"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

const (
	flagKey    = "key"
	flagSide   = "side"
	flagPool   = "pool"
	flagAmount = "amount"
	flagPrice  = "price"
	flagNonce  = "nonce"
	flagExpiry = "expiry"
)

// KeyInfo is the output of keygen
type KeyInfo struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
	Address    string `json:"address"`
}

// KeygenCmd generates an order signing key
func KeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secp256k1 key for signing orders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := secp256k1.GeneratePrivateKey()
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			return printJSON(cmd, &KeyInfo{
				PrivateKey: hex.EncodeToString(key.Serialize()),
				PublicKey:  hex.EncodeToString(key.PubKey().SerializeCompressed()),
				Address:    settlementtypes.OwnerAddress(key.PubKey()),
			})
		},
	}
}

// SignOrderCmd signs an order and prints the body for POST /v1/orders
func SignOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign-order",
		Short: "Sign an order and print the request body for POST /v1/orders",
		Example: `  fracshared sign-order --key <hex> --side ask --pool pool-1 \
    --amount 100 --price 5 --nonce 1 --chain-id fracshare-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			keyHex, _ := flags.GetString(flagKey)
			key, err := settlementtypes.KeyFromHex(keyHex)
			if err != nil {
				return err
			}

			side, _ := flags.GetString(flagSide)
			poolID, _ := flags.GetString(flagPool)
			amount, _ := flags.GetString(flagAmount)
			price, _ := flags.GetString(flagPrice)
			nonce, _ := flags.GetUint64(flagNonce)
			expiry, _ := flags.GetInt64(flagExpiry)
			chainID, _ := flags.GetString(flagChainID)

			wire := apitypes.Order{
				Side:         strings.ToUpper(side),
				PoolID:       poolID,
				Amount:       amount,
				PricePerUnit: price,
				Owner:        settlementtypes.OwnerAddress(key.PubKey()),
				Nonce:        nonce,
				Expiry:       expiry,
			}
			order, err := wire.ToOrder()
			if err != nil {
				return err
			}
			if err := order.Validate(); err != nil {
				return err
			}

			domain := settlementtypes.NewDomain(chainID)
			sig := settlementtypes.SignOrder(key, order, domain)
			cmd.PrintErrf("order id: %s\n", order.ID(domain))
			return printJSON(cmd, &apitypes.SignedOrderRequest{
				Order:     wire,
				Signature: hex.EncodeToString(sig),
			})
		},
	}

	cmd.Flags().String(flagKey, "", "Hex encoded private key of the order owner")
	cmd.Flags().String(flagSide, "", "Order side (bid or ask)")
	cmd.Flags().String(flagPool, "", "Pool id")
	cmd.Flags().String(flagAmount, "", "Share amount")
	cmd.Flags().String(flagPrice, "", "Price per share")
	cmd.Flags().Uint64(flagNonce, 0, "Order nonce")
	cmd.Flags().Int64(flagExpiry, 0, "Expiry as unix seconds, 0 for none")
	cmd.Flags().String(flagChainID, settlementtypes.DefaultParams().ChainID, "Chain id of the signing domain")
	for _, name := range []string{flagKey, flagSide, flagPool, flagAmount, flagPrice} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
