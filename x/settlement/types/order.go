package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"cosmossdk.io/math"
	"github.com/cometbft/cometbft/crypto/tmhash"
	cosmossecp256k1 "github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Side is the side of an order
type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// Opposite returns the counter side
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

func (s Side) byte() byte {
	switch s {
	case SideBid:
		return 0x01
	case SideAsk:
		return 0x02
	}
	return 0x00
}

// MaxOrderBits bounds order amounts and prices so that amount*price and
// the fee computed on it stay well inside the 256 bit integer range.
const MaxOrderBits = 112

// Order is a signed, self-contained intent to trade shares of a pool.
// Expiry is a unix timestamp in seconds; zero means the order never expires.
type Order struct {
	Side         Side     `json:"side"`
	PoolID       string   `json:"pool_id"`
	Amount       math.Int `json:"amount"`
	PricePerUnit math.Int `json:"price_per_unit"`
	Owner        string   `json:"owner"`
	Nonce        uint64   `json:"nonce"`
	Expiry       int64    `json:"expiry"`
}

// Validate performs stateless checks on the order fields
func (o Order) Validate() error {
	if o.Side != SideBid && o.Side != SideAsk {
		return ErrInvalidOrder.Wrapf("unknown side %q", o.Side)
	}
	if o.PoolID == "" || len(o.PoolID) > 255 {
		return ErrInvalidOrder.Wrap("invalid pool id")
	}
	if o.Amount.IsNil() || !o.Amount.IsPositive() {
		return ErrInvalidOrder.Wrap("amount must be positive")
	}
	if o.PricePerUnit.IsNil() || !o.PricePerUnit.IsPositive() {
		return ErrInvalidOrder.Wrap("price must be positive")
	}
	if o.Amount.BigInt().BitLen() > MaxOrderBits || o.PricePerUnit.BigInt().BitLen() > MaxOrderBits {
		return ErrInvalidOrder.Wrapf("amount and price are limited to %d bits", MaxOrderBits)
	}
	if _, err := sdk.AccAddressFromBech32(o.Owner); err != nil {
		return ErrInvalidOrder.Wrapf("owner: %s", err)
	}
	if o.Expiry < 0 {
		return ErrInvalidOrder.Wrap("negative expiry")
	}
	return nil
}

// ExpiredAt reports whether the order is expired at unix time now
func (o Order) ExpiredAt(now int64) bool {
	return o.Expiry != 0 && now >= o.Expiry
}

// CanonicalBytes for deterministic hashing
func (o Order) CanonicalBytes() []byte {
	buf := make([]byte, 0, 128)

	buf = append(buf, o.Side.byte())
	buf = appendString(buf, o.PoolID)
	buf = appendInt(buf, o.Amount)
	buf = appendInt(buf, o.PricePerUnit)
	buf = appendString(buf, o.Owner)
	buf = binary.BigEndian.AppendUint64(buf, o.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, uint64(o.Expiry))

	return buf
}

// Domain separates signatures of different deployments and versions
type Domain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ChainID string `json:"chain_id"`
}

// NewDomain returns the signing domain of a chain
func NewDomain(chainID string) Domain {
	return Domain{Name: "fracshare", Version: "1", ChainID: chainID}
}

func (d Domain) bytes() []byte {
	buf := make([]byte, 0, 32)
	buf = appendString(buf, d.Name)
	buf = appendString(buf, d.Version)
	buf = appendString(buf, d.ChainID)
	return buf
}

// Digest returns the hash an order's owner signs
func (o Order) Digest(d Domain) []byte {
	return tmhash.Sum(append(d.bytes(), o.CanonicalBytes()...))
}

// ID returns the order id, the hex encoded digest
func (o Order) ID(d Domain) string {
	return hex.EncodeToString(o.Digest(d))
}

// SignOrder signs the order digest with a recoverable compact signature
func SignOrder(key *secp256k1.PrivateKey, o Order, d Domain) []byte {
	return ecdsa.SignCompact(key, o.Digest(d), true)
}

// RecoverSigner returns the account address that produced sig over the
// order digest.
func RecoverSigner(o Order, d Domain, sig []byte) (string, error) {
	pub, _, err := ecdsa.RecoverCompact(sig, o.Digest(d))
	if err != nil {
		return "", ErrInvalidSignature.Wrap(err.Error())
	}
	return OwnerAddress(pub), nil
}

// VerifyOrder checks that sig was produced by the order's owner
func VerifyOrder(o Order, d Domain, sig []byte) error {
	signer, err := RecoverSigner(o, d, sig)
	if err != nil {
		return err
	}
	if signer != o.Owner {
		return ErrInvalidSignature.Wrapf("signed by %s, owner is %s", signer, o.Owner)
	}
	return nil
}

// OwnerAddress derives the bech32 account address of a public key
func OwnerAddress(pub *secp256k1.PublicKey) string {
	pk := cosmossecp256k1.PubKey{Key: pub.SerializeCompressed()}
	return sdk.AccAddress(pk.Address()).String()
}

// KeyFromHex parses a hex encoded secp256k1 private key
func KeyFromHex(s string) (*secp256k1.PrivateKey, error) {
	bz, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid key hex: %w", err)
	}
	if len(bz) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid key length %d", len(bz))
	}
	return secp256k1.PrivKeyFromBytes(bz), nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendInt(buf []byte, v math.Int) []byte {
	var bz []byte
	if !v.IsNil() {
		bz = v.BigInt().Bytes()
	}
	return appendString(buf, string(bz))
}
