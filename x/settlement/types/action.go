package types

import (
	"encoding/binary"
	"encoding/hex"

	"cosmossdk.io/math"
	"github.com/cometbft/cometbft/crypto/tmhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ActionType names a ledger operation an account authorizes
type ActionType string

const (
	ActionCreatePool ActionType = "CREATE_POOL"
	ActionDeposit    ActionType = "DEPOSIT"
	ActionClaim      ActionType = "CLAIM"
	ActionTransfer   ActionType = "TRANSFER"
	ActionRecombine  ActionType = "RECOMBINE"
)

// actionTag prefixes action bytes so an action digest never equals an
// order digest, whose first byte is the side.
const actionTag = 0xA0

// Action is an account's signed consent to one pool operation. The
// ledger records the id of every executed action and refuses it twice,
// so clients pick a fresh nonce per action. Expiry is a unix timestamp in
// seconds; zero means the action never expires.
type Action struct {
	Type   ActionType `json:"type"`
	Signer string     `json:"signer"`
	// PoolID is empty for CREATE_POOL
	PoolID string `json:"pool_id,omitempty"`
	// AssetRef and Denom are set for CREATE_POOL only
	AssetRef string `json:"asset_ref,omitempty"`
	Denom    string `json:"denom,omitempty"`
	// Recipient is set for TRANSFER only
	Recipient string `json:"recipient,omitempty"`
	// Amount is the total shares, the deposit or the transferred shares
	Amount math.Int `json:"amount"`
	Nonce  uint64   `json:"nonce"`
	Expiry int64    `json:"expiry"`
}

// Validate checks that the action carries exactly the fields its type uses
func (a Action) Validate() error {
	if a.Signer == "" {
		return ErrInvalidAction.Wrap("missing signer")
	}
	if a.Expiry < 0 {
		return ErrInvalidAction.Wrap("negative expiry")
	}
	hasAmount := !a.Amount.IsNil() && !a.Amount.IsZero()

	switch a.Type {
	case ActionCreatePool:
		if a.PoolID != "" || a.AssetRef == "" || a.Denom == "" || !hasAmount {
			return ErrInvalidAction.Wrap("create pool needs asset ref, denom and total shares")
		}
	case ActionDeposit:
		if a.PoolID == "" || !hasAmount {
			return ErrInvalidAction.Wrap("deposit needs pool and amount")
		}
	case ActionTransfer:
		if a.PoolID == "" || a.Recipient == "" || !hasAmount {
			return ErrInvalidAction.Wrap("transfer needs pool, recipient and amount")
		}
	case ActionClaim, ActionRecombine:
		if a.PoolID == "" || hasAmount {
			return ErrInvalidAction.Wrapf("%s needs a pool and no amount", a.Type)
		}
	default:
		return ErrInvalidAction.Wrapf("unknown type %q", a.Type)
	}
	if a.Type != ActionCreatePool && (a.AssetRef != "" || a.Denom != "") {
		return ErrInvalidAction.Wrap("asset ref and denom belong to create pool")
	}
	if a.Type != ActionTransfer && a.Recipient != "" {
		return ErrInvalidAction.Wrap("recipient belongs to transfer")
	}
	return nil
}

// ExpiredAt reports whether the action is expired at unix time now
func (a Action) ExpiredAt(now int64) bool {
	return a.Expiry != 0 && now >= a.Expiry
}

// CanonicalBytes for deterministic hashing
func (a Action) CanonicalBytes() []byte {
	buf := make([]byte, 0, 160)

	buf = append(buf, actionTag)
	buf = appendString(buf, string(a.Type))
	buf = appendString(buf, a.Signer)
	buf = appendString(buf, a.PoolID)
	buf = appendString(buf, a.AssetRef)
	buf = appendString(buf, a.Denom)
	buf = appendString(buf, a.Recipient)
	buf = appendInt(buf, a.Amount)
	buf = binary.BigEndian.AppendUint64(buf, a.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, uint64(a.Expiry))

	return buf
}

// Digest returns the hash the signer signs
func (a Action) Digest(d Domain) []byte {
	return tmhash.Sum(append(d.bytes(), a.CanonicalBytes()...))
}

// ID returns the action id, the hex encoded digest
func (a Action) ID(d Domain) string {
	return hex.EncodeToString(a.Digest(d))
}

// SignAction signs the action digest with a recoverable compact signature
func SignAction(key *secp256k1.PrivateKey, a Action, d Domain) []byte {
	return ecdsa.SignCompact(key, a.Digest(d), true)
}

// VerifyAction checks that sig was produced by the action's signer
func VerifyAction(a Action, d Domain, sig []byte) error {
	pub, _, err := ecdsa.RecoverCompact(sig, a.Digest(d))
	if err != nil {
		return ErrInvalidSignature.Wrap(err.Error())
	}
	if signer := OwnerAddress(pub); signer != a.Signer {
		return ErrInvalidSignature.Wrapf("signed by %s, signer is %s", signer, a.Signer)
	}
	return nil
}
