// Package authz validates the signed authorization artifacts the ledger
// accepts: owner-signed permissions to move funds and owner-signed
// subscription requests. Both shapes hash to a domain-bound structured digest
// and are verified by recovering the signer from a secp256k1 signature.
package authz

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain binds artifact digests to one ledger deployment so a signature for
// one deployment cannot be replayed against another.
type Domain struct {
	Name    string
	ChainID uint64
}

var (
	subscriptionTypeHash = crypto.Keccak256([]byte(
		"Subscription(address owner,address token,uint256 amount,uint64 interval,uint64 deadline,uint64 nonce)"))
	permitTypeHash = crypto.Keccak256([]byte(
		"Permit(address owner,address token,uint256 amount,uint64 deadline)"))
)

func (d Domain) separator() []byte {
	return crypto.Keccak256(
		crypto.Keccak256([]byte("AutosaveLedger(string name,uint256 chainId)")),
		crypto.Keccak256([]byte(d.Name)),
		gcommon.LeftPadBytes(new(big.Int).SetUint64(d.ChainID).Bytes(), 32),
	)
}

// Artifact is one verifiable authorization shape. Concrete shapes live below;
// verification is shared so the ledger state machine never branches on shape.
type Artifact interface {
	// Digest recomputes the structured, domain-bound hash the owner signed.
	Digest(domain Domain) ([]byte, error)
	// SignatureBytes decodes the artifact's signature into 65 raw bytes.
	SignatureBytes() ([]byte, error)
	// ArtifactOwner returns the claimed signer.
	ArtifactOwner() (gcommon.Address, error)
	// ExpiresAt returns the artifact deadline.
	ExpiresAt() time.Time
}

// SubscriptionAuthorization authorizes creation of one specific plan. Nonce
// equality against the owner's authorization counter is checked by the
// ledger inside the creation transaction, not here.
type SubscriptionAuthorization struct {
	Owner             string `json:"owner" validate:"required"`
	Token             string `json:"token" validate:"required"`
	AmountPerInterval string `json:"amount_per_interval" validate:"required"`
	IntervalSeconds   uint64 `json:"interval_seconds" validate:"required,gt=0"`
	Deadline          int64  `json:"deadline" validate:"required"`
	Nonce             uint64 `json:"nonce"`
	Signature         string `json:"signature" validate:"required"`
}

func (a *SubscriptionAuthorization) Digest(domain Domain) ([]byte, error) {
	owner, err := parseAddress(a.Owner)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress(a.Token)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(a.AmountPerInterval)
	if err != nil {
		return nil, err
	}

	structHash := crypto.Keccak256(
		subscriptionTypeHash,
		gcommon.LeftPadBytes(owner.Bytes(), 32),
		gcommon.LeftPadBytes(token.Bytes(), 32),
		gcommon.LeftPadBytes(amount.Bytes(), 32),
		gcommon.LeftPadBytes(new(big.Int).SetUint64(a.IntervalSeconds).Bytes(), 32),
		gcommon.LeftPadBytes(new(big.Int).SetInt64(a.Deadline).Bytes(), 32),
		gcommon.LeftPadBytes(new(big.Int).SetUint64(a.Nonce).Bytes(), 32),
	)

	return typedDigest(domain, structHash), nil
}

func (a *SubscriptionAuthorization) SignatureBytes() ([]byte, error) {
	return parseSignature(a.Signature)
}

func (a *SubscriptionAuthorization) ArtifactOwner() (gcommon.Address, error) {
	return parseAddress(a.Owner)
}

func (a *SubscriptionAuthorization) ExpiresAt() time.Time {
	return time.Unix(a.Deadline, 0)
}

// PermitAuthorization grants the ledger a standing allowance over an owner's
// funds, bound to a deadline. Accepted permits are consumed by the ledger's
// allowance bookkeeping.
type PermitAuthorization struct {
	Owner     string `json:"owner" validate:"required"`
	Token     string `json:"token" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Deadline  int64  `json:"deadline" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

func (a *PermitAuthorization) Digest(domain Domain) ([]byte, error) {
	owner, err := parseAddress(a.Owner)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress(a.Token)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(a.Amount)
	if err != nil {
		return nil, err
	}

	structHash := crypto.Keccak256(
		permitTypeHash,
		gcommon.LeftPadBytes(owner.Bytes(), 32),
		gcommon.LeftPadBytes(token.Bytes(), 32),
		gcommon.LeftPadBytes(amount.Bytes(), 32),
		gcommon.LeftPadBytes(new(big.Int).SetInt64(a.Deadline).Bytes(), 32),
	)

	return typedDigest(domain, structHash), nil
}

func (a *PermitAuthorization) SignatureBytes() ([]byte, error) {
	return parseSignature(a.Signature)
}

func (a *PermitAuthorization) ArtifactOwner() (gcommon.Address, error) {
	return parseAddress(a.Owner)
}

func (a *PermitAuthorization) ExpiresAt() time.Time {
	return time.Unix(a.Deadline, 0)
}

func typedDigest(domain Domain, structHash []byte) []byte {
	return crypto.Keccak256([]byte{0x19, 0x01}, domain.separator(), structHash)
}

func parseAddress(s string) (gcommon.Address, error) {
	if !gcommon.IsHexAddress(s) {
		return gcommon.Address{}, fmt.Errorf("invalid address: %s", s)
	}
	return gcommon.HexToAddress(s), nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount: %s", s)
	}
	return amount, nil
}

func parseSignature(s string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	return sig, nil
}
