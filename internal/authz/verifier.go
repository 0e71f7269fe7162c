package authz

import (
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	gcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/autosave-fi/autosave/internal/types"
)

// Verifier checks authorization artifacts against one ledger domain.
type Verifier struct {
	domain Domain
}

func NewVerifier(domain Domain) *Verifier {
	return &Verifier{domain: domain}
}

// Verify recomputes the artifact digest, recovers the signer and checks it
// against the claimed owner and the deadline. It returns the owner address on
// success. Rejection carries no side effects; in particular the owner's
// authorization nonce is only advanced by the ledger after Verify succeeds.
func (v *Verifier) Verify(artifact Artifact, now time.Time) (gcommon.Address, error) {
	owner, err := artifact.ArtifactOwner()
	if err != nil {
		return gcommon.Address{}, fmt.Errorf("%w: %v", types.ErrAuthorizationRejected, err)
	}

	if now.After(artifact.ExpiresAt()) {
		return gcommon.Address{}, fmt.Errorf("%w: artifact expired at %s", types.ErrAuthorizationRejected, artifact.ExpiresAt().UTC())
	}

	digest, err := artifact.Digest(v.domain)
	if err != nil {
		return gcommon.Address{}, fmt.Errorf("%w: %v", types.ErrAuthorizationRejected, err)
	}

	sig, err := artifact.SignatureBytes()
	if err != nil {
		return gcommon.Address{}, fmt.Errorf("%w: %v", types.ErrAuthorizationRejected, err)
	}

	// wallets emit V as 27/28, go-ethereum expects 0/1
	recSig := make([]byte, crypto.SignatureLength)
	copy(recSig, sig)
	if recSig[crypto.SignatureLength-1] >= 27 {
		recSig[crypto.SignatureLength-1] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, recSig)
	if err != nil {
		return gcommon.Address{}, fmt.Errorf("%w: failed to recover signer: %v", types.ErrAuthorizationRejected, err)
	}

	if _, err := secp256k1.ParsePubKey(crypto.CompressPubkey(pubKey)); err != nil {
		return gcommon.Address{}, fmt.Errorf("%w: invalid signer public key: %v", types.ErrAuthorizationRejected, err)
	}

	signer := crypto.PubkeyToAddress(*pubKey)
	if signer != owner {
		return gcommon.Address{}, fmt.Errorf("%w: signer %s does not match owner %s", types.ErrAuthorizationRejected, signer.Hex(), owner.Hex())
	}

	return owner, nil
}
