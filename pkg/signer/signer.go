// Package signer produces signed transaction payloads for the configured
// chain id. Three mutually-exclusive variants are supported: a raw private
// key, a BIP-39 mnemonic, and a remote AWS KMS key — selected once at
// startup (spec 4.2), precedence raw key -> mnemonic -> KMS.
//
// Grounded on the teacher's pkg/ethereum.Client key handling (CreateTransactor,
// GetPublicAddress) for the raw-key shape, and extended with mnemonic (BIP-39,
// github.com/tyler-smith/go-bip39, as used by Jason-chen-taiwan-arcSignv2's
// bip39service) and remote-KMS (github.com/aws/aws-sdk-go-v2/service/kms)
// variants the teacher does not itself need.
package signer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	ourtypes "github.com/cartesi/rollups-node/pkg/types"
)

// ErrSignerUnavailable is a transient failure (KMS throttled, network
// blip); callers may retry.
var ErrSignerUnavailable = errors.New("signer: unavailable")

// ErrSignerRejected is a fatal failure for the given transaction (malformed
// input, KMS key disabled); retrying the same transaction will not help.
var ErrSignerRejected = errors.New("signer: rejected")

// Signer produces a signed transaction for a given unsigned transaction
// and chain id.
type Signer interface {
	// Address returns the signer's on-chain address.
	Address() ourtypes.Address

	// SignTransaction returns a copy of tx carrying the signature.
	SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// redactedSecret is the fixed marker every secret-carrying value's
// String/GoString must return instead of the real value (spec 4.2).
const redactedSecret = "<redacted>"

func wrapUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrSignerUnavailable, err)
}

func wrapRejected(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrSignerRejected, err)
}
