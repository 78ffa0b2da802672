// Package claimsource defines the claim-source contract shared by the
// database-queue and stream-broker variants (spec 4.4), and the two
// implementations themselves live in the dbsource and brokersource
// subpackages.
package claimsource

import (
	"context"
	"fmt"

	"github.com/cartesi/rollups-node/pkg/types"
)

// Handle identifies a claim previously returned by GetClaim, for the
// matching Acknowledge call. Its concrete shape is source-specific (a row
// id for the database variant, a stream+entry id for the broker variant).
type Handle interface{}

// ErrClaimMismatch indicates that a claim's input-index range does not pick
// up where the duplicate checker's on-chain projection last left off for
// that application (spec S3/S4): either a gap (non-sequential indexes) or
// an overlap whose digest doesn't match what was already accepted. Either
// way it indicates an upstream-producer bug; it is fatal and no transaction
// is submitted for the mismatched claim.
type ErrClaimMismatch struct {
	Application types.Address
	Expected    uint64
	Got         uint64
}

func (e *ErrClaimMismatch) Error() string {
	return fmt.Sprintf("claimsource: claim mismatch for application %s: expected first_input_index %d, got %d", e.Application.Hex(), e.Expected, e.Got)
}

// Source yields the next unsubmitted claim and accepts an acknowledgement
// once the claimer has dealt with it (spec 4.4).
type Source interface {
	// GetClaim blocks until a claim is available.
	GetClaim(ctx context.Context) (types.Claim, types.Address, Handle, error)

	// Acknowledge marks handle as dealt with. txHash is the zero hash when
	// the claim turned out to be a duplicate.
	Acknowledge(ctx context.Context, handle Handle, txHash types.Hash) error
}
