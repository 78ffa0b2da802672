// Package chain provides read-only access to the blockchain the consensus
// contract lives on: latest block height and range-filtered event logs.
//
// Grounded on the teacher's pkg/ethereum.Client (ethclient.Client wrapper)
// and pkg/anchor.EventWatcher's poll-and-filter loop, generalized into a
// single Reader interface the duplicate checker and transaction submitter
// both depend on.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Reader is the read-only chain access contract (spec 4.1). Implementations
// must retry transport failures internally; callers may layer their own
// retry policy on top.
type Reader interface {
	// LatestBlock returns the current chain height.
	LatestBlock(ctx context.Context) (uint64, error)

	// QueryLogs returns decoded logs for address, optionally filtered by
	// topics, within [fromBlock, toBlock] inclusive, in chain order
	// (ascending block, then ascending log index).
	QueryLogs(ctx context.Context, address common.Address, topics [][]common.Hash, fromBlock, toBlock uint64) ([]gethtypes.Log, error)
}

// TransportError wraps a transport-layer failure (RPC timeout, connection
// refused, ...) that the retry policy has already exhausted its budget on.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "chain: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
