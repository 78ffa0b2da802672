// Package checker maintains an in-memory projection of on-chain accepted
// claims, built by replaying consensus-contract logs from a genesis block up
// to latest - confirmations. It answers a single question: is this claim
// already on chain?
//
// Grounded on the teacher's pkg/anchor.EventWatcher poll-and-decode loop
// (block-range filtering, typed per-topic log parsing) adapted from a
// push-dispatch model to a pull-on-demand cache the claimer consults before
// every submission.
package checker

import (
	"context"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/cartesi/rollups-node/pkg/chain"
	"github.com/cartesi/rollups-node/pkg/types"
)

// DepthTooHigh is returned when the configured confirmation depth exceeds
// the chain's current height (spec 4.3): there is no valid upper bound to
// scan to yet.
type DepthTooHigh struct {
	Depth  uint64
	Latest uint64
}

func (e *DepthTooHigh) Error() string {
	return fmt.Sprintf("checker: confirmation depth %d exceeds latest block %d", e.Depth, e.Latest)
}

// Decoder turns a raw log into an accepted-claim key. Its shape depends on
// the deployed consensus contract's ABI (spec 6: a deployment-time fact),
// so it is supplied by the caller rather than fixed here.
type Decoder interface {
	DecodeAcceptedClaim(l gethtypes.Log) (types.ClaimKey, error)
}

// Checker is the duplicate-checker projection (spec 4.3). It is not
// safe for concurrent use: the claimer loop is its sole mutator.
type Checker struct {
	reader        chain.Reader
	decoder       Decoder
	logger        *log.Logger
	consensusAddr common.Address
	topics        [][]common.Hash
	confirmations uint64
	genesisBlock  uint64

	claims       map[types.ClaimKey]struct{}
	lastAccepted map[types.Address]types.RangeDescriptor
	nextBlock    uint64
	primed       bool
}

// New builds a Checker starting its cursor at genesisBlock. It does not
// perform any I/O; call Prime or IsDuplicate to populate the projection.
// topics, when non-nil, is passed through to every QueryLogs call
// unmodified (the entrypoint passes only the accepted-claim event's topic0;
// no application-address topic is added).
func New(reader chain.Reader, decoder Decoder, consensusAddr common.Address, topics [][]common.Hash, confirmations, genesisBlock uint64, logger *log.Logger) *Checker {
	if logger == nil {
		logger = log.New(log.Writer(), "[checker] ", log.LstdFlags)
	}
	return &Checker{
		reader:        reader,
		decoder:       decoder,
		logger:        logger,
		consensusAddr: consensusAddr,
		topics:        topics,
		confirmations: confirmations,
		genesisBlock:  genesisBlock,
		claims:        make(map[types.ClaimKey]struct{}),
		lastAccepted:  make(map[types.Address]types.RangeDescriptor),
		nextBlock:     genesisBlock,
	}
}

// Prime performs the first update; per spec 4.3's state machine
// (Fresh -> Primed), callers that want to fail fast on startup rather than
// on the first claim should call this once before serving traffic. It is a
// no-op on every call after the first successful one.
func (c *Checker) Prime(ctx context.Context) error {
	if c.primed {
		return nil
	}
	if err := c.Update(ctx); err != nil {
		return fmt.Errorf("checker: prime: %w", err)
	}
	c.primed = true
	return nil
}

// Update queries logs from nextBlock to latest-confirmations and folds any
// newly observed accepted claims into the set (spec 4.3).
func (c *Checker) Update(ctx context.Context) error {
	latest, err := c.reader.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("checker: update: %w", err)
	}
	if c.confirmations > latest {
		return &DepthTooHigh{Depth: c.confirmations, Latest: latest}
	}

	upperBound := latest - c.confirmations
	if upperBound < c.nextBlock {
		return nil
	}

	logs, err := c.reader.QueryLogs(ctx, c.consensusAddr, c.topics, c.nextBlock, upperBound)
	if err != nil {
		return fmt.Errorf("checker: update: query logs: %w", err)
	}

	for _, l := range logs {
		key, err := c.decoder.DecodeAcceptedClaim(l)
		if err != nil {
			c.logger.Printf("skipping undecodable log at block %d index %d: %v", l.BlockNumber, l.Index, err)
			continue
		}
		c.claims[key] = struct{}{}
		c.recordAccepted(key)
	}

	c.nextBlock = upperBound + 1
	return nil
}

// IsDuplicate calls Update first, then reports whether claim is already
// present in the projection (spec 4.3).
func (c *Checker) IsDuplicate(ctx context.Context, claim types.Claim) (bool, error) {
	if err := c.Update(ctx); err != nil {
		return false, err
	}
	_, ok := c.claims[claim.Key()]
	return ok, nil
}

// recordAccepted tracks the highest input-index range seen per application,
// so callers can enforce spec S3/S4's index-alignment invariant. Block-range
// claims carry no sequential index and are not tracked.
func (c *Checker) recordAccepted(key types.ClaimKey) {
	if key.Range.IsBlockRange {
		return
	}
	if existing, ok := c.lastAccepted[key.Application]; !ok || key.Range.LastInputIndex > existing.LastInputIndex {
		c.lastAccepted[key.Application] = key.Range
	}
}

// ExpectedNextIndex reports the first_input_index a novel claim for app must
// carry next, derived from the last accepted input-range claim the
// projection has observed for it (spec S3/S4). ok is false when the
// application has no accepted input-range claim yet, meaning there is no
// baseline to check alignment against.
func (c *Checker) ExpectedNextIndex(app types.Address) (expected uint64, ok bool) {
	last, ok := c.lastAccepted[app]
	if !ok {
		return 0, false
	}
	return last.LastInputIndex + 1, true
}

// NextBlock exposes the current cursor, mainly for tests and diagnostics.
func (c *Checker) NextBlock() uint64 {
	return c.nextBlock
}

// Size reports how many accepted claims are currently cached.
func (c *Checker) Size() int {
	return len(c.claims)
}
