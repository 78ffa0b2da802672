// Package dbsource is the database-queue claim-source variant (spec 4.4.1):
// a Postgres-backed queue of computed epochs, selected oldest-first and
// transitioned to CLAIM_SUBMITTED on acknowledgement.
//
// Grounded on the teacher's pkg/database (Client pool/migrate shape) and
// pkg/database/repository_anchor.go (parameterized SQL, sentinel not-found
// errors), adapted from anchor-artifact storage to the epoch/application
// queue spec.md 4.4.1 defines.
package dbsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cartesi/rollups-node/pkg/claimsource"
	"github.com/cartesi/rollups-node/pkg/types"
)

// defaultPollInterval is the busy-retry cadence used when New is given a
// zero pollInterval; spec 4.4.1 leaves the cadence implementation-chosen.
const defaultPollInterval = 500 * time.Millisecond

const (
	statusComputed  = "CLAIM_COMPUTED"
	statusSubmitted = "CLAIM_SUBMITTED"
)

// Source is the database-queue Source implementation.
type Source struct {
	db           *sql.DB
	pollInterval time.Duration
	logger       *log.Logger
}

// New wraps an already-open, already-migrated database handle. A zero
// pollInterval falls back to defaultPollInterval.
func New(db *sql.DB, pollInterval time.Duration, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.New(log.Writer(), "[dbsource] ", log.LstdFlags)
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Source{db: db, pollInterval: pollInterval, logger: logger}
}

// handle is the epoch row id, returned to Acknowledge.
type handle int64

// GetClaim implements claimsource.Source: it selects the oldest
// CLAIM_COMPUTED epoch joined to its application, busy-polling until one
// appears (spec 4.4.1). The claimer enforces index-alignment across
// successive claims (spec S3/S4); this method only ever returns what the
// queue holds and does not validate sequencing itself.
func (s *Source) GetClaim(ctx context.Context) (types.Claim, types.Address, claimsource.Handle, error) {
	for {
		claim, consensusAddr, id, err := s.tryFetch(ctx)
		if err == nil {
			return claim, consensusAddr, handle(id), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return types.Claim{}, types.Address{}, nil, fmt.Errorf("dbsource: get claim: %w", err)
		}

		select {
		case <-ctx.Done():
			return types.Claim{}, types.Address{}, nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *Source) tryFetch(ctx context.Context) (types.Claim, types.Address, int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	row := s.db.QueryRowContext(queryCtx, `
		SELECT e.id, e.application_address, a.consensus_address,
		       e.is_block_range, e.first_input_index, e.last_input_index, e.last_processed_block,
		       e.digest
		FROM epoch e
		JOIN application a ON a.contract_address = e.application_address
		WHERE e.status = $1
		ORDER BY e.index ASC, e.id ASC
		LIMIT 1`, statusComputed)

	var (
		id                                        int64
		appHex, consensusHex, digestHex           string
		isBlockRange                              bool
		firstInput, lastInput, lastProcessedBlock int64
	)
	err := row.Scan(&id, &appHex, &consensusHex, &isBlockRange, &firstInput, &lastInput, &lastProcessedBlock, &digestHex)
	if err != nil {
		return types.Claim{}, types.Address{}, 0, err
	}

	app, err := types.ParseAddress(appHex)
	if err != nil {
		return types.Claim{}, types.Address{}, 0, fmt.Errorf("dbsource: decode application address: %w", err)
	}
	consensus, err := types.ParseAddress(consensusHex)
	if err != nil {
		return types.Claim{}, types.Address{}, 0, fmt.Errorf("dbsource: decode consensus address: %w", err)
	}
	digest, err := types.ParseHash(digestHex)
	if err != nil {
		return types.Claim{}, types.Address{}, 0, fmt.Errorf("dbsource: decode digest: %w", err)
	}

	var rng types.RangeDescriptor
	if isBlockRange {
		rng = types.BlockRange(uint64(lastProcessedBlock))
	} else {
		rng = types.InputRange(uint64(firstInput), uint64(lastInput))
	}

	claimID := uint64(id)
	claim := types.Claim{
		ApplicationAddress: app,
		ConsensusAddress:   consensus,
		Range:              rng,
		Digest:             digest,
		ID:                 &claimID,
	}

	return claim, consensus, id, nil
}

// Acknowledge implements claimsource.Source: it transitions the epoch to
// CLAIM_SUBMITTED and records txHash, which is the zero hash for a
// duplicate (spec 4.4.1).
func (s *Source) Acknowledge(ctx context.Context, h claimsource.Handle, txHash types.Hash) error {
	id, ok := h.(handle)
	if !ok {
		return fmt.Errorf("dbsource: acknowledge: handle %v is not a database handle", h)
	}

	queryCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	_, err := s.db.ExecContext(queryCtx, `
		UPDATE epoch SET status = $1, transaction_hash = $2 WHERE id = $3`,
		statusSubmitted, txHash.String(), int64(id))
	if err != nil {
		return fmt.Errorf("dbsource: acknowledge epoch %d: %w", id, err)
	}
	return nil
}
