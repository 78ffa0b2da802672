// Package claimer is the top-level sequencer (C6), wiring the claim
// source, duplicate checker, and transaction submitter exactly as spec.md
// 4.6 describes: fetch, dedup, maybe submit, acknowledge.
package claimer

import (
	"context"
	"fmt"
	"log"

	"github.com/cartesi/rollups-node/pkg/claimsource"
	"github.com/cartesi/rollups-node/pkg/submitter"
	"github.com/cartesi/rollups-node/pkg/types"
)

// Checker is the subset of checker.Checker the loop depends on.
type Checker interface {
	IsDuplicate(ctx context.Context, claim types.Claim) (bool, error)

	// ExpectedNextIndex reports the first_input_index a novel input-range
	// claim for app must carry next, given the last accepted claim the
	// checker has observed for it (spec S3/S4). ok is false when there is no
	// baseline yet, in which case alignment is not checked.
	ExpectedNextIndex(app types.Address) (expected uint64, ok bool)
}

// Submitter is implemented by *submitter.Submitter. It is expressed as a
// concrete type rather than an interface because Send's consume-return
// contract is self-referential (it returns the next Submitter to call
// through); Go interfaces cannot express that covariantly, so the loop
// depends on the concrete type directly.
type Submitter = *submitter.Submitter

// MetricsSink receives a counter increment per confirmed submission.
type MetricsSink interface {
	IncClaimsSent(chainID, dappAddress string)
}

// Loop is the claimer's sequencer state (spec 4.6). It is not safe for
// concurrent use: it is meant to run on a single goroutine.
type Loop struct {
	source  claimsource.Source
	checker Checker
	submit  Submitter
	metrics MetricsSink
	chainID string
	logger  *log.Logger
}

// New builds a Loop. submit is the concrete *submitter.Submitter (see the
// Submitter alias); the loop replaces it with the value each Send returns.
func New(source claimsource.Source, checker Checker, submit Submitter, metrics MetricsSink, chainID string, logger *log.Logger) *Loop {
	if logger == nil {
		logger = log.New(log.Writer(), "[claimer] ", log.LstdFlags)
	}
	return &Loop{source: source, checker: checker, submit: submit, metrics: metrics, chainID: chainID, logger: logger}
}

// Run executes the fetch -> dedup -> submit -> acknowledge sequence
// forever, until ctx is canceled or a non-recoverable error occurs.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.step(ctx); err != nil {
			return fmt.Errorf("claimer: %w", err)
		}
	}
}

// step performs exactly one iteration of the loop (spec 4.6); split out
// from Run so tests can drive it without relying on cancellation races.
func (l *Loop) step(ctx context.Context) error {
	claim, consensusAddr, handle, err := l.source.GetClaim(ctx)
	if err != nil {
		return fmt.Errorf("get claim: %w", err)
	}
	claim.ConsensusAddress = consensusAddr

	dup, err := l.checker.IsDuplicate(ctx, claim)
	if err != nil {
		return fmt.Errorf("is duplicate: %w", err)
	}
	if dup {
		if err := l.source.Acknowledge(ctx, handle, types.ZeroHash); err != nil {
			return fmt.Errorf("acknowledge duplicate: %w", err)
		}
		return nil
	}

	// spec S3/S4: a novel input-range claim must pick up exactly where the
	// last accepted claim for this application left off. A gap or a
	// different-digest overlap is a fatal upstream-producer bug; no
	// transaction is submitted for it.
	if !claim.Range.IsBlockRange {
		if expected, ok := l.checker.ExpectedNextIndex(claim.ApplicationAddress); ok && expected != claim.Range.FirstInputIndex {
			return &claimsource.ErrClaimMismatch{
				Application: claim.ApplicationAddress,
				Expected:    expected,
				Got:         claim.Range.FirstInputIndex,
			}
		}
	}

	next, txHash, err := l.submit.Send(ctx, claim, consensusAddr)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	l.submit = next

	if err := l.source.Acknowledge(ctx, handle, txHash); err != nil {
		return fmt.Errorf("acknowledge submission: %w", err)
	}

	l.metrics.IncClaimsSent(l.chainID, claim.ApplicationAddress.Hex())
	return nil
}
