package types

import "fmt"

// RangeDescriptor identifies the span of a finalized epoch, either by
// input-index range or by last processed block, depending on the consensus
// ABI shape the deployed contract advertises. Exactly one of the two forms
// is populated; callers must know which shape applies to their consensus
// contract (spec 6: the shape is a deployment-time fact).
type RangeDescriptor struct {
	// IsBlockRange selects the (last_processed_block) shape when true and
	// the (first_input_index, last_input_index) shape when false.
	IsBlockRange bool

	FirstInputIndex    uint64
	LastInputIndex     uint64
	LastProcessedBlock uint64
}

// InputRange builds a range descriptor for the (first, last) input-index ABI shape.
func InputRange(first, last uint64) RangeDescriptor {
	return RangeDescriptor{IsBlockRange: false, FirstInputIndex: first, LastInputIndex: last}
}

// BlockRange builds a range descriptor for the last-processed-block ABI shape.
func BlockRange(lastProcessedBlock uint64) RangeDescriptor {
	return RangeDescriptor{IsBlockRange: true, LastProcessedBlock: lastProcessedBlock}
}

// Equal performs byte-exact comparison; truncation of LastProcessedBlock to
// a smaller width is forbidden by spec 4.3 and never happens here since both
// sides are compared as full uint64s.
func (r RangeDescriptor) Equal(other RangeDescriptor) bool {
	if r.IsBlockRange != other.IsBlockRange {
		return false
	}
	if r.IsBlockRange {
		return r.LastProcessedBlock == other.LastProcessedBlock
	}
	return r.FirstInputIndex == other.FirstInputIndex && r.LastInputIndex == other.LastInputIndex
}

func (r RangeDescriptor) String() string {
	if r.IsBlockRange {
		return fmt.Sprintf("block<=%d", r.LastProcessedBlock)
	}
	return fmt.Sprintf("[%d,%d]", r.FirstInputIndex, r.LastInputIndex)
}

// Claim is a finalized rollup epoch's settlement-relevant summary, carried
// from a claim source to the submitter. Digest holds either an epoch_hash or
// an output_merkle_root; which one is a property of the consensus ABI shape
// in use, mirrored 1:1 with Range.IsBlockRange.
type Claim struct {
	ApplicationAddress Address
	ConsensusAddress   Address
	Range              RangeDescriptor
	Digest             Hash

	// ID is an optional handle into the source-side queue; populated only
	// by the database-queue claim source variant.
	ID *uint64
}

// ClaimKey is the byte-exact equality tuple (application, range, digest)
// spec.md 3 defines: two claims are the same claim iff their keys are equal.
type ClaimKey struct {
	Application Address
	Range       RangeDescriptor
	Digest      Hash
}

// Key returns the equality tuple for this claim.
func (c Claim) Key() ClaimKey {
	return ClaimKey{Application: c.ApplicationAddress, Range: c.Range, Digest: c.Digest}
}

// Equal reports whether two claims are the same claim per spec.md 3.
func (k ClaimKey) Equal(other ClaimKey) bool {
	return k.Application.Equal(other.Application) && k.Range.Equal(other.Range) && k.Digest.Equal(other.Digest)
}
