// Package consensus holds the two wire-compatible shapes of the consensus
// contract's submitClaim method and accepted-claim event (spec 6, "Wire
// contract call (bit-exact)"). Which shape a given deployment speaks is a
// deployment-time fact read from configuration, never introspected.
package consensus

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/cartesi/rollups-node/pkg/types"
)

// Shape selects one of the two submitClaim ABI variants a consensus
// contract may expose.
type Shape int

const (
	// ShapeBlockRange is submitClaim(address, uint256 lastProcessedBlock, bytes32 claimHash).
	ShapeBlockRange Shape = iota
	// ShapeInputRange is submitClaim(address, (uint64,uint64) inputRange, bytes32 epochHash).
	ShapeInputRange
)

const blockRangeABI = `[
	{"type":"function","name":"submitClaim","inputs":[
		{"name":"application","type":"address"},
		{"name":"lastProcessedBlock","type":"uint256"},
		{"name":"claimHash","type":"bytes32"}
	]},
	{"type":"event","name":"ClaimSubmitted","inputs":[
		{"name":"application","type":"address","indexed":true},
		{"name":"lastProcessedBlock","type":"uint256","indexed":false},
		{"name":"claimHash","type":"bytes32","indexed":false}
	]}
]`

const inputRangeABI = `[
	{"type":"function","name":"submitClaim","inputs":[
		{"name":"application","type":"address"},
		{"name":"inputRange","type":"tuple","components":[
			{"name":"firstIndex","type":"uint64"},
			{"name":"lastIndex","type":"uint64"}
		]},
		{"name":"epochHash","type":"bytes32"}
	]},
	{"type":"event","name":"ClaimSubmitted","inputs":[
		{"name":"application","type":"address","indexed":true},
		{"name":"inputRange","type":"tuple","components":[
			{"name":"firstIndex","type":"uint64"},
			{"name":"lastIndex","type":"uint64"}
		],"indexed":false},
		{"name":"epochHash","type":"bytes32","indexed":false}
	]}
]`

// ABI wraps the parsed go-ethereum ABI for one shape and the event's topic
// hash, so both the submitter (encode) and the checker (decode) share a
// single source of truth.
type ABI struct {
	shape    Shape
	contract abi.ABI
	topic0   common.Hash
}

// New parses the ABI for the given shape.
func New(shape Shape) (*ABI, error) {
	var raw string
	switch shape {
	case ShapeBlockRange:
		raw = blockRangeABI
	case ShapeInputRange:
		raw = inputRangeABI
	default:
		return nil, fmt.Errorf("consensus: unknown abi shape %d", shape)
	}

	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("consensus: parse abi: %w", err)
	}
	event, ok := parsed.Events["ClaimSubmitted"]
	if !ok {
		return nil, fmt.Errorf("consensus: missing ClaimSubmitted event")
	}
	return &ABI{shape: shape, contract: parsed, topic0: event.ID}, nil
}

// Topic0 is the event signature hash to filter logs on.
func (a *ABI) Topic0() common.Hash {
	return a.topic0
}

// Shape returns which wire shape this ABI was built for.
func (a *ABI) Shape() Shape {
	return a.shape
}

// EncodeSubmitClaim packs the submitClaim call data for claim.
func (a *ABI) EncodeSubmitClaim(claim types.Claim) ([]byte, error) {
	app := common.BytesToAddress(claim.ApplicationAddress.Bytes())
	digest := [32]byte{}
	copy(digest[:], claim.Digest.Bytes())

	switch a.shape {
	case ShapeBlockRange:
		if !claim.Range.IsBlockRange {
			return nil, fmt.Errorf("consensus: claim carries an input range but this contract expects a block range")
		}
		return a.contract.Pack("submitClaim", app, new(big.Int).SetUint64(claim.Range.LastProcessedBlock), digest)

	case ShapeInputRange:
		if claim.Range.IsBlockRange {
			return nil, fmt.Errorf("consensus: claim carries a block range but this contract expects an input range")
		}
		inputRange := struct {
			FirstIndex uint64
			LastIndex  uint64
		}{claim.Range.FirstInputIndex, claim.Range.LastInputIndex}
		return a.contract.Pack("submitClaim", app, inputRange, digest)

	default:
		return nil, fmt.Errorf("consensus: unknown abi shape %d", a.shape)
	}
}

// DecodeAcceptedClaim implements checker.Decoder: it turns a ClaimSubmitted
// log back into the claim-equality key.
func (a *ABI) DecodeAcceptedClaim(l gethtypes.Log) (types.ClaimKey, error) {
	if len(l.Topics) == 0 || l.Topics[0] != a.topic0 {
		return types.ClaimKey{}, fmt.Errorf("consensus: log does not match ClaimSubmitted topic")
	}
	if len(l.Topics) < 2 {
		return types.ClaimKey{}, fmt.Errorf("consensus: log missing indexed application topic")
	}

	var app types.Address
	copy(app[:], l.Topics[1].Bytes()[12:])

	event := a.contract.Events["ClaimSubmitted"]
	values, err := event.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return types.ClaimKey{}, fmt.Errorf("consensus: unpack log data: %w", err)
	}

	var digest types.Hash
	var rng types.RangeDescriptor

	switch a.shape {
	case ShapeBlockRange:
		if len(values) != 2 {
			return types.ClaimKey{}, fmt.Errorf("consensus: unexpected field count %d", len(values))
		}
		lastBlock, ok := values[0].(*big.Int)
		if !ok {
			return types.ClaimKey{}, fmt.Errorf("consensus: unexpected lastProcessedBlock type")
		}
		rng = types.BlockRange(lastBlock.Uint64())
		h, ok := values[1].([32]byte)
		if !ok {
			return types.ClaimKey{}, fmt.Errorf("consensus: unexpected claimHash type")
		}
		digest = h

	case ShapeInputRange:
		if len(values) != 2 {
			return types.ClaimKey{}, fmt.Errorf("consensus: unexpected field count %d", len(values))
		}
		// go-ethereum unpacks a tuple into a dynamically generated struct
		// type (field order preserved, field names title-cased); reflect by
		// field name rather than asserting a concrete struct type, since the
		// generated type is not one this package can name.
		tuple := reflect.ValueOf(values[0])
		firstIdx := tuple.FieldByName("FirstIndex")
		lastIdx := tuple.FieldByName("LastIndex")
		if !firstIdx.IsValid() || !lastIdx.IsValid() {
			return types.ClaimKey{}, fmt.Errorf("consensus: unexpected inputRange shape")
		}
		rng = types.InputRange(firstIdx.Uint(), lastIdx.Uint())
		h, ok := values[1].([32]byte)
		if !ok {
			return types.ClaimKey{}, fmt.Errorf("consensus: unexpected epochHash type")
		}
		digest = h

	default:
		return types.ClaimKey{}, fmt.Errorf("consensus: unknown abi shape %d", a.shape)
	}

	return types.ClaimKey{Application: app, Range: rng, Digest: digest}, nil
}
