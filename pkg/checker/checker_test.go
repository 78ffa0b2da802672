package checker

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/cartesi/rollups-node/pkg/types"
)

type fakeReader struct {
	latest uint64
	logs   []gethtypes.Log
}

func (f *fakeReader) LatestBlock(ctx context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeReader) QueryLogs(ctx context.Context, address common.Address, topics [][]common.Hash, fromBlock, toBlock uint64) ([]gethtypes.Log, error) {
	var out []gethtypes.Log
	for _, l := range f.logs {
		if l.BlockNumber >= fromBlock && l.BlockNumber <= toBlock {
			out = append(out, l)
		}
	}
	return out, nil
}

// fakeDecoder maps a log's block number 1:1 to a deterministic claim key,
// so tests can assert membership without real ABI decoding.
type fakeDecoder struct {
	fail map[uint64]bool
}

func (d *fakeDecoder) DecodeAcceptedClaim(l gethtypes.Log) (types.ClaimKey, error) {
	if d.fail[l.BlockNumber] {
		return types.ClaimKey{}, errors.New("malformed log")
	}
	var app types.Address
	app[0] = byte(l.BlockNumber)
	return types.ClaimKey{Application: app, Range: types.BlockRange(l.BlockNumber)}, nil
}

func claimForBlock(n uint64) types.Claim {
	var app types.Address
	app[0] = byte(n)
	return types.Claim{ApplicationAddress: app, Range: types.BlockRange(n)}
}

func TestCheckerDepthTooHighWhenConfirmationsExceedLatest(t *testing.T) {
	reader := &fakeReader{latest: 5}
	c := New(reader, &fakeDecoder{}, common.Address{}, nil, 10, 0, nil)

	err := c.Update(context.Background())
	require.Error(t, err)
	var depthErr *DepthTooHigh
	require.ErrorAs(t, err, &depthErr)
}

func TestCheckerAccumulatesAcceptedClaims(t *testing.T) {
	reader := &fakeReader{
		latest: 10,
		logs: []gethtypes.Log{
			{BlockNumber: 1}, {BlockNumber: 2}, {BlockNumber: 9},
		},
	}
	c := New(reader, &fakeDecoder{}, common.Address{}, nil, 2, 0, nil)

	dup, err := c.IsDuplicate(context.Background(), claimForBlock(1))
	require.NoError(t, err)
	require.True(t, dup)

	dup, err = c.IsDuplicate(context.Background(), claimForBlock(9))
	require.NoError(t, err)
	require.False(t, dup, "block 9 is within the confirmation window and not yet scanned")

	require.Equal(t, uint64(9), c.NextBlock())
}

func TestCheckerSkipsUndecodableLogs(t *testing.T) {
	reader := &fakeReader{
		latest: 5,
		logs:   []gethtypes.Log{{BlockNumber: 1}, {BlockNumber: 2}},
	}
	c := New(reader, &fakeDecoder{fail: map[uint64]bool{2: true}}, common.Address{}, nil, 0, 0, nil)

	require.NoError(t, c.Prime(context.Background()))
	require.Equal(t, 1, c.Size())

	dup, err := c.IsDuplicate(context.Background(), claimForBlock(1))
	require.NoError(t, err)
	require.True(t, dup)
}

func TestCheckerNoOpAdvancesNothingWhenNoNewBlocks(t *testing.T) {
	reader := &fakeReader{latest: 0}
	c := New(reader, &fakeDecoder{}, common.Address{}, nil, 0, 0, nil)

	require.NoError(t, c.Update(context.Background()))
	require.Equal(t, uint64(1), c.NextBlock())

	require.NoError(t, c.Update(context.Background()))
	require.Equal(t, uint64(1), c.NextBlock())
}

// inputRangeDecoder decodes every log to the same application's input range,
// advancing last_input_index by one per log, for ExpectedNextIndex tests.
type inputRangeDecoder struct {
	app types.Address
}

func (d *inputRangeDecoder) DecodeAcceptedClaim(l gethtypes.Log) (types.ClaimKey, error) {
	return types.ClaimKey{Application: d.app, Range: types.InputRange(l.BlockNumber, l.BlockNumber)}, nil
}

func TestCheckerExpectedNextIndexTracksHighestAcceptedInputRange(t *testing.T) {
	var app types.Address
	app[0] = 0xAA

	reader := &fakeReader{
		latest: 10,
		logs:   []gethtypes.Log{{BlockNumber: 1}, {BlockNumber: 2}},
	}
	c := New(reader, &inputRangeDecoder{app: app}, common.Address{}, nil, 0, 0, nil)

	_, ok := c.ExpectedNextIndex(app)
	require.False(t, ok, "no accepted claims observed yet")

	require.NoError(t, c.Prime(context.Background()))

	expected, ok := c.ExpectedNextIndex(app)
	require.True(t, ok)
	require.Equal(t, uint64(3), expected)
}
