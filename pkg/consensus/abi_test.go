package consensus

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/cartesi/rollups-node/pkg/types"
)

func mustAddress(t *testing.T, s string) types.Address {
	t.Helper()
	a, err := types.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func mustHash(t *testing.T, s string) types.Hash {
	t.Helper()
	h, err := types.ParseHash(s)
	require.NoError(t, err)
	return h
}

func TestBlockRangeShapeEncodesSubmitClaim(t *testing.T) {
	a, err := New(ShapeBlockRange)
	require.NoError(t, err)

	app := mustAddress(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	digest := mustHash(t, "0x"+repeatHex("bb", 32))
	claim := types.Claim{ApplicationAddress: app, Range: types.BlockRange(42), Digest: digest}

	data, err := a.EncodeSubmitClaim(claim)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	_, err = a.EncodeSubmitClaim(types.Claim{ApplicationAddress: app, Range: types.InputRange(0, 1), Digest: digest})
	require.Error(t, err, "an input-range claim must be rejected by a block-range contract")
}

func TestBlockRangeShapeDecodesAcceptedClaimLog(t *testing.T) {
	a, err := New(ShapeBlockRange)
	require.NoError(t, err)

	app := mustAddress(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	digest := mustHash(t, "0x"+repeatHex("bb", 32))

	event := a.contract.Events["ClaimSubmitted"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(42), [32]byte(digest))
	require.NoError(t, err)

	l := gethtypes.Log{
		Topics: []common.Hash{a.Topic0(), common.BytesToHash(app.Bytes())},
		Data:   data,
	}

	key, err := a.DecodeAcceptedClaim(l)
	require.NoError(t, err)
	require.True(t, key.Application.Equal(app))
	require.True(t, key.Range.IsBlockRange)
	require.Equal(t, uint64(42), key.Range.LastProcessedBlock)
	require.True(t, key.Digest.Equal(digest))
}

func TestInputRangeShapeEncodesAndDecodes(t *testing.T) {
	a, err := New(ShapeInputRange)
	require.NoError(t, err)

	app := mustAddress(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	digest := mustHash(t, "0x"+repeatHex("cc", 32))
	claim := types.Claim{ApplicationAddress: app, Range: types.InputRange(3, 9), Digest: digest}

	data, err := a.EncodeSubmitClaim(claim)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	event := a.contract.Events["ClaimSubmitted"]
	eventData, err := event.Inputs.NonIndexed().Pack(struct {
		FirstIndex uint64
		LastIndex  uint64
	}{3, 9}, [32]byte(digest))
	require.NoError(t, err)

	l := gethtypes.Log{
		Topics: []common.Hash{a.Topic0(), common.BytesToHash(app.Bytes())},
		Data:   eventData,
	}
	key, err := a.DecodeAcceptedClaim(l)
	require.NoError(t, err)
	require.False(t, key.Range.IsBlockRange)
	require.Equal(t, uint64(3), key.Range.FirstInputIndex)
	require.Equal(t, uint64(9), key.Range.LastInputIndex)
	require.True(t, key.Digest.Equal(digest))
}

func TestUnknownShapeRejected(t *testing.T) {
	_, err := New(Shape(99))
	require.Error(t, err)
}

func repeatHex(pair string, n int) string {
	out := make([]byte, 0, len(pair)*n)
	for i := 0; i < n; i++ {
		out = append(out, pair...)
	}
	return string(out)
}
