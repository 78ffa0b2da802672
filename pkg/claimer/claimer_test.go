package claimer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartesi/rollups-node/pkg/claimsource"
	"github.com/cartesi/rollups-node/pkg/types"
)

type fakeSource struct {
	claims    []types.Claim
	addrs     []types.Address
	acked     []types.Hash
	nextIndex int
}

func (f *fakeSource) GetClaim(ctx context.Context) (types.Claim, types.Address, claimsource.Handle, error) {
	if f.nextIndex >= len(f.claims) {
		return types.Claim{}, types.Address{}, nil, errors.New("no more claims")
	}
	i := f.nextIndex
	f.nextIndex++
	return f.claims[i], f.addrs[i], i, nil
}

func (f *fakeSource) Acknowledge(ctx context.Context, h claimsource.Handle, txHash types.Hash) error {
	f.acked = append(f.acked, txHash)
	return nil
}

type fakeChecker struct {
	duplicateFor map[int]bool
	calls        int

	expected   uint64
	expectedOK bool
}

func (f *fakeChecker) IsDuplicate(ctx context.Context, claim types.Claim) (bool, error) {
	defer func() { f.calls++ }()
	return f.duplicateFor[f.calls], nil
}

func (f *fakeChecker) ExpectedNextIndex(app types.Address) (uint64, bool) {
	return f.expected, f.expectedOK
}

type fakeMetrics struct {
	incremented int
}

func (f *fakeMetrics) IncClaimsSent(chainID, dappAddress string) {
	f.incremented++
}

func testClaim(appByte byte) types.Claim {
	var app types.Address
	app[0] = appByte
	return types.Claim{ApplicationAddress: app, Range: types.BlockRange(1)}
}

func inputRangeClaim(appByte byte, first, last uint64) types.Claim {
	var app types.Address
	app[0] = appByte
	return types.Claim{ApplicationAddress: app, Range: types.InputRange(first, last)}
}

func TestStepAcknowledgesDuplicateWithZeroHashAndSkipsSubmit(t *testing.T) {
	source := &fakeSource{claims: []types.Claim{testClaim(1)}, addrs: []types.Address{{}}}
	checker := &fakeChecker{duplicateFor: map[int]bool{0: true}}
	metrics := &fakeMetrics{}

	l := New(source, checker, nil, metrics, "1337", nil)
	require.NoError(t, l.step(context.Background()))

	require.Len(t, source.acked, 1)
	require.True(t, source.acked[0].IsZero())
	require.Equal(t, 0, metrics.incremented)
}

func TestStepReturnsClaimMismatchOnIndexGap(t *testing.T) {
	claim := inputRangeClaim(1, 11, 15)
	source := &fakeSource{claims: []types.Claim{claim}, addrs: []types.Address{{}}}
	checker := &fakeChecker{expected: 7, expectedOK: true}
	metrics := &fakeMetrics{}

	l := New(source, checker, nil, metrics, "1337", nil)
	err := l.step(context.Background())

	var mismatch *claimsource.ErrClaimMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, uint64(7), mismatch.Expected)
	require.Equal(t, uint64(11), mismatch.Got)
	require.Empty(t, source.acked)
	require.Equal(t, 0, metrics.incremented)
}

func TestStepReturnsClaimMismatchOnNonByteEqualOverlap(t *testing.T) {
	claim := inputRangeClaim(1, 6, 7)
	source := &fakeSource{claims: []types.Claim{claim}, addrs: []types.Address{{}}}
	checker := &fakeChecker{duplicateFor: map[int]bool{}, expected: 7, expectedOK: true}
	metrics := &fakeMetrics{}

	l := New(source, checker, nil, metrics, "1337", nil)
	err := l.step(context.Background())

	var mismatch *claimsource.ErrClaimMismatch
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, uint64(7), mismatch.Expected)
	require.Equal(t, uint64(6), mismatch.Got)
}

func TestStepAcknowledgesDuplicateInputRangeClaimWithNoBaseline(t *testing.T) {
	claim := inputRangeClaim(1, 0, 0)
	source := &fakeSource{claims: []types.Claim{claim}, addrs: []types.Address{{}}}
	checker := &fakeChecker{duplicateFor: map[int]bool{0: true}, expectedOK: false}
	metrics := &fakeMetrics{}

	l := New(source, checker, nil, metrics, "1337", nil)
	require.NoError(t, l.step(context.Background()))
	require.Len(t, source.acked, 1)
}

func TestStepPropagatesGetClaimError(t *testing.T) {
	source := &fakeSource{}
	checker := &fakeChecker{}
	metrics := &fakeMetrics{}

	l := New(source, checker, nil, metrics, "1337", nil)
	err := l.step(context.Background())
	require.Error(t, err)
}
