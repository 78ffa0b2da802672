package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	cases := []string{
		"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"0x0000000000000000000000000000000000000000"[:42],
	}
	for _, s := range cases {
		a, err := ParseAddress(s)
		require.NoError(t, err)
		require.Equal(t, a, mustParseAddress(t, a.Hex()))
		require.Equal(t, a, mustParseAddress(t, a.String()))
	}
}

func TestAddressParseRejectsWrongLength(t *testing.T) {
	_, err := ParseAddress("0xaa")
	require.Error(t, err)
}

func TestHashRoundTrip(t *testing.T) {
	h, err := ParseHash("0x" + "bb" + repeat("bb", 31))
	require.NoError(t, err)
	require.Equal(t, h, mustParseHash(t, h.Hex()))
	require.Equal(t, h, mustParseHash(t, h.String()))
}

func TestPayloadRoundTrip(t *testing.T) {
	p := Payload([]byte("hello rollup epoch"))
	s := p.String()
	got, err := ParsePayload(s)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestClaimKeyEquality(t *testing.T) {
	app := mustParseAddress(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	digest := mustParseHash(t, "0x"+repeat("bb", 32))

	c1 := Claim{ApplicationAddress: app, Range: InputRange(0, 6), Digest: digest}
	c2 := Claim{ApplicationAddress: app, Range: InputRange(0, 6), Digest: digest}
	c3 := Claim{ApplicationAddress: app, Range: InputRange(0, 7), Digest: digest}

	require.True(t, c1.Key().Equal(c2.Key()))
	require.False(t, c1.Key().Equal(c3.Key()))
}

func mustParseAddress(t *testing.T, s string) Address {
	t.Helper()
	a, err := ParseAddress(s)
	require.NoError(t, err)
	return a
}

func mustParseHash(t *testing.T, s string) Hash {
	t.Helper()
	h, err := ParseHash(s)
	require.NoError(t, err)
	return h
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
