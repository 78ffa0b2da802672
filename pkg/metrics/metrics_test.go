package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestIncClaimsSentIncrementsLabeledCounter(t *testing.T) {
	r := New()
	r.IncClaimsSent("1337", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	r.IncClaimsSent("1337", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	r.IncClaimsSent("1", "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	require.Equal(t, float64(2), testutil.ToFloat64(r.claimsSent.WithLabelValues("1337", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.claimsSent.WithLabelValues("1", "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")))
}
