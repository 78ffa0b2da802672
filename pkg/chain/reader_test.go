package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{Op: "latest_block", Err: cause}

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "latest_block")
	require.Contains(t, err.Error(), "connection refused")
}
