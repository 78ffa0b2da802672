package signer

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestRawKeySignerRejectsMalformedKey(t *testing.T) {
	_, err := NewRawKeySecret("not-hex")
	require.Error(t, err)
}

func TestRawKeySignerAddressIsStable(t *testing.T) {
	secret, err := NewRawKeySecret("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	require.Equal(t, redactedSecret, secret.String())
	require.Equal(t, redactedSecret, secret.GoString())

	s1, err := NewRawKeySigner(secret)
	require.NoError(t, err)
	s2, err := NewRawKeySigner(secret)
	require.NoError(t, err)
	require.Equal(t, s1.Address(), s2.Address())
}

func TestRawKeySignerSignsDeterministically(t *testing.T) {
	secret, err := NewRawKeySecret("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	signer, err := NewRawKeySigner(secret)
	require.NoError(t, err)

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21000, To: nil, Value: big.NewInt(0)})
	signed, err := signer.SignTransaction(context.Background(), tx, big.NewInt(1337))
	require.NoError(t, err)
	require.NotNil(t, signed)

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), signed)
	require.NoError(t, err)
	require.Equal(t, signer.Address().String(), hex.EncodeToString(from.Bytes()))
}
