package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestMnemonicSecretRejectsInvalidPhrase(t *testing.T) {
	_, err := NewMnemonicSecret("not a valid bip39 phrase at all")
	require.Error(t, err)
}

func TestMnemonicSignerIsDeterministic(t *testing.T) {
	secret, err := NewMnemonicSecret(testMnemonic)
	require.NoError(t, err)
	require.Equal(t, redactedSecret, secret.String())

	s1, err := NewMnemonicSigner(secret, 0)
	require.NoError(t, err)
	s2, err := NewMnemonicSigner(secret, 0)
	require.NoError(t, err)
	require.Equal(t, s1.Address(), s2.Address())
}

func TestMnemonicSignerAccountIndexChangesAddress(t *testing.T) {
	secret, err := NewMnemonicSecret(testMnemonic)
	require.NoError(t, err)

	s0, err := NewMnemonicSigner(secret, 0)
	require.NoError(t, err)
	s1, err := NewMnemonicSigner(secret, 1)
	require.NoError(t, err)

	require.NotEqual(t, s0.Address(), s1.Address())
}
