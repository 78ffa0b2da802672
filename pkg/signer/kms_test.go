package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// fakeKMS backs a KMSSigner with a local secp256k1 key, so tests exercise
// the DER parsing and recovery-id logic without reaching AWS.
type fakeKMS struct {
	priv *ecdsa.PrivateKey
}

func newFakeKMS(t *testing.T) *fakeKMS {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fakeKMS{priv: priv}
}

func (f *fakeKMS) GetPublicKey(ctx context.Context, in *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	type spki struct {
		Algorithm asn1.RawValue
		PublicKey asn1.BitString
	}
	der, err := asn1.Marshal(spki{
		Algorithm: asn1.RawValue{Class: 0, Tag: 16, IsCompound: true, Bytes: []byte{}},
		PublicKey: asn1.BitString{Bytes: crypto.FromECDSAPub(&f.priv.PublicKey), BitLength: len(crypto.FromECDSAPub(&f.priv.PublicKey)) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKMS) Sign(ctx context.Context, in *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	der, err := ecdsa.SignASN1(rand.Reader, f.priv, in.Message)
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func TestKMSSignerDerivesAddressAndSigns(t *testing.T) {
	fake := newFakeKMS(t)
	s, err := newKMSSigner(context.Background(), fake, "test-key")
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(fake.priv.PublicKey).Bytes(), s.Address().Bytes())

	tx := types.NewTx(&types.LegacyTx{Nonce: 0, GasPrice: big.NewInt(1), Gas: 21000, To: nil, Value: big.NewInt(0)})
	signed, err := s.SignTransaction(context.Background(), tx, big.NewInt(1337))
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1337)), signed)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(fake.priv.PublicKey), from)
}
