package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	ourtypes "github.com/cartesi/rollups-node/pkg/types"
)

// kmsAPI is the subset of the KMS client the signer needs, so tests can
// substitute a fake without reaching AWS.
type kmsAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// KMSSigner never holds the private key: every signature is produced by a
// remote call to AWS KMS (spec 4.2 "remote KMS" variant). The ECDSA public
// key is fetched once at construction to compute the on-chain address and to
// support recovery-id disambiguation at sign time. Grounded on the overall
// remote-signer shape of the teacher's ethereum.Client, extended with the
// KMS call surface from the Layr-Labs-eigenx-kms-go manifest in the example
// pack (aws-sdk-go-v2/service/kms, aws-sdk-go-v2/config).
type KMSSigner struct {
	client  kmsAPI
	keyID   string
	pubKey  *ecdsa.PublicKey
	address ourtypes.Address
}

// NewKMSSigner loads the default AWS config for region and fetches the
// public key for keyID once.
func NewKMSSigner(ctx context.Context, keyID, region string) (*KMSSigner, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, wrapUnavailable("kms_signer.load_config", err)
	}
	client := kms.NewFromConfig(cfg)
	return newKMSSigner(ctx, client, keyID)
}

func newKMSSigner(ctx context.Context, client kmsAPI, keyID string) (*KMSSigner, error) {
	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: &keyID})
	if err != nil {
		return nil, wrapUnavailable("kms_signer.get_public_key", err)
	}
	pub, err := derEncodedPublicKeyToECDSA(out.PublicKey)
	if err != nil {
		return nil, wrapRejected("kms_signer.parse_public_key", err)
	}
	var addr ourtypes.Address
	copy(addr[:], crypto.PubkeyToAddress(*pub).Bytes())
	return &KMSSigner{client: client, keyID: keyID, pubKey: pub, address: addr}, nil
}

// Address implements Signer.
func (s *KMSSigner) Address() ourtypes.Address {
	return s.address
}

// SignTransaction implements Signer. KMS returns an ASN.1 DER-encoded
// (r, s) pair with no recovery id; the recovery id is recovered by trying
// both candidates against the known public key, as go-ethereum requires a
// 65-byte [R || S || V] signature for transaction signing.
func (s *KMSSigner) SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	hash := signer.Hash(tx)

	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            &s.keyID,
		Message:          hash[:],
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, wrapUnavailable("kms_signer.sign", err)
	}

	sig, err := derSignatureToRSV(out.Signature, hash[:], s.pubKey)
	if err != nil {
		return nil, wrapRejected("kms_signer.recover", err)
	}

	signed, err := tx.WithSignature(signer, sig)
	if err != nil {
		return nil, wrapRejected("kms_signer.with_signature", err)
	}
	return signed, nil
}

type derSignature struct {
	R, S *big.Int
}

// derEncodedPublicKeyToECDSA parses the DER SubjectPublicKeyInfo KMS returns
// for an ECC_SECG_P256K1 key into a go-ethereum public key.
func derEncodedPublicKeyToECDSA(der []byte) (*ecdsa.PublicKey, error) {
	var spki struct {
		Algorithm asn1.RawValue
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, fmt.Errorf("unmarshal subject public key info: %w", err)
	}
	return crypto.UnmarshalPubkey(spki.PublicKey.Bytes)
}

// derSignatureToRSV turns a DER (r, s) pair into the 65-byte [R || S || V]
// form go-ethereum's WithSignature expects, disambiguating V by recovering
// against each candidate and comparing to the known public key.
func derSignatureToRSV(der, digest []byte, expected *ecdsa.PublicKey) ([]byte, error) {
	var sig derSignature
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("unmarshal signature: %w", err)
	}

	n := crypto.S256().Params().N
	halfN := new(big.Int).Rsh(n, 1)
	// KMS does not canonicalize s; go-ethereum (and most EVM clients) only
	// accept the low-s form.
	if sig.S.Cmp(halfN) > 0 {
		sig.S = new(big.Int).Sub(n, sig.S)
	}

	rsv := make([]byte, 65)
	sig.R.FillBytes(rsv[0:32])
	sig.S.FillBytes(rsv[32:64])

	for recID := byte(0); recID < 2; recID++ {
		rsv[64] = recID
		pub, err := crypto.SigToPub(digest, rsv)
		if err != nil {
			continue
		}
		if pub.X.Cmp(expected.X) == 0 && pub.Y.Cmp(expected.Y) == 0 {
			return rsv, nil
		}
	}
	return nil, errors.New("could not recover matching public key from kms signature")
}
