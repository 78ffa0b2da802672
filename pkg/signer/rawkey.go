package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	ourtypes "github.com/cartesi/rollups-node/pkg/types"
)

// RawKeySecret wraps a raw private key so it never round-trips through a log
// line, %v format, or panic message (spec 4.2: secrets must have a redacted
// String/GoString). Grounded on the teacher's ethereum.Client.PrivateKeyToHex,
// inverted here to keep the key out of any default formatting path.
type RawKeySecret struct {
	key *ecdsa.PrivateKey
}

// NewRawKeySecret parses a hex-encoded secp256k1 private key (with or
// without a leading 0x).
func NewRawKeySecret(hexKey string) (RawKeySecret, error) {
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return RawKeySecret{}, fmt.Errorf("signer: parse raw key: %w", err)
	}
	return RawKeySecret{key: key}, nil
}

func (RawKeySecret) String() string  { return redactedSecret }
func (RawKeySecret) GoString() string { return redactedSecret }

func trim0x(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s[2:]
	}
	return s
}

// RawKeySigner signs with an in-memory secp256k1 key held for the lifetime
// of the process. Grounded on the teacher's CreateTransactor/GetPublicAddress
// pair in pkg/ethereum/client.go.
type RawKeySigner struct {
	secret  RawKeySecret
	address ourtypes.Address
}

// NewRawKeySigner builds a Signer from an already-parsed secret.
func NewRawKeySigner(secret RawKeySecret) (*RawKeySigner, error) {
	pub, ok := secret.key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, wrapRejected("raw_key_signer", fmt.Errorf("derive public key"))
	}
	var addr ourtypes.Address
	copy(addr[:], crypto.PubkeyToAddress(*pub).Bytes())
	return &RawKeySigner{secret: secret, address: addr}, nil
}

// Address implements Signer.
func (s *RawKeySigner) Address() ourtypes.Address {
	return s.address
}

// SignTransaction implements Signer.
func (s *RawKeySigner) SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	signed, err := types.SignTx(tx, signer, s.secret.key)
	if err != nil {
		return nil, wrapRejected("raw_key_signer.sign", err)
	}
	return signed, nil
}
