package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	ourtypes "github.com/cartesi/rollups-node/pkg/types"
)

// MnemonicSecret wraps a BIP-39 phrase. Grounded on arcSignv2's bip39service,
// adapted so the phrase itself never appears in a log line (spec 4.2).
type MnemonicSecret struct {
	phrase string
}

// NewMnemonicSecret validates and wraps a BIP-39 mnemonic phrase.
func NewMnemonicSecret(phrase string) (MnemonicSecret, error) {
	if !bip39.IsMnemonicValid(phrase) {
		return MnemonicSecret{}, fmt.Errorf("signer: invalid mnemonic")
	}
	return MnemonicSecret{phrase: phrase}, nil
}

func (MnemonicSecret) String() string  { return redactedSecret }
func (MnemonicSecret) GoString() string { return redactedSecret }

// bitcoinSeedKey is BIP-32's fixed HMAC key for master-key generation.
var bitcoinSeedKey = []byte("Bitcoin seed")

// MnemonicSigner derives a secp256k1 key from a BIP-39 seed and an account
// index, following BIP-32's master-key generation and a single non-hardened
// child derivation step keyed by the account index (a deliberate
// simplification of the full m/44'/60'/0'/0/index path: the hardened
// purpose/coin/account/change segments are absorbed into the master key and
// only the leaf index varies child-to-child, which is sufficient to hand out
// distinct, deterministic, reproducible addresses per account index).
type MnemonicSigner struct {
	secret  MnemonicSecret
	key     *ecdsa.PrivateKey
	address ourtypes.Address
}

// NewMnemonicSigner derives the signing key for the given account index.
func NewMnemonicSigner(secret MnemonicSecret, accountIndex uint32) (*MnemonicSigner, error) {
	seed := bip39.NewSeed(secret.phrase, "")

	masterKey, chainCode, err := hmacSplit(bitcoinSeedKey, seed)
	if err != nil {
		return nil, wrapRejected("mnemonic_signer.master", err)
	}

	childKey, err := deriveChild(masterKey, chainCode, accountIndex)
	if err != nil {
		return nil, wrapRejected("mnemonic_signer.derive", err)
	}

	priv, err := crypto.ToECDSA(childKey.Bytes32())
	if err != nil {
		return nil, wrapRejected("mnemonic_signer.ecdsa", err)
	}

	var addr ourtypes.Address
	copy(addr[:], crypto.PubkeyToAddress(priv.PublicKey).Bytes())

	return &MnemonicSigner{secret: secret, key: priv, address: addr}, nil
}

// Address implements Signer.
func (s *MnemonicSigner) Address() ourtypes.Address {
	return s.address
}

// SignTransaction implements Signer.
func (s *MnemonicSigner) SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)
	signed, err := types.SignTx(tx, signer, s.key)
	if err != nil {
		return nil, wrapRejected("mnemonic_signer.sign", err)
	}
	return signed, nil
}

// scalar wraps a BIP-32 private key as a big.Int modulo secp256k1's group
// order; the chain code is carried separately.
type scalar struct {
	n *big.Int
}

func (s scalar) Bytes32() []byte {
	b := make([]byte, 32)
	s.n.FillBytes(b)
	return b
}

func hmacSplit(key, data []byte) (scalar, []byte, error) {
	mac := hmac.New(sha512.New, key)
	if _, err := mac.Write(data); err != nil {
		return scalar{}, nil, err
	}
	sum := mac.Sum(nil)
	il := new(big.Int).SetBytes(sum[:32])
	curveOrder := crypto.S256().Params().N
	if il.Sign() == 0 || il.Cmp(curveOrder) >= 0 {
		return scalar{}, nil, fmt.Errorf("invalid derived key material")
	}
	return scalar{n: il}, sum[32:], nil
}

// deriveChild performs BIP-32 non-hardened child key derivation:
// I = HMAC-SHA512(chainCode, compressedParentPubKey || index), child = (IL + parent) mod N.
func deriveChild(parent scalar, chainCode []byte, index uint32) (scalar, error) {
	curve := crypto.S256()
	px, py := curve.ScalarBaseMult(parent.n.Bytes())
	compressed := compressPoint(curve.Params().P, px, py)

	data := make([]byte, 0, len(compressed)+4)
	data = append(data, compressed...)
	var idxBytes [4]byte
	binary.BigEndian.PutUint32(idxBytes[:], index)
	data = append(data, idxBytes[:]...)

	il, _, err := hmacSplit(chainCode, data)
	if err != nil {
		return scalar{}, err
	}

	n := curve.Params().N
	child := new(big.Int).Add(il.n, parent.n)
	child.Mod(child, n)
	if child.Sign() == 0 {
		return scalar{}, fmt.Errorf("derived child key is zero")
	}
	return scalar{n: child}, nil
}

// compressPoint encodes an elliptic curve point in SEC1 compressed form.
func compressPoint(p, x, y *big.Int) []byte {
	out := make([]byte, 33)
	if y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	x.FillBytes(out[1:])
	return out
}
