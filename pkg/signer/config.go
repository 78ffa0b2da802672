package signer

import (
	"context"
	"fmt"
)

// Config selects exactly one signer variant. Precedence when more than one
// is populated: raw key, then mnemonic, then KMS (spec 4.2).
type Config struct {
	RawKeyHex string

	MnemonicPhrase string
	AccountIndex   uint32

	KMSKeyID  string
	KMSRegion string
}

// Build constructs the Signer the config selects.
func Build(ctx context.Context, cfg Config) (Signer, error) {
	switch {
	case cfg.RawKeyHex != "":
		secret, err := NewRawKeySecret(cfg.RawKeyHex)
		if err != nil {
			return nil, err
		}
		return NewRawKeySigner(secret)

	case cfg.MnemonicPhrase != "":
		secret, err := NewMnemonicSecret(cfg.MnemonicPhrase)
		if err != nil {
			return nil, err
		}
		return NewMnemonicSigner(secret, cfg.AccountIndex)

	case cfg.KMSKeyID != "":
		return NewKMSSigner(ctx, cfg.KMSKeyID, cfg.KMSRegion)

	default:
		return nil, fmt.Errorf("signer: no variant configured (raw key, mnemonic, or kms key id required)")
	}
}
