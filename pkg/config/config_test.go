package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartesi/rollups-node/pkg/consensus"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHAIN_RPC_URL", "CONSENSUS_ADDRESS", "CONSENSUS_SHAPE",
		"SIGNER_RAW_KEY", "SIGNER_MNEMONIC", "SIGNER_KMS_KEY_ID",
		"CLAIM_SOURCE_KIND", "DATABASE_URL", "BROKER_ADDRESS",
		"BROKER_MULTI_DAPP", "BROKER_DAPP_ADDRESS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsToBlockRangeShapeAndDatabaseSource(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, consensus.ShapeBlockRange, cfg.ConsensusShape)
	require.Equal(t, ClaimSourceDatabase, cfg.ClaimSourceKind)
}

func TestLoadRejectsUnknownShape(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONSENSUS_SHAPE", "bogus")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRequiresExactlyOneSignerVariant(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")
	t.Setenv("CONSENSUS_ADDRESS", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	t.Setenv("DATABASE_URL", "postgres://localhost/claims")

	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.SignerRawKeyHex = "deadbeef"
	require.NoError(t, cfg.Validate())
}

func TestValidateBrokerRequiresDappAddressUnlessMultiDapp(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")
	t.Setenv("CONSENSUS_ADDRESS", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	t.Setenv("CLAIM_SOURCE_KIND", "broker")
	t.Setenv("BROKER_ADDRESS", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	cfg.SignerRawKeyHex = "deadbeef"
	require.Error(t, cfg.Validate())

	cfg.BrokerMultiDapp = true
	require.NoError(t, cfg.Validate())
}
