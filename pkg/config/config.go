// Package config loads and validates the authority claimer's configuration
// from environment variables, following the teacher's pkg/config split of a
// plain Load() into a Config struct plus a separate Validate() pass.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cartesi/rollups-node/pkg/consensus"
)

// ClaimSourceKind selects which Source implementation the claimer loop runs
// against (spec 4.4: database queue or broker stream).
type ClaimSourceKind string

const (
	ClaimSourceDatabase ClaimSourceKind = "database"
	ClaimSourceBroker   ClaimSourceKind = "broker"
)

// Config holds every field needed to wire C1-C7 (spec 4). Exactly one
// signer variant and one claim-source variant must be populated; Validate
// enforces this.
type Config struct {
	// Chain Reader (C1)
	ChainRPCURL   string
	GenesisBlock  uint64
	Confirmations uint64
	ChainID       int64

	// Consensus contract wire shape (spec 6)
	ConsensusAddress string
	ConsensusShape   consensus.Shape

	// Signer (C2) - exactly one variant
	SignerRawKeyHex    string
	SignerMnemonic     string
	SignerAccountIndex uint32
	SignerKMSKeyID     string
	SignerKMSRegion    string

	// Claim source (C4) - exactly one variant
	ClaimSourceKind ClaimSourceKind

	DatabaseURL string

	BrokerAddress     string
	BrokerMultiDapp   bool
	BrokerDappAddress string

	// Transaction submitter (C5)
	SubmitterStatePath string

	// Observability (C7)
	HTTPListenAddr string

	// Polling / loop tuning
	PollInterval time.Duration
}

// Load reads configuration from environment variables. Call Validate after
// Load and before starting the service.
func Load() (*Config, error) {
	shape, err := parseShape(getEnv("CONSENSUS_SHAPE", "block-range"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ChainRPCURL:   getEnv("CHAIN_RPC_URL", ""),
		GenesisBlock:  getEnvUint64("CHAIN_GENESIS_BLOCK", 0),
		Confirmations: getEnvUint64("CHAIN_CONFIRMATIONS", 1),
		ChainID:       getEnvInt64("CHAIN_ID", 1),

		ConsensusAddress: getEnv("CONSENSUS_ADDRESS", ""),
		ConsensusShape:   shape,

		SignerRawKeyHex:    getEnv("SIGNER_RAW_KEY", ""),
		SignerMnemonic:     getEnv("SIGNER_MNEMONIC", ""),
		SignerAccountIndex: uint32(getEnvInt("SIGNER_ACCOUNT_INDEX", 0)),
		SignerKMSKeyID:     getEnv("SIGNER_KMS_KEY_ID", ""),
		SignerKMSRegion:    getEnv("SIGNER_KMS_REGION", "us-east-1"),

		ClaimSourceKind: ClaimSourceKind(getEnv("CLAIM_SOURCE_KIND", string(ClaimSourceDatabase))),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		BrokerAddress:     getEnv("BROKER_ADDRESS", ""),
		BrokerMultiDapp:   getEnvBool("BROKER_MULTI_DAPP", false),
		BrokerDappAddress: getEnv("BROKER_DAPP_ADDRESS", ""),

		SubmitterStatePath: getEnv("SUBMITTER_STATE_PATH", "./data/submitter.db"),

		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),

		PollInterval: getEnvDuration("CLAIMER_POLL_INTERVAL", 500*time.Millisecond),
	}

	return cfg, nil
}

// Validate checks that exactly one signer variant and one claim-source
// variant are configured, and that the fields each variant needs are
// present (spec 4.2, 4.4, 9).
func (c *Config) Validate() error {
	var errs []string

	if c.ChainRPCURL == "" {
		errs = append(errs, "CHAIN_RPC_URL is required")
	}
	if c.ConsensusAddress == "" {
		errs = append(errs, "CONSENSUS_ADDRESS is required")
	}

	signerVariants := 0
	if c.SignerRawKeyHex != "" {
		signerVariants++
	}
	if c.SignerMnemonic != "" {
		signerVariants++
	}
	if c.SignerKMSKeyID != "" {
		signerVariants++
	}
	if signerVariants != 1 {
		errs = append(errs, "exactly one signer variant is required (SIGNER_RAW_KEY, SIGNER_MNEMONIC, or SIGNER_KMS_KEY_ID)")
	}

	switch c.ClaimSourceKind {
	case ClaimSourceDatabase:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when CLAIM_SOURCE_KIND=database")
		}
	case ClaimSourceBroker:
		if c.BrokerAddress == "" {
			errs = append(errs, "BROKER_ADDRESS is required when CLAIM_SOURCE_KIND=broker")
		}
		if !c.BrokerMultiDapp && c.BrokerDappAddress == "" {
			errs = append(errs, "BROKER_DAPP_ADDRESS is required when CLAIM_SOURCE_KIND=broker and BROKER_MULTI_DAPP=false")
		}
	default:
		errs = append(errs, fmt.Sprintf("CLAIM_SOURCE_KIND must be %q or %q, got %q", ClaimSourceDatabase, ClaimSourceBroker, c.ClaimSourceKind))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func parseShape(value string) (consensus.Shape, error) {
	switch value {
	case "block-range":
		return consensus.ShapeBlockRange, nil
	case "input-range":
		return consensus.ShapeInputRange, nil
	default:
		return 0, fmt.Errorf("config: CONSENSUS_SHAPE must be %q or %q, got %q", "block-range", "input-range", value)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
