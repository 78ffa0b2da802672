// Command authority-claimer runs the off-chain claimer loop: it observes
// finalized epochs from a claim source, deduplicates them against the
// consensus contract's on-chain history, and submits each novel claim as a
// signed transaction (spec 5: two top-level tasks, the claimer loop and the
// observability server; the process exits when either one terminates).
//
// Grounded on the teacher's root main.go: load config, dial dependencies,
// start background tasks on goroutines, wait on SIGINT/SIGTERM, shut down.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cartesi/rollups-node/pkg/chain"
	"github.com/cartesi/rollups-node/pkg/checker"
	"github.com/cartesi/rollups-node/pkg/claimer"
	"github.com/cartesi/rollups-node/pkg/claimsource"
	"github.com/cartesi/rollups-node/pkg/claimsource/brokersource"
	"github.com/cartesi/rollups-node/pkg/claimsource/dbsource"
	"github.com/cartesi/rollups-node/pkg/config"
	"github.com/cartesi/rollups-node/pkg/consensus"
	"github.com/cartesi/rollups-node/pkg/httpserver"
	"github.com/cartesi/rollups-node/pkg/metrics"
	"github.com/cartesi/rollups-node/pkg/signer"
	"github.com/cartesi/rollups-node/pkg/submitter"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	mainLog := log.New(log.Writer(), "[main] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.New()

	s, err := signer.Build(ctx, signer.Config{
		RawKeyHex:      cfg.SignerRawKeyHex,
		MnemonicPhrase: cfg.SignerMnemonic,
		AccountIndex:   cfg.SignerAccountIndex,
		KMSKeyID:       cfg.SignerKMSKeyID,
		KMSRegion:      cfg.SignerKMSRegion,
	})
	if err != nil {
		log.Fatalf("build signer: %v", err)
	}
	mainLog.Printf("signer ready: %s", s.Address().Hex())

	reader, err := chain.NewEVMReader(cfg.ChainRPCURL, log.New(log.Writer(), "[chain] ", log.LstdFlags))
	if err != nil {
		log.Fatalf("connect chain reader: %v", err)
	}

	abi, err := consensus.New(cfg.ConsensusShape)
	if err != nil {
		log.Fatalf("build consensus abi: %v", err)
	}

	consensusAddr := common.HexToAddress(cfg.ConsensusAddress)
	topics := [][]common.Hash{{abi.Topic0()}}

	chk := checker.New(reader, abi, consensusAddr, topics, cfg.Confirmations, cfg.GenesisBlock, log.New(log.Writer(), "[checker] ", log.LstdFlags))
	if err := chk.Prime(ctx); err != nil {
		log.Fatalf("prime duplicate checker: %v", err)
	}

	sub, err := submitter.New(ctx, reader.Client(), s, abi, big.NewInt(cfg.ChainID), cfg.Confirmations, cfg.SubmitterStatePath, log.New(log.Writer(), "[submitter] ", log.LstdFlags))
	if err != nil {
		log.Fatalf("build submitter: %v", err)
	}
	defer sub.Close()

	source, err := buildClaimSource(ctx, cfg)
	if err != nil {
		log.Fatalf("build claim source: %v", err)
	}

	loop := claimer.New(source, chk, sub, reg, fmt.Sprintf("%d", cfg.ChainID), log.New(log.Writer(), "[claimer] ", log.LstdFlags))

	handlers := httpserver.NewHandlers(reg, log.New(log.Writer(), "[httpserver] ", log.LstdFlags))
	srv := httpserver.NewServer(cfg.HTTPListenAddr, handlers)

	errCh := make(chan error, 2)
	go func() {
		mainLog.Printf("claimer loop starting")
		errCh <- loop.Run(ctx)
	}()
	go func() {
		mainLog.Printf("http server listening on %s", cfg.HTTPListenAddr)
		errCh <- srv.ListenAndServe(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		mainLog.Printf("shutdown signal received")
		cancel()
	case err := <-errCh:
		mainLog.Printf("a top-level task exited: %v", err)
		cancel()
		exitCode = 1
	}

	mainLog.Printf("authority claimer stopped")
	if exitCode != 0 {
		sub.Close()
		os.Exit(exitCode)
	}
}

// buildClaimSource selects the database or broker Source per spec 4.4,
// matching the variant cfg.Validate already confirmed is fully configured.
func buildClaimSource(ctx context.Context, cfg *config.Config) (claimsource.Source, error) {
	switch cfg.ClaimSourceKind {
	case config.ClaimSourceDatabase:
		db, err := dbsource.Open(cfg.DatabaseURL, log.New(log.Writer(), "[dbsource] ", log.LstdFlags))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := dbsource.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return dbsource.New(db, cfg.PollInterval, log.New(log.Writer(), "[dbsource] ", log.LstdFlags)), nil

	case config.ClaimSourceBroker:
		client := redis.NewClient(&redis.Options{Addr: cfg.BrokerAddress})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect broker: %w", err)
		}
		logger := log.New(log.Writer(), "[brokersource] ", log.LstdFlags)
		if cfg.BrokerMultiDapp {
			return brokersource.NewMultiDapp(client, uint64(cfg.ChainID), logger), nil
		}
		return brokersource.NewSingleDapp(client, uint64(cfg.ChainID), cfg.BrokerDappAddress, logger), nil

	default:
		return nil, fmt.Errorf("unknown claim source kind %q", cfg.ClaimSourceKind)
	}
}
