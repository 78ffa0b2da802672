// Package submitter builds and broadcasts submitClaim transactions: nonce
// tracking, gas pricing, persistent on-disk state, and confirmation
// waiting, wrapped behind a consume-return Send (spec 4.5).
//
// Grounded on the teacher's pkg/ethereum.Client.SendContractTransactionWithRetry
// (gas-price flooring, per-attempt escalation, retry-on-known-transient-error
// strings) and pkg/anchor.AnchorManager (thin orchestration over the chain
// client). Persistent nonce state uses go.etcd.io/bbolt, following the
// pattern of the lnd breach-arbiter's bbolt-backed retributionStore found in
// the example pack's other_examples/ (boltdb/bolt is archived upstream, so
// the actively maintained etcd-io/bbolt fork is used instead).
package submitter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.etcd.io/bbolt"

	"github.com/cartesi/rollups-node/pkg/consensus"
	"github.com/cartesi/rollups-node/pkg/signer"
	"github.com/cartesi/rollups-node/pkg/types"
)

// ErrNonceTooLow is fatal once a forced reinitialization has already been
// attempted (spec 4.5 "Resumption").
var ErrNonceTooLow = errors.New("submitter: nonce too low")

// ErrProviderUnreachable is the transport-layer failure mode. A failed chain
// call (nonce, gas price, gas estimate, receipt, block number) is returned at
// once and is not retried; only the broadcast loop in Send retries, and only
// on the known transient send errors (isRetryableSendError).
var ErrProviderUnreachable = errors.New("submitter: provider unreachable")

// ErrInvalidConfig covers fatal startup misconfiguration (spec 4.5).
var ErrInvalidConfig = errors.New("submitter: invalid config")

const (
	maxSendRetries  = 10
	retryInitial    = time.Second
	minGasPriceWei  = 5_000_000_000 // 5 Gwei, matching the teacher's floor.
	gasBumpPerRetry = 0.20          // 20% escalation per retry attempt, matching the teacher.
)

// chainClient is the subset of *ethclient.Client the submitter needs,
// narrowed to an interface so tests can fake it without a live node.
type chainClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Submitter is the transaction manager (spec 4.5). Send takes it "by move"
// (consume-return): callers must not retain a reference to the receiver
// after calling Send and must use the returned value instead, which
// structurally enforces "one in-flight claim per signer".
type Submitter struct {
	client        chainClient
	signer        signer.Signer
	abi           *consensus.ABI
	db            *bbolt.DB
	chainID       *big.Int
	confirmations uint64
	logger        *log.Logger

	stateKey []byte
	nonce    uint64
}

// New opens dbPath and initializes the submitter, including the
// stale-nonce resumption check (spec 4.5 "Resumption").
func New(ctx context.Context, client chainClient, s signer.Signer, abi *consensus.ABI, chainID *big.Int, confirmations uint64, dbPath string, logger *log.Logger) (*Submitter, error) {
	if chainID == nil {
		return nil, fmt.Errorf("%w: chain id is nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[submitter] ", log.LstdFlags)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("submitter: open state db: %w", err)
	}
	if err := openState(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("submitter: init state bucket: %w", err)
	}

	return newSubmitter(ctx, client, s, abi, chainID, confirmations, db, logger, false)
}

func newSubmitter(ctx context.Context, client chainClient, s signer.Signer, abi *consensus.ABI, chainID *big.Int, confirmations uint64, db *bbolt.DB, logger *log.Logger, forcedAlready bool) (*Submitter, error) {
	from := common.BytesToAddress(s.Address().Bytes())
	key := from.Bytes()

	chainNonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pending nonce: %v", ErrProviderUnreachable, err)
	}

	persisted, ok, err := loadState(db, key)
	if err != nil {
		db.Close()
		return nil, err
	}

	nonce := chainNonce
	if ok {
		if persisted.Nonce < chainNonce {
			if forcedAlready {
				db.Close()
				return nil, ErrNonceTooLow
			}
			logger.Printf("persisted nonce %d is behind chain nonce %d for %s, forcing a fresh state once", persisted.Nonce, chainNonce, from.Hex())
			if err := resetState(db, key); err != nil {
				db.Close()
				return nil, fmt.Errorf("submitter: reset state: %w", err)
			}
			return newSubmitter(ctx, client, s, abi, chainID, confirmations, db, logger, true)
		}
		nonce = persisted.Nonce
	}

	return &Submitter{
		client:        client,
		signer:        s,
		abi:           abi,
		db:            db,
		chainID:       chainID,
		confirmations: confirmations,
		logger:        logger,
		stateKey:      key,
		nonce:         nonce,
	}, nil
}

// Close releases the underlying state database.
func (s *Submitter) Close() error {
	return s.db.Close()
}

// Send builds, signs, broadcasts, and waits for confirmation of a
// submitClaim transaction for claim against consensusAddr (spec 4.5).
// It returns the (possibly mutated) submitter and the confirmed
// transaction hash; callers must discard their old reference to s and use
// the returned value instead.
func (s *Submitter) Send(ctx context.Context, claim types.Claim, consensusAddr types.Address) (*Submitter, types.Hash, error) {
	to := common.BytesToAddress(consensusAddr.Bytes())
	from := common.BytesToAddress(s.signer.Address().Bytes())

	data, err := s.abi.EncodeSubmitClaim(claim)
	if err != nil {
		return s, types.Hash{}, fmt.Errorf("%w: encode submitClaim: %v", ErrInvalidConfig, err)
	}

	basePrice, err := s.gasPrice(ctx)
	if err != nil {
		return s, types.Hash{}, err
	}

	gasLimit, err := s.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return s, types.Hash{}, fmt.Errorf("%w: estimate gas: %v", ErrProviderUnreachable, err)
	}

	var lastErr error
	gasPrice := new(big.Int).Set(basePrice)

	for attempt := 0; attempt < maxSendRetries; attempt++ {
		tx := gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    s.nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &to,
			Value:    big.NewInt(0),
			Data:     data,
		})

		signed, err := s.signer.SignTransaction(ctx, tx, s.chainID)
		if err != nil {
			return s, types.Hash{}, err
		}

		sendErr := s.client.SendTransaction(ctx, signed)
		if sendErr == nil {
			if err := saveState(s.db, s.stateKey, persistedState{
				Nonce:       s.nonce,
				TxHash:      signed.Hash().Hex(),
				SubmittedAt: time.Now(),
			}); err != nil {
				return s, types.Hash{}, fmt.Errorf("submitter: persist state: %w", err)
			}

			receiptHash, err := s.waitConfirmed(ctx, signed.Hash())
			if err != nil {
				return s, types.Hash{}, err
			}
			s.nonce++
			return s, receiptHash, nil
		}

		lastErr = sendErr
		if isNonceTooLow(sendErr) {
			return s, types.Hash{}, ErrNonceTooLow
		}
		if !isRetryableSendError(sendErr) {
			return s, types.Hash{}, fmt.Errorf("%w: send transaction: %v", ErrProviderUnreachable, sendErr)
		}

		gasPrice = bumpGasPrice(basePrice, attempt+1)
		s.logger.Printf("retrying send (attempt %d/%d) after %v, bumped gas price to %s", attempt+1, maxSendRetries, sendErr, gasPrice)
	}

	return s, types.Hash{}, fmt.Errorf("%w: exhausted %d send attempts: %v", ErrProviderUnreachable, maxSendRetries, lastErr)
}

// gasPrice asks the chain for a suggestion and floors it at minGasPriceWei,
// matching the teacher's SendContractTransactionWithRetry gas floor.
func (s *Submitter) gasPrice(ctx context.Context) (*big.Int, error) {
	suggested, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest gas price: %v", ErrProviderUnreachable, err)
	}
	floor := big.NewInt(minGasPriceWei)
	if suggested.Cmp(floor) < 0 {
		return floor, nil
	}
	return suggested, nil
}

// bumpGasPrice escalates price by ~20% per attempt, matching the teacher.
func bumpGasPrice(price *big.Int, attempt int) *big.Int {
	bumped := new(big.Int).Set(price)
	for i := 0; i < attempt; i++ {
		delta := new(big.Int).Div(bumped, big.NewInt(5)) // +20%
		bumped = new(big.Int).Add(bumped, delta)
	}
	return bumped
}

// waitConfirmed polls for the transaction's receipt and then waits until
// the chain has advanced confirmations blocks past inclusion (spec 4.5 step 5).
func (s *Submitter) waitConfirmed(ctx context.Context, txHash common.Hash) (types.Hash, error) {
	var receipt *gethtypes.Receipt
	for {
		r, err := s.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			receipt = r
			break
		}
		if !errors.Is(err, ethereum.NotFound) {
			return types.Hash{}, fmt.Errorf("%w: transaction receipt: %v", ErrProviderUnreachable, err)
		}
		select {
		case <-ctx.Done():
			return types.Hash{}, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	for {
		latest, err := s.client.BlockNumber(ctx)
		if err != nil {
			return types.Hash{}, fmt.Errorf("%w: block number: %v", ErrProviderUnreachable, err)
		}
		if latest >= receipt.BlockNumber.Uint64()+s.confirmations {
			break
		}
		select {
		case <-ctx.Done():
			return types.Hash{}, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	var hash types.Hash
	copy(hash[:], receipt.TxHash.Bytes())
	return hash, nil
}

func isNonceTooLow(err error) bool {
	return strings.Contains(err.Error(), "nonce too low")
}

// isRetryableSendError matches the transient broadcast failures the teacher
// retries on in SendContractTransactionWithRetry.
func isRetryableSendError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "replacement transaction underpriced") ||
		strings.Contains(msg, "already known") ||
		strings.Contains(msg, "transaction underpriced")
}
