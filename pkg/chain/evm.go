package chain

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// maxRetries and retryInitialInterval implement spec 4.1 / 5: up to 10
// retries, back-off starting at 1 second, exponential.
const (
	maxRetries           = 10
	retryInitialInterval = time.Second
)

// EVMReader is the Reader implementation for an EVM-compatible chain,
// grounded on the teacher's pkg/ethereum.Client.
type EVMReader struct {
	client *ethclient.Client
	logger *log.Logger
}

// NewEVMReader dials the given JSON-RPC endpoint.
func NewEVMReader(rpcURL string, logger *log.Logger) (*EVMReader, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[chain] ", log.LstdFlags)
	}
	return &EVMReader{client: client, logger: logger}, nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	return backoff.WithMaxRetries(b, maxRetries)
}

// LatestBlock implements Reader.
func (r *EVMReader) LatestBlock(ctx context.Context) (uint64, error) {
	var height uint64
	op := func() error {
		h, err := r.client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		height = h
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return 0, &TransportError{Op: "latest_block", Err: err}
	}
	return height, nil
}

// QueryLogs implements Reader. Results come back from go-ethereum already
// in chain order (ascending block, then ascending log index).
func (r *EVMReader) QueryLogs(ctx context.Context, address common.Address, topics [][]common.Hash, fromBlock, toBlock uint64) ([]gethtypes.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
		Topics:    topics,
	}

	var logs []gethtypes.Log
	op := func() error {
		l, err := r.client.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		logs = l
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return nil, &TransportError{Op: "query_logs", Err: err}
	}
	return logs, nil
}

// Client exposes the underlying ethclient for components (signer, submitter)
// that need lower-level access (nonce, gas price, broadcast, wait-mined).
func (r *EVMReader) Client() *ethclient.Client {
	return r.client
}
