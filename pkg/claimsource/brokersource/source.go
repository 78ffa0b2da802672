// Package brokersource is the stream-broker claim-source variant (spec
// 4.4.2): a blocking consumer over Redis Streams, either a single fixed
// dapp stream or a periodically-refreshed active set of per-dapp streams.
//
// Grounded on the overall poll/dispatch shape of the teacher's
// pkg/anchor.EventWatcher, adapted to a pull-based Redis Streams consumer;
// the client library itself (github.com/redis/go-redis/v9) is sourced from
// jeongkyun-oh-klaytn's go.mod (which carries the predecessor go-redis/v7),
// upgraded to the actively maintained v9 line.
package brokersource

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cartesi/rollups-node/pkg/claimsource"
	"github.com/cartesi/rollups-node/pkg/types"
)

// streamSuffix and dappSetKey follow spec 4.4.2's key naming.
const (
	streamSuffix = ":rollups-claims"
	dappSetKey   = "experimental-dapp-addresses-config"
)

// blockTimeout bounds each broker-side blocking read; on timeout the
// consumer refreshes its active stream set and retries (spec 4.4.2).
const blockTimeout = 5 * time.Second

// zeroEntryID is the sentinel "nothing consumed yet" cursor.
const zeroEntryID = "0"

// wireClaim is the JSON form a stream entry's payload field carries.
type wireClaim struct {
	ApplicationAddress string `json:"application_address"`
	ConsensusAddress   string `json:"consensus_address"`
	IsBlockRange       bool   `json:"is_block_range"`
	FirstInputIndex    uint64 `json:"first_input_index,omitempty"`
	LastInputIndex     uint64 `json:"last_input_index,omitempty"`
	LastProcessedBlock uint64 `json:"last_processed_block,omitempty"`
	Digest             string `json:"digest"`
}

func streamKey(chainID uint64, dapp string) string {
	return fmt.Sprintf("{chain-%d:dapp-%s}%s", chainID, strings.ToLower(dapp), streamSuffix)
}

// handle identifies one delivered stream entry for Acknowledge.
type handle struct {
	stream string
	id     string
}

// dappSetFunc returns the current list of active dapp addresses. The
// single-dapp variant uses a constant list; the multi-dapp variant reads it
// from dappSetKey on every refresh (spec 4.4.2).
type dappSetFunc func(ctx context.Context) ([]string, error)

// Source is the Redis Streams claim source. It is safe for single-goroutine
// use only: GetClaim is meant to be called from the claimer loop alone.
type Source struct {
	client  redis.UniversalClient
	chainID uint64
	dappSet dappSetFunc
	logger  *log.Logger

	mu       sync.Mutex
	cursors  map[string]string    // stream -> last acknowledged id
	buffered []redis.XStream      // leftover entries from the last XRead
	active   map[string]struct{}  // current stream set, for pruning
}

// NewSingleDapp builds a Source that consumes exactly one dapp's stream.
func NewSingleDapp(client redis.UniversalClient, chainID uint64, dappAddress string, logger *log.Logger) *Source {
	fixed := []string{strings.ToLower(dappAddress)}
	return newSource(client, chainID, func(context.Context) ([]string, error) { return fixed, nil }, logger)
}

// NewMultiDapp builds a Source that refreshes its active dapp set from
// dappSetKey on every GetClaim call.
func NewMultiDapp(client redis.UniversalClient, chainID uint64, logger *log.Logger) *Source {
	return newSource(client, chainID, func(ctx context.Context) ([]string, error) {
		members, err := client.SMembers(ctx, dappSetKey).Result()
		if err != nil {
			return nil, fmt.Errorf("brokersource: read dapp set: %w", err)
		}
		return members, nil
	}, logger)
}

func newSource(client redis.UniversalClient, chainID uint64, dappSet dappSetFunc, logger *log.Logger) *Source {
	if logger == nil {
		logger = log.New(log.Writer(), "[brokersource] ", log.LstdFlags)
	}
	return &Source{
		client:  client,
		chainID: chainID,
		dappSet: dappSet,
		logger:  logger,
		cursors: make(map[string]string),
		active:  make(map[string]struct{}),
	}
}

// GetClaim implements claimsource.Source (spec 4.4.2). It refreshes the
// active stream set, drains any buffered entries first, and otherwise
// blocks on all active streams until one entry arrives or the block
// timeout elapses, at which point it refreshes the set and retries.
func (s *Source) GetClaim(ctx context.Context) (types.Claim, types.Address, claimsource.Handle, error) {
	for {
		streams, err := s.refreshActiveSet(ctx)
		if err != nil {
			return types.Claim{}, types.Address{}, nil, err
		}

		if claim, addr, h, ok, err := s.drainBuffered(); err != nil {
			return types.Claim{}, types.Address{}, nil, err
		} else if ok {
			return claim, addr, h, nil
		}

		if len(streams) == 0 {
			select {
			case <-ctx.Done():
				return types.Claim{}, types.Address{}, nil, ctx.Err()
			case <-time.After(blockTimeout):
				continue
			}
		}

		args := s.readArgs(streams)
		result, err := s.client.XRead(ctx, args).Result()
		if err == redis.Nil {
			continue // timed out; loop refreshes the set and retries
		}
		if err != nil {
			return types.Claim{}, types.Address{}, nil, fmt.Errorf("brokersource: xread: %w", err)
		}

		s.mu.Lock()
		s.buffered = result
		s.mu.Unlock()
	}
}

// refreshActiveSet re-reads the dapp set, deduplicates case-insensitively,
// prunes buffered entries for streams no longer active, and returns the
// current stream keys.
func (s *Source) refreshActiveSet(ctx context.Context) ([]string, error) {
	dapps, err := s.dappSet(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(dapps))
	streams := make([]string, 0, len(dapps))
	for _, d := range dapps {
		lower := strings.ToLower(d)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		streams = append(streams, streamKey(s.chainID, lower))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newActive := make(map[string]struct{}, len(streams))
	for _, st := range streams {
		newActive[st] = struct{}{}
		if _, ok := s.cursors[st]; !ok {
			s.cursors[st] = zeroEntryID
		}
	}
	s.active = newActive

	pruned := s.buffered[:0]
	for _, xs := range s.buffered {
		if _, ok := newActive[xs.Stream]; ok {
			pruned = append(pruned, xs)
		}
	}
	s.buffered = pruned

	return streams, nil
}

func (s *Source) readArgs(streams []string) *redis.XReadArgs {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(streams)*2)
	keys = append(keys, streams...)
	for _, st := range streams {
		keys = append(keys, s.cursors[st])
	}
	return &redis.XReadArgs{Streams: keys, Block: blockTimeout, Count: 10}
}

// drainBuffered pops the first buffered entry still backed by an active
// stream, decoding it into a claim.
func (s *Source) drainBuffered() (types.Claim, types.Address, claimsource.Handle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buffered) > 0 {
		xs := s.buffered[0]
		if len(xs.Messages) == 0 {
			s.buffered = s.buffered[1:]
			continue
		}
		msg := xs.Messages[0]
		xs.Messages = xs.Messages[1:]
		if len(xs.Messages) == 0 {
			s.buffered = s.buffered[1:]
		} else {
			s.buffered[0] = xs
		}

		claim, addr, err := decodeEntry(msg)
		if err != nil {
			s.logger.Printf("skipping undecodable entry on %s: %v", xs.Stream, err)
			continue
		}
		return claim, addr, handle{stream: xs.Stream, id: msg.ID}, true, nil
	}
	return types.Claim{}, types.Address{}, nil, false, nil
}

func decodeEntry(msg redis.XMessage) (types.Claim, types.Address, error) {
	raw, ok := msg.Values["claim"]
	if !ok {
		return types.Claim{}, types.Address{}, fmt.Errorf("missing claim field")
	}
	rawStr, ok := raw.(string)
	if !ok {
		return types.Claim{}, types.Address{}, fmt.Errorf("claim field is not a string")
	}

	var wc wireClaim
	if err := json.Unmarshal([]byte(rawStr), &wc); err != nil {
		return types.Claim{}, types.Address{}, fmt.Errorf("unmarshal claim: %w", err)
	}

	app, err := types.ParseAddress(wc.ApplicationAddress)
	if err != nil {
		return types.Claim{}, types.Address{}, fmt.Errorf("decode application address: %w", err)
	}
	consensus, err := types.ParseAddress(wc.ConsensusAddress)
	if err != nil {
		return types.Claim{}, types.Address{}, fmt.Errorf("decode consensus address: %w", err)
	}
	digest, err := types.ParseHash(wc.Digest)
	if err != nil {
		return types.Claim{}, types.Address{}, fmt.Errorf("decode digest: %w", err)
	}

	var rng types.RangeDescriptor
	if wc.IsBlockRange {
		rng = types.BlockRange(wc.LastProcessedBlock)
	} else {
		rng = types.InputRange(wc.FirstInputIndex, wc.LastInputIndex)
	}

	return types.Claim{
		ApplicationAddress: app,
		ConsensusAddress:   consensus,
		Range:              rng,
		Digest:             digest,
	}, consensus, nil
}

// Acknowledge implements claimsource.Source. The broker variant has no
// server-side delivered mark: acknowledgement advances the in-memory
// per-stream cursor, which is the only record of what has been consumed
// (spec 4.4.2).
func (s *Source) Acknowledge(ctx context.Context, h claimsource.Handle, txHash types.Hash) error {
	hd, ok := h.(handle)
	if !ok {
		return fmt.Errorf("brokersource: acknowledge: handle %v is not a broker handle", h)
	}

	s.mu.Lock()
	s.cursors[hd.stream] = hd.id
	s.mu.Unlock()
	return nil
}
