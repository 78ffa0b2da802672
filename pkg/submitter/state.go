package submitter

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// stateBucket holds one key per signer address; grounded on the lnd
// breach-arbiter's retributionStore bbolt pattern (one bucket, one key per
// owned resource, JSON-encoded values) from the example pack's
// backend-engineer1-land manifest, re-targeted here at persisted
// nonce/tx-hash state instead of channel breach data.
var stateBucket = []byte("submitter-state")

// persistedState is {nonce, tx_hash, submitted_at} (spec 4.5 step 4).
type persistedState struct {
	Nonce       uint64    `json:"nonce"`
	TxHash      string    `json:"tx_hash"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func openState(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
}

func loadState(db *bbolt.DB, key []byte) (persistedState, bool, error) {
	var state persistedState
	var found bool
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(stateBucket)
		if b == nil {
			return nil
		}
		raw := b.Get(key)
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &state)
	})
	if err != nil {
		return persistedState{}, false, fmt.Errorf("submitter: load state: %w", err)
	}
	return state, found, nil
}

func saveState(db *bbolt.DB, key []byte, state persistedState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("submitter: marshal state: %w", err)
	}
	return db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(stateBucket)
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
}

func resetState(db *bbolt.DB, key []byte) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(stateBucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}
