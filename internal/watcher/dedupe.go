// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

package watcher

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/argus-monitor/argus/internal/logging"
	"github.com/google/uuid"
)

// DedupeStore remembers content hashes of recently emitted lines so a
// post-truncation re-read can suppress lines that were already ingested
// before the rotation. Entries expire with a TTL; suppression is only
// consulted during the re-read window, so legitimately repeated lines in
// live tailing are never dropped.
type DedupeStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenDedupe opens (or creates) the badger store at path.
func OpenDedupe(path string, ttl time.Duration) (*DedupeStore, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening dedupe store: %w", err)
	}
	logging.Info().Str("path", path).Dur("ttl", ttl).Msg("Rotation dedupe store opened")
	return &DedupeStore{db: db, ttl: ttl}, nil
}

// Close releases the store.
func (d *DedupeStore) Close() error {
	return d.db.Close()
}

// Mark records a line hash with the configured TTL.
func (d *DedupeStore) Mark(sourceID uuid.UUID, line string) error {
	key := lineKey(sourceID, line)
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, nil).WithTTL(d.ttl))
	})
}

// Seen reports whether a line hash is still in the store.
func (d *DedupeStore) Seen(sourceID uuid.UUID, line string) bool {
	key := lineKey(sourceID, line)
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false
	}
	if err != nil {
		logging.Err(err).Msg("Dedupe lookup failed, treating line as unseen")
		return false
	}
	return true
}

func lineKey(sourceID uuid.UUID, line string) []byte {
	h := sha256.New()
	h.Write(sourceID[:])
	h.Write([]byte{0})
	h.Write([]byte(line))
	return h.Sum(nil)
}
