// Copyright 2024 The EDB Authors
// This file is part of EDB.
//
// EDB is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// EDB is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with EDB. If not, see <http://www.gnu.org/licenses/>.

// Package cachestore is the on-disk key-value cache, with optional per-entry
// expiry, backing
// the per-chain cache directory of spec.md §6: one Store per
// ~/.edb/cache/<chain_id>/{etherscan,compiler} subdirectory.
package cachestore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/sirupsen/logrus"
)

// Store is a keyed, persisted cache backed by BadgerDB. Keys are address
// strings or other short identifiers; values are arbitrary JSON blobs plus
// an optional TTL, so the etherscan cache (TTL-bounded) and the compiler
// cache (never expires) can share one implementation.
type Store struct {
	db  *badger.DB
	log *logrus.Entry
}

// Open opens (creating if necessary) a Store rooted at dir. dir must
// already be sanitized by the caller (see SanitizeKey) since this is a
// filesystem path, not a cache key.
func Open(dir string, log *logrus.Entry) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cachestore: open %s: %w", dir, err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// entry is the envelope stored for every key: a JSON payload plus the
// absolute expiry time (zero means "never expires").
type entry struct {
	Payload json.RawMessage `json:"payload"`
	Expires time.Time       `json:"expires"`
}

// keyPattern matches only the characters SanitizeKey ever produces.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// SanitizeKey rejects traversal (".."), path separators, and absolute
// paths, per spec.md §6 "Path components are sanitized on write."
func SanitizeKey(key string) (string, error) {
	clean := strings.TrimSpace(key)
	if clean == "" {
		return "", fmt.Errorf("cachestore: empty key")
	}
	if strings.Contains(clean, "..") || strings.ContainsAny(clean, `/\`) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("cachestore: unsafe key %q", key)
	}
	if !keyPattern.MatchString(clean) {
		return "", fmt.Errorf("cachestore: key %q contains disallowed characters", key)
	}
	return clean, nil
}

// Put stores value under key with the given ttl (zero = never expires).
func (s *Store) Put(key string, value any, ttl time.Duration) error {
	safeKey, err := SanitizeKey(key)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cachestore: marshal %s: %w", key, err)
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	e := entry{Payload: payload, Expires: expires}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(safeKey), raw)
	})
}

// Get loads key into out, returning ok=false if the key is absent or
// expired (an expired entry is treated as a miss but is not eagerly
// deleted; the next Put overwrites it).
func (s *Store) Get(key string, out any) (ok bool, err error) {
	safeKey, err := SanitizeKey(key)
	if err != nil {
		return false, err
	}
	var raw []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(safeKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return false, fmt.Errorf("cachestore: corrupt entry for %s: %w", key, err)
	}
	if !e.Expires.IsZero() && time.Now().After(e.Expires) {
		return false, nil
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return false, fmt.Errorf("cachestore: unmarshal %s: %w", key, err)
	}
	return true, nil
}
