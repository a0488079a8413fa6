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

// Package source acquires verified contract sources from a block-explorer
// oracle, disk-caching results per address with no expiration (explorers
// treat verified source as immutable) except for transient network
// failures, which are never cached.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/edb-rs/edb/cachestore"
	"github.com/edb-rs/edb/edberr"
	"github.com/edb-rs/edb/keypool"
	"github.com/edb-rs/edb/types"
)

// Oracle resolves a verified Artifact for a contract address, or reports
// that none exists.
type Oracle interface {
	// Lookup returns (artifact, true, nil) when source is verified,
	// (nil, false, nil) when the explorer reports the address as
	// unverified or Vyper (both treated as negative-cache "no source"),
	// and a non-nil error only for unrecoverable failures after retry.
	Lookup(ctx context.Context, address common.Address) (*types.Artifact, bool, error)
}

// cacheEntry is what gets persisted to disk per address: either a verified
// artifact or an explicit negative result.
type cacheEntry struct {
	Verified bool            `json:"verified"`
	Artifact *types.Artifact `json:"artifact,omitempty"`
}

// EtherscanOracle implements Oracle against the Etherscan v2 "getsourcecode"
// API, rotating through a pool of API keys and persisting results to a
// cachestore.Store.
type EtherscanOracle struct {
	httpClient *http.Client
	keys       *keypool.Pool
	cache      *cachestore.Store
	chainID    uint64
	baseURL    string
	log        *logrus.Entry
}

const defaultEtherscanBaseURL = "https://api.etherscan.io/v2/api"

// NewEtherscanOracle builds an oracle backed by the given key pool and
// cache store for chainID.
func NewEtherscanOracle(keys *keypool.Pool, cache *cachestore.Store, chainID uint64, log *logrus.Entry) *EtherscanOracle {
	return &EtherscanOracle{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		keys:       keys,
		cache:      cache,
		chainID:    chainID,
		baseURL:    defaultEtherscanBaseURL,
		log:        log,
	}
}

func (o *EtherscanOracle) Lookup(ctx context.Context, address common.Address) (*types.Artifact, bool, error) {
	cacheKey := strings.ToLower(address.Hex())

	var cached cacheEntry
	if ok, err := o.cache.Get(cacheKey, &cached); err == nil && ok {
		return cached.Artifact, cached.Verified, nil
	}

	var result *etherscanSourceResult
	op := func() error {
		r, err := o.fetch(ctx, address)
		if err != nil {
			if isTransient(err) {
				return err // retried
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, false, edberr.Wrap(edberr.NetworkError, "source: lookup %s: %v", address, err)
	}

	if result.isVyper() {
		o.cacheNegative(cacheKey)
		return nil, false, nil
	}
	if !result.isVerified() {
		o.cacheNegative(cacheKey)
		return nil, false, nil
	}

	artifact, err := result.toArtifact()
	if err != nil {
		return nil, false, edberr.Wrap(edberr.AnalysisError, "source: parse sourcecode for %s: %v", address, err)
	}

	entry := cacheEntry{Verified: true, Artifact: artifact}
	if err := o.cache.Put(cacheKey, entry, 0); err != nil {
		o.log.WithError(err).Warn("source: failed to persist verified artifact")
	}
	return artifact, true, nil
}

func (o *EtherscanOracle) cacheNegative(cacheKey string) {
	entry := cacheEntry{Verified: false}
	if err := o.cache.Put(cacheKey, entry, 0); err != nil {
		o.log.WithError(err).Warn("source: failed to persist negative cache entry")
	}
}

// transientError marks network/rate-limit failures that should be retried
// rather than cached as a verdict.
type transientError struct{ err error }

func (t transientError) Error() string { return t.err.Error() }
func (t transientError) Unwrap() error { return t.err }

func isTransient(err error) bool {
	_, ok := err.(transientError)
	return ok
}

func (o *EtherscanOracle) fetch(ctx context.Context, address common.Address) (*etherscanSourceResult, error) {
	key, err := o.keys.NextKey()
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	q := url.Values{}
	q.Set("chainid", strconv.FormatUint(o.chainID, 10))
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", address.Hex())
	q.Set("apikey", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, transientError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, transientError{fmt.Errorf("source: explorer returned %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: explorer returned %s", resp.Status)
	}

	var envelope struct {
		Status  string                `json:"status"`
		Message string                `json:"message"`
		Result  []etherscanSourceItem `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, transientError{fmt.Errorf("source: decode response: %w", err)}
	}
	if envelope.Status != "1" || len(envelope.Result) == 0 {
		return &etherscanSourceResult{}, nil
	}
	return &etherscanSourceResult{item: envelope.Result[0]}, nil
}
