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

// Package eval implements the derived-EVM expression evaluator: given a
// snapshot and a Solidity expression string, it builds a throwaway EVM over
// a doubly-cached clone of the snapshot's post-state database and executes
// single-shot calls to resolve function calls and variable getters.
package eval

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/edb-rs/edb/forkdb"
	"github.com/edb-rs/edb/types"
)

// committedAsDB adapts a types.CommittedDB (the narrow view a Snapshot
// exposes) back into the forkdb.DB interface, so a derived EVM call can
// reuse forkdb.StateAdapter's journal/access-list/transient-storage
// machinery wholesale instead of reimplementing vm.StateDB a second time.
//
// types.CommittedDB.Code looks up by address; forkdb.DB.CodeByHash looks up
// by hash. Every StateAdapter code path resolves GetCodeHash(addr) (which
// calls Basic(addr)) before GetCode(addr) (which calls CodeByHash(hash)),
// so caching the hash->address mapping as a side effect of Basic is enough
// to bridge the two without a second address index.
type committedAsDB struct {
	committed  types.CommittedDB
	hashToAddr map[common.Hash]common.Address
}

func newCommittedAsDB(c types.CommittedDB) *committedAsDB {
	return &committedAsDB{committed: c, hashToAddr: make(map[common.Hash]common.Address)}
}

func (c *committedAsDB) Basic(addr common.Address) (*forkdb.Account, error) {
	exists, balance, nonce, codeHash, err := c.committed.Basic(addr)
	if err != nil || !exists {
		return nil, err
	}
	if codeHash != (common.Hash{}) {
		c.hashToAddr[codeHash] = addr
	}
	return &forkdb.Account{Balance: balance.ToBig(), Nonce: nonce, CodeHash: codeHash}, nil
}

func (c *committedAsDB) CodeByHash(hash common.Hash) ([]byte, error) {
	addr, ok := c.hashToAddr[hash]
	if !ok {
		return nil, nil
	}
	return c.committed.Code(addr)
}

func (c *committedAsDB) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	return c.committed.Storage(addr, slot)
}

func (c *committedAsDB) BlockHash(uint64) (common.Hash, error) { return common.Hash{}, nil }

// Commit discards the diff: a derived-EVM call is transact_one, never
// persisted back onto the snapshot it was cloned from.
func (c *committedAsDB) Commit(forkdb.StateDiff) error { return nil }

func (c *committedAsDB) Clone() forkdb.DB {
	cp := make(map[common.Hash]common.Address, len(c.hashToAddr))
	for k, v := range c.hashToAddr {
		cp[k] = v
	}
	return &committedAsDB{committed: c.committed.Clone(), hashToAddr: cp}
}

// newDerivedState builds the outer cache of the spec's "CacheDB(CacheDB(db))"
// double-cache: committed is already itself a clone of the live overlay
// (forkdb.CaptureCommitted), so wrapping it once more in a StateAdapter
// gives evaluation its own journal that can never leak mutations back into
// the snapshot, matching "outer cache absorbs speculative mutations".
// Transient storage is seeded from the snapshot so EIP-1153 reads during
// evaluation see the values live at that point in the transaction.
func newDerivedState(committed types.CommittedDB, transient types.TransientStorage) *forkdb.StateAdapter {
	adapter := forkdb.NewStateAdapter(newCommittedAsDB(committed))
	for addr, slots := range transient {
		for slot, val := range slots {
			adapter.SetTransientState(addr, slot, val)
		}
	}
	return adapter
}
