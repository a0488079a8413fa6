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

package forkdb

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultAccountCacheSize = 8192
	defaultStorageCacheSize = 65536
	defaultCodeCacheSize    = 2048
)

type storageKey struct {
	addr common.Address
	slot common.Hash
}

// rpcCoder is the subset of RPCAdapter the cache layer calls directly to
// fetch code by address, since standard JSON-RPC has no getCodeByHash.
type rpcCoder interface {
	DB
	CodeAt(addr common.Address) ([]byte, error)
}

// Cache is the read-through memoization layer between the mutable Overlay
// and the RPC adapter. It never serves writes; Commit always fails here so
// that bugs routing a commit below the Overlay surface immediately.
type Cache struct {
	parent rpcCoder

	accounts *lru.Cache[common.Address, *Account]
	storage  *lru.Cache[storageKey, common.Hash]
	code     *lru.Cache[common.Hash, []byte]
	// codeByAddr remembers which address produced which code hash so
	// CodeByHash lookups originating below an address-keyed RPC can be
	// satisfied without a second round trip. A sync.Map (rather than a
	// map guarded by a per-instance mutex) so the same backing store can
	// be shared by reference across cheap Clone() calls.
	codeByAddr *sync.Map // map[common.Address]common.Hash
	blockHash  *sync.Map // map[uint64]common.Hash
}

// NewCache wraps parent (ordinarily an *RPCAdapter) in a bounded LRU cache.
func NewCache(parent rpcCoder) *Cache {
	accounts, _ := lru.New[common.Address, *Account](defaultAccountCacheSize)
	storage, _ := lru.New[storageKey, common.Hash](defaultStorageCacheSize)
	code, _ := lru.New[common.Hash, []byte](defaultCodeCacheSize)
	return &Cache{
		parent:     parent,
		accounts:   accounts,
		storage:    storage,
		code:       code,
		codeByAddr: &sync.Map{},
		blockHash:  &sync.Map{},
	}
}

func (c *Cache) Basic(addr common.Address) (*Account, error) {
	if acc, ok := c.accounts.Get(addr); ok {
		return acc, nil
	}
	acc, err := c.parent.Basic(addr)
	if err != nil {
		return nil, err
	}
	c.accounts.Add(addr, acc)
	c.codeByAddr.Store(addr, acc.CodeHash)
	return acc, nil
}

func (c *Cache) CodeByHash(hash common.Hash) ([]byte, error) {
	if code, ok := c.code.Get(hash); ok {
		return code, nil
	}
	var addr common.Address
	found := false
	c.codeByAddr.Range(func(k, v any) bool {
		if v.(common.Hash) == hash {
			addr, found = k.(common.Address), true
			return false
		}
		return true
	})
	if !found {
		return nil, NewDbError("forkdb: no cached address maps to code hash %s", hash)
	}
	code, err := c.parent.CodeAt(addr)
	if err != nil {
		return nil, err
	}
	c.code.Add(hash, code)
	return code, nil
}

func (c *Cache) CodeAt(addr common.Address) ([]byte, error) {
	if v, ok := c.codeByAddr.Load(addr); ok {
		if code, ok := c.code.Get(v.(common.Hash)); ok {
			return code, nil
		}
	}
	code, err := c.parent.CodeAt(addr)
	if err != nil {
		return nil, err
	}
	h := codeHash(code)
	c.code.Add(h, code)
	c.codeByAddr.Store(addr, h)
	return code, nil
}

func (c *Cache) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	key := storageKey{addr: addr, slot: slot}
	if val, ok := c.storage.Get(key); ok {
		return val, nil
	}
	val, err := c.parent.Storage(addr, slot)
	if err != nil {
		return common.Hash{}, err
	}
	c.storage.Add(key, val)
	return val, nil
}

func (c *Cache) BlockHash(number uint64) (common.Hash, error) {
	if v, ok := c.blockHash.Load(number); ok {
		return v.(common.Hash), nil
	}
	h, err := c.parent.BlockHash(number)
	if err != nil {
		return common.Hash{}, err
	}
	c.blockHash.Store(number, h)
	return h, nil
}

func (c *Cache) Commit(StateDiff) error {
	return NewDbError("forkdb: cannot commit to the read-through cache layer")
}

// Clone shares the underlying LRU caches (they are safe for concurrent use
// and read-through-only, so sharing them across clones is a pure win) but
// gets its own parent reference for symmetry with the DB interface.
func (c *Cache) Clone() DB {
	return &Cache{
		parent:     c.parent,
		accounts:   c.accounts,
		storage:    c.storage,
		code:       c.code,
		codeByAddr: c.codeByAddr,
		blockHash:  c.blockHash,
	}
}
