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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Overlay is the outermost, mutable layer of the stack. Commit writes into
// the overlay's own delta maps. Clone chains a new, empty overlay on top of
// this one rather than copying its maps, which is what makes Clone O(1).
type Overlay struct {
	parent  DB
	deleted map[common.Address]struct{}
	accts   map[common.Address]*Account
	storage map[common.Address]map[common.Hash]common.Hash
	code    map[common.Hash][]byte
}

// NewOverlay starts an empty overlay on top of parent (ordinarily a *Cache).
func NewOverlay(parent DB) *Overlay {
	return &Overlay{
		parent:  parent,
		deleted: make(map[common.Address]struct{}),
		accts:   make(map[common.Address]*Account),
		storage: make(map[common.Address]map[common.Hash]common.Hash),
		code:    make(map[common.Hash][]byte),
	}
}

func (o *Overlay) Basic(addr common.Address) (*Account, error) {
	if _, gone := o.deleted[addr]; gone {
		return &Account{Balance: big.NewInt(0), Nonce: 0, CodeHash: common.Hash{}}, nil
	}
	if acc, ok := o.accts[addr]; ok {
		return acc, nil
	}
	return o.parent.Basic(addr)
}

func (o *Overlay) CodeByHash(hash common.Hash) ([]byte, error) {
	if code, ok := o.code[hash]; ok {
		return code, nil
	}
	return o.parent.CodeByHash(hash)
}

func (o *Overlay) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	if _, gone := o.deleted[addr]; gone {
		return common.Hash{}, nil
	}
	if slots, ok := o.storage[addr]; ok {
		if val, ok := slots[slot]; ok {
			return val, nil
		}
	}
	return o.parent.Storage(addr, slot)
}

func (o *Overlay) BlockHash(number uint64) (common.Hash, error) {
	return o.parent.BlockHash(number)
}

// Commit merges diff into this overlay's own delta frame. It never touches
// the parent: mutation is always local to the outermost frame a caller
// holds a reference to.
func (o *Overlay) Commit(diff StateDiff) error {
	for addr := range diff.AccountsDeleted {
		o.deleted[addr] = struct{}{}
		delete(o.accts, addr)
		delete(o.storage, addr)
	}
	for addr, acc := range diff.Accounts {
		delete(o.deleted, addr)
		o.accts[addr] = acc
	}
	for addr, slots := range diff.Storage {
		dst, ok := o.storage[addr]
		if !ok {
			dst = make(map[common.Hash]common.Hash, len(slots))
			o.storage[addr] = dst
		}
		for slot, val := range slots {
			dst[slot] = val
		}
	}
	for hash, code := range diff.Code {
		o.code[hash] = code
	}
	return nil
}

// Clone returns a new delta frame chained onto this overlay. The clone's
// own mutations never affect the original. The clone reads through to this
// overlay, so anything later committed to the original also shows through
// the clone wherever the clone has not overridden it.
func (o *Overlay) Clone() DB {
	return NewOverlay(o)
}
