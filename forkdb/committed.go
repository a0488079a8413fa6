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
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/edb-rs/edb/types"
)

// committedDB adapts a forkdb.DB into the narrow types.CommittedDB surface a
// Snapshot exposes: the layer is already "committed" the moment it is built
// (a snapshot takes it by cloning the live overlay and applying whatever
// mutations the in-flight StateAdapter had accumulated at that instant), so
// no journal or access-list bookkeeping is needed here.
type committedDB struct {
	db DB
}

// NewCommittedDB wraps db for inclusion in a Snapshot. Callers typically
// pass `adapter.DB().Clone()` already merged with `adapter.StateDiff()` via
// Commit, so the wrapped DB reflects state exactly as of the capture point.
func NewCommittedDB(db DB) types.CommittedDB {
	return committedDB{db: db}
}

func (c committedDB) Basic(addr common.Address) (exists bool, balance *uint256.Int, nonce uint64, codeHash common.Hash, err error) {
	acc, err := c.db.Basic(addr)
	if err != nil {
		return false, nil, 0, common.Hash{}, err
	}
	if acc == nil {
		return false, uint256.NewInt(0), 0, common.Hash{}, nil
	}
	bal := uint256.NewInt(0)
	if acc.Balance != nil {
		bal, _ = uint256.FromBig(acc.Balance)
	}
	return true, bal, acc.Nonce, acc.CodeHash, nil
}

func (c committedDB) Code(addr common.Address) ([]byte, error) {
	acc, err := c.db.Basic(addr)
	if err != nil || acc == nil || acc.CodeHash == (common.Hash{}) {
		return nil, err
	}
	return c.db.CodeByHash(acc.CodeHash)
}

func (c committedDB) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	return c.db.Storage(addr, slot)
}

func (c committedDB) Clone() types.CommittedDB {
	return committedDB{db: c.db.Clone()}
}

// TransientSnapshot copies adapter's current transient storage map for
// inclusion in a Snapshot. Transient storage is not part of a StateDiff (it
// never survives past the transaction), so a snapshot has to capture its
// value directly off the live adapter at the moment of capture.
func TransientSnapshot(adapter *StateAdapter) types.TransientStorage {
	out := make(types.TransientStorage, len(adapter.transient))
	for addr, slots := range adapter.transient {
		dst := make(map[common.Hash]common.Hash, len(slots))
		for slot, val := range slots {
			dst[slot] = val
		}
		out[addr] = dst
	}
	return out
}

// CaptureCommitted snapshots adapter's current state — every mutation
// accumulated in its journal, without rolling any of it back — into a fresh,
// independently-evolving types.CommittedDB. This is the single
// correctness-critical operation both snapshot inspectors rely on: the live
// StateAdapter keeps executing afterwards, untouched.
func CaptureCommitted(adapter *StateAdapter) (types.CommittedDB, error) {
	clone := adapter.DB().Clone()
	if err := clone.Commit(adapter.StateDiff()); err != nil {
		return nil, err
	}
	return NewCommittedDB(clone), nil
}
