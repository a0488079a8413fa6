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

package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CommittedDB is the narrow view a Snapshot exposes onto its post-state
// database: a cheap clone of the overlay with every outstanding journal
// entry already applied. Concrete implementations live in package forkdb.
type CommittedDB interface {
	Basic(addr common.Address) (exists bool, balance *uint256.Int, nonce uint64, codeHash common.Hash, err error)
	Code(addr common.Address) ([]byte, error)
	Storage(addr common.Address, slot common.Hash) (common.Hash, error)
	Clone() CommittedDB
}

// TransientStorage is a per-frame address -> slot -> value map (EIP-1153).
type TransientStorage map[common.Address]map[common.Hash]common.Hash

// Get returns the transient value at (addr, slot), or the zero hash.
func (t TransientStorage) Get(addr common.Address, slot common.Hash) common.Hash {
	if m, ok := t[addr]; ok {
		return m[slot]
	}
	return common.Hash{}
}

// OpcodeSnapshot is a snapshot taken at a single opcode step of a
// no-source address.
type OpcodeSnapshot struct {
	Address         common.Address
	BytecodeAddress common.Address
	Frame           ExecutionFrameId
	PC              uint64
	Opcode          byte
	// Memory is shared (by reference) across consecutive steps that did not
	// write to memory, to avoid O(steps) copies of a potentially large buffer.
	Memory *SharedBytes
	Stack  []uint256.Int
	// Calldata is shared per frame.
	Calldata          *SharedBytes
	TransientStorage  TransientStorage
	DB                CommittedDB
}

// SharedBytes is a reference-counted-by-sharing byte buffer: multiple
// snapshots may point at the same instance. Treat as immutable once shared.
type SharedBytes struct {
	Data []byte
}

// NewSharedBytes wraps data for sharing across snapshots.
func NewSharedBytes(data []byte) *SharedBytes { return &SharedBytes{Data: data} }

// Bytes returns the underlying buffer.
func (s *SharedBytes) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.Data
}

// HookSnapshot is a snapshot taken at a hook site of a contract with
// verified source.
type HookSnapshot struct {
	Address         common.Address
	BytecodeAddress common.Address
	Frame           ExecutionFrameId
	USID            USID
	Path            string
	Range           SourceRange
	// Line is the 1-based source line of Range.Start, resolved by the
	// hook-snapshot inspector by counting the newlines before it (0 when
	// the source text is unavailable).
	Line            int

	// Locals holds pre-fetched local variable values, keyed by UVID.
	Locals map[UVID]any
	// StateVariables holds pre-evaluated state variable values, populated
	// during EngineContext.Finalize. A nil entry means evaluation failed.
	StateVariables map[UVID]any

	TransientStorage TransientStorage
	DB               CommittedDB
}

// SnapshotKind distinguishes the two snapshot variants.
type SnapshotKind int

const (
	SnapshotOpcode SnapshotKind = iota
	SnapshotHook
)

// Snapshot is the tagged union of OpcodeSnapshot / HookSnapshot, plus the
// doubly-linked navigation state filled in by the merger.
type Snapshot struct {
	Kind    SnapshotKind
	Opcode  *OpcodeSnapshot
	Hook    *HookSnapshot
	id      int
	prevID  *int
	nextID  *int
}

// ID returns the snapshot's index in the merged sequence.
func (s *Snapshot) ID() int { return s.id }

// PrevID returns the previous snapshot's index, or nil at the start.
func (s *Snapshot) PrevID() *int { return s.prevID }

// NextID returns the next snapshot's index, or nil at the end.
func (s *Snapshot) NextID() *int { return s.nextID }

// FrameID returns the execution frame this snapshot belongs to.
func (s *Snapshot) FrameID() ExecutionFrameId {
	if s.Kind == SnapshotOpcode {
		return s.Opcode.Frame
	}
	return s.Hook.Frame
}

// TargetAddress returns the logical contract address (distinct from the
// code address under DELEGATECALL).
func (s *Snapshot) TargetAddress() common.Address {
	if s.Kind == SnapshotOpcode {
		return s.Opcode.Address
	}
	return s.Hook.Address
}

// BytecodeAddress returns the address whose code is executing.
func (s *Snapshot) BytecodeAddress() common.Address {
	if s.Kind == SnapshotOpcode {
		return s.Opcode.BytecodeAddress
	}
	return s.Hook.BytecodeAddress
}

// DB returns the committed post-state database for this snapshot.
func (s *Snapshot) DB() CommittedDB {
	if s.Kind == SnapshotOpcode {
		return s.Opcode.DB
	}
	return s.Hook.DB
}

// TransientStorageAt returns this snapshot's transient storage map.
func (s *Snapshot) TransientStorageAt() TransientStorage {
	if s.Kind == SnapshotOpcode {
		return s.Opcode.TransientStorage
	}
	return s.Hook.TransientStorage
}

// Snapshots is the totally-ordered sequence of (frame id, snapshot) pairs
// produced by the merger. Invariants: indices are dense [0,N); PrevID/NextID
// are nil only at the ends; for any trace entry with at least one snapshot,
// TraceEntry.FirstSnapshotID references the earliest one.
type Snapshots struct {
	items []Snapshot
}

// NewSnapshots builds a Snapshots sequence from already frame-id-stamped
// snapshots given in execution order, wiring up dense ids and prev/next
// links.
func NewSnapshots(ordered []Snapshot) *Snapshots {
	for i := range ordered {
		ordered[i].id = i
		if i > 0 {
			p := i - 1
			ordered[i].prevID = &p
		}
		if i < len(ordered)-1 {
			n := i + 1
			ordered[i].nextID = &n
		}
	}
	return &Snapshots{items: ordered}
}

// Len returns the number of snapshots.
func (s *Snapshots) Len() int { return len(s.items) }

// At returns the snapshot at index i.
func (s *Snapshots) At(i int) *Snapshot {
	if i < 0 || i >= len(s.items) {
		return nil
	}
	return &s.items[i]
}

// All returns every snapshot in order.
func (s *Snapshots) All() []Snapshot { return s.items }
