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

// CallScheme distinguishes the EVM message-call opcode that created a
// Call-kind trace entry.
type CallScheme int

const (
	SchemeCall CallScheme = iota
	SchemeCallCode
	SchemeDelegateCall
	SchemeStaticCall
)

func (s CallScheme) String() string {
	switch s {
	case SchemeCall:
		return "CALL"
	case SchemeCallCode:
		return "CALLCODE"
	case SchemeDelegateCall:
		return "DELEGATECALL"
	case SchemeStaticCall:
		return "STATICCALL"
	default:
		return "UNKNOWN"
	}
}

// CreateScheme distinguishes CREATE from CREATE2.
type CreateScheme int

const (
	SchemeCreate CreateScheme = iota
	SchemeCreate2
)

func (s CreateScheme) String() string {
	if s == SchemeCreate2 {
		return "CREATE2"
	}
	return "CREATE"
}

// CallKind is either a message call or a contract creation.
type CallKind struct {
	IsCreate     bool
	CallScheme   CallScheme
	CreateScheme CreateScheme
}

func (k CallKind) String() string {
	if k.IsCreate {
		return k.CreateScheme.String()
	}
	return k.CallScheme.String()
}

// ResultKind distinguishes the three ways a call frame can end.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultRevert
	ResultHalt
)

// CallResult is the outcome of one trace entry.
type CallResult struct {
	Kind   ResultKind
	Output []byte // valid for Success/Revert
	Reason string // valid for Halt
}

// TraceEntry is a single node in the call tree.
type TraceEntry struct {
	ID       int
	ParentID *int
	Depth    int
	Kind     CallKind

	Caller      common.Address
	Target      common.Address
	CodeAddress common.Address // differs from Target under DELEGATECALL / proxies
	Input       []byte
	Value       *uint256.Int

	Result CallResult

	CreatedContract bool
	Bytecode        []byte // deployed runtime code, set for creations

	// FirstSnapshotID is filled in by EngineContext.Finalize: the lowest
	// snapshot index whose frame id's TraceEntryID equals this entry's ID.
	FirstSnapshotID *int
}

// Trace is the ordered call tree for one transaction. Invariant:
// ParentID always refers to an earlier entry, and
// Depth(child) == Depth(parent)+1.
type Trace struct {
	Entries []TraceEntry
}

// Parent returns the parent entry of e, or nil if e is the root.
func (t *Trace) Parent(e TraceEntry) *TraceEntry {
	if e.ParentID == nil {
		return nil
	}
	return &t.Entries[*e.ParentID]
}

// AddressCodeAddressMap returns, for every Target address observed in the
// trace, the set of distinct CodeAddress values used to execute calls into
// it (equal to Target itself unless a DELEGATECALL/proxy pattern is involved).
func (t *Trace) AddressCodeAddressMap() map[common.Address]map[common.Address]struct{} {
	out := make(map[common.Address]map[common.Address]struct{})
	for _, e := range t.Entries {
		set, ok := out[e.Target]
		if !ok {
			set = make(map[common.Address]struct{})
			out[e.Target] = set
		}
		set[e.CodeAddress] = struct{}{}
	}
	return out
}
