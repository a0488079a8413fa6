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

package rpcserver

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/edb-rs/edb/types"
)

// SnapshotInfo is the wire shape of edb_getSnapshotInfo: exactly one of
// Opcode/Hook is set, mirroring types.Snapshot's tagged union.
type SnapshotInfo struct {
	ID    int                   `json:"id"`
	Kind  string                `json:"kind"`
	Frame types.ExecutionFrameId `json:"frame"`
	Prev  *int                  `json:"prev"`
	Next  *int                  `json:"next"`

	Opcode *OpcodeSnapshotInfo `json:"opcode,omitempty"`
	Hook   *HookSnapshotInfo   `json:"hook,omitempty"`
}

// OpcodeSnapshotInfo is the opcode-kind variant's detail payload.
type OpcodeSnapshotInfo struct {
	Address         common.Address `json:"address"`
	BytecodeAddress common.Address `json:"bytecodeAddress"`
	PC              uint64         `json:"pc"`
	Opcode          byte           `json:"opcode"`
}

// HookSnapshotInfo is the hook-kind variant's detail payload.
type HookSnapshotInfo struct {
	Address         common.Address `json:"address"`
	BytecodeAddress common.Address `json:"bytecodeAddress"`
	Path            string         `json:"path"`
	Line            int            `json:"line"`
}

// CodeResult is edb_getCode's result: exactly one of Opcode/Source is set,
// depending on whether the requested snapshot's bytecode address has
// verified source.
type CodeResult struct {
	Opcode *OpcodeCodeResult `json:"opcode,omitempty"`
	Source *SourceCodeResult `json:"source,omitempty"`
}

// OpcodeCodeResult carries a disassembled pc -> mnemonic-text map.
type OpcodeCodeResult struct {
	Address common.Address    `json:"address"`
	Code    map[uint64]string `json:"code"`
}

// SourceCodeResult carries a path -> full file text map.
type SourceCodeResult struct {
	Address common.Address    `json:"address"`
	Files   map[string]string `json:"files"`
}

// StorageDiffEntry is one slot's before/after value in edb_getStorageDiff.
type StorageDiffEntry struct {
	Before hexutil.Big `json:"before"`
	After  hexutil.Big `json:"after"`
}

// EvalResult is edb_evalOnSnapshot's result: exactly one of Ok/Err is set.
type EvalResult struct {
	Ok  *types.Value `json:"ok,omitempty"`
	Err *string       `json:"err,omitempty"`
}
