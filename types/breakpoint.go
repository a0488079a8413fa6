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

import "github.com/ethereum/go-ethereum/common"

// LocationKind distinguishes the two ways a breakpoint can pin a location.
type LocationKind int

const (
	LocationOpcode LocationKind = iota
	LocationSource
)

// Location pins a breakpoint to a specific place in the execution.
type Location struct {
	Kind LocationKind

	// Opcode location fields.
	BytecodeAddress common.Address
	PC              uint64

	// Source location fields.
	FilePath   string
	LineNumber int
}

// Breakpoint is an optional location plus an optional Solidity-expression
// condition. An absent location matches any snapshot; an absent condition
// matches any evaluation. A breakpoint hits at a snapshot iff both match.
type Breakpoint struct {
	Location  *Location
	Condition *string
}

// MatchesLocation reports whether the breakpoint's location (if any)
// matches the given snapshot's position.
func (b *Breakpoint) MatchesLocation(s *Snapshot) bool {
	if b.Location == nil {
		return true
	}
	switch b.Location.Kind {
	case LocationOpcode:
		if s.Kind != SnapshotOpcode {
			return false
		}
		return s.Opcode.BytecodeAddress == b.Location.BytecodeAddress && s.Opcode.PC == b.Location.PC
	case LocationSource:
		if s.Kind != SnapshotHook {
			return false
		}
		return s.Hook.BytecodeAddress == b.Location.BytecodeAddress &&
			s.Hook.Path == b.Location.FilePath &&
			s.Hook.Line == b.Location.LineNumber
	}
	return false
}
