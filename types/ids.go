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

// Package types holds the data model shared by every EDB engine component:
// identifiers, source ranges, the call trace, snapshots and breakpoints.
package types

import "fmt"

// USID identifies a debugger-visible step minted during AST analysis.
type USID uint64

// UVID identifies a variable minted during AST analysis.
type UVID uint64

// UFID identifies a function minted during AST analysis.
type UFID uint64

// UCID identifies a contract minted during AST analysis.
type UCID uint64

// UTID identifies a type minted during AST analysis.
type UTID uint64

// FileID identifies a source file within a compilation unit.
type FileID uint32

// MaxFileID is the sentinel file id used by SourceRange.NonExistent.
const MaxFileID = ^FileID(0)

// ExecutionFrameId distinguishes distinct entries into the same trace node,
// e.g. a recursive or repeatedly re-entered call. Ordered lexicographically
// on (TraceEntryID, ReEntryCount) and displayed "a.b".
type ExecutionFrameId struct {
	TraceEntryID  int
	ReEntryCount  int
}

// NewExecutionFrameId builds a frame id at re-entry count zero.
func NewExecutionFrameId(traceEntryID int) ExecutionFrameId {
	return ExecutionFrameId{TraceEntryID: traceEntryID}
}

// IncrementReEntry returns a copy of id with its re-entry counter bumped.
func (id ExecutionFrameId) IncrementReEntry() ExecutionFrameId {
	id.ReEntryCount++
	return id
}

// Less orders frame ids lexicographically on (TraceEntryID, ReEntryCount).
func (id ExecutionFrameId) Less(other ExecutionFrameId) bool {
	if id.TraceEntryID != other.TraceEntryID {
		return id.TraceEntryID < other.TraceEntryID
	}
	return id.ReEntryCount < other.ReEntryCount
}

func (id ExecutionFrameId) String() string {
	return fmt.Sprintf("%d.%d", id.TraceEntryID, id.ReEntryCount)
}
