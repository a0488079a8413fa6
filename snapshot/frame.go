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

// Package snapshot builds the per-step record of EVM state the debugger
// navigates: an opcode-level inspector for contracts without source, a
// hook-level inspector for instrumented contracts with source, and a
// merger that interleaves both into one execution-ordered sequence.
package snapshot

import "github.com/edb-rs/edb/types"

// frameTracker assigns ExecutionFrameIds to call-frame enter/exit events in
// the same depth-first sequential order the call tracer used to build the
// original Trace. Because every snapshot-inspector pass replays the exact
// same transaction deterministically, a second independent sequential
// counter lines up with the first pass's TraceEntry.ID values without the
// two passes sharing any state.
//
// Re-entry counting is not implemented: in this port, every dynamic call
// gets its own TraceEntry (there is no separate notion of a static call
// site that a loop might "re-enter"), so ReEntryCount is always zero. See
// the Open Questions in the module's design notes.
type frameTracker struct {
	nextID int
	stack  []types.ExecutionFrameId
}

func (f *frameTracker) enter() types.ExecutionFrameId {
	id := types.NewExecutionFrameId(f.nextID)
	f.nextID++
	f.stack = append(f.stack, id)
	return id
}

func (f *frameTracker) current() types.ExecutionFrameId {
	if len(f.stack) == 0 {
		return types.ExecutionFrameId{}
	}
	return f.stack[len(f.stack)-1]
}

func (f *frameTracker) exit() {
	if len(f.stack) == 0 {
		return
	}
	f.stack = f.stack[:len(f.stack)-1]
}
