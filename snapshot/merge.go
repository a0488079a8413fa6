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

package snapshot

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/edb-rs/edb/types"
)

type taggedSnapshot struct {
	frame types.ExecutionFrameId
	pass  int // 0 = opcode, 1 = hook
	order int // program order within its own pass
	snap  types.Snapshot
}

// Merge interleaves opcode and hook snapshots into the single, totally
// ordered sequence the engine navigates, sorting by
// (trace_entry_id, re_entry_count, pass_id, program_order): the resolution
// the spec's own design notes give for ordering snapshots gathered across
// two independent re-execution passes of the same deterministic
// transaction. pass_id only breaks ties when both passes contributed a
// snapshot to the same frame, which the per-contract kind invariant below
// says should never happen.
func Merge(opcodeSnaps []types.OpcodeSnapshot, hookSnaps []types.HookSnapshot, log *logrus.Entry) *types.Snapshots {
	items := make([]taggedSnapshot, 0, len(opcodeSnaps)+len(hookSnaps))
	for i := range opcodeSnaps {
		s := opcodeSnaps[i]
		items = append(items, taggedSnapshot{
			frame: s.Frame, pass: 0, order: i,
			snap: types.Snapshot{Kind: types.SnapshotOpcode, Opcode: &s},
		})
	}
	for i := range hookSnaps {
		s := hookSnaps[i]
		items = append(items, taggedSnapshot{
			frame: s.Frame, pass: 1, order: i,
			snap: types.Snapshot{Kind: types.SnapshotHook, Hook: &s},
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].frame != items[j].frame {
			return items[i].frame.Less(items[j].frame)
		}
		if items[i].pass != items[j].pass {
			return items[i].pass < items[j].pass
		}
		return items[i].order < items[j].order
	})

	checkMixedKinds(items, log)

	ordered := make([]types.Snapshot, len(items))
	for i, it := range items {
		ordered[i] = it.snap
	}
	return types.NewSnapshots(ordered)
}

// checkMixedKinds logs an error for any trace entry whose frames produced
// both opcode and hook snapshots: per spec, a contract either has source
// (hook snapshots only) or doesn't (opcode snapshots only), so a mix
// indicates an analyzer or inspector bug rather than a legitimate outcome.
func checkMixedKinds(items []taggedSnapshot, log *logrus.Entry) {
	kindByEntry := make(map[int]types.SnapshotKind, len(items))
	for _, it := range items {
		id := it.frame.TraceEntryID
		kind := it.snap.Kind
		if existing, seen := kindByEntry[id]; seen {
			if existing != kind {
				log.WithField("trace_entry_id", id).Error("snapshot: mixed opcode and hook snapshots within a single frame")
			}
			continue
		}
		kindByEntry[id] = kind
	}
}
