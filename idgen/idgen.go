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

// Package idgen allocates the process-wide monotonic identifiers (USID,
// UVID, UFID, UCID, UTID) minted during AST analysis. Ids are stable only
// within a single EDB run.
package idgen

import (
	"sync/atomic"

	"github.com/edb-rs/edb/types"
)

// Allocator hands out monotonically increasing ids for one id family.
// The zero value is ready to use and starts at 1, reserving 0 to mean
// "unset" in optional fields.
type Allocator struct {
	next atomic.Uint64
}

func (a *Allocator) increment() uint64 {
	return a.next.Add(1)
}

// USIDAllocator mints step ids.
type USIDAllocator struct{ a Allocator }

// Next returns the next USID.
func (g *USIDAllocator) Next() types.USID { return types.USID(g.a.increment()) }

// UVIDAllocator mints variable ids.
type UVIDAllocator struct{ a Allocator }

// Next returns the next UVID.
func (g *UVIDAllocator) Next() types.UVID { return types.UVID(g.a.increment()) }

// UFIDAllocator mints function ids.
type UFIDAllocator struct{ a Allocator }

// Next returns the next UFID.
func (g *UFIDAllocator) Next() types.UFID { return types.UFID(g.a.increment()) }

// UCIDAllocator mints contract ids.
type UCIDAllocator struct{ a Allocator }

// Next returns the next UCID.
func (g *UCIDAllocator) Next() types.UCID { return types.UCID(g.a.increment()) }

// UTIDAllocator mints type ids.
type UTIDAllocator struct{ a Allocator }

// Next returns the next UTID.
func (g *UTIDAllocator) Next() types.UTID { return types.UTID(g.a.increment()) }

// IDs bundles one allocator per id family for a single analysis run. A
// fresh IDs should be created per EDB engine build so ids stay stable and
// dense within that run, per spec.md's USID/UVID/... definition.
type IDs struct {
	USID USIDAllocator
	UVID UVIDAllocator
	UFID UFIDAllocator
	UCID UCIDAllocator
	UTID UTIDAllocator
}

// New returns a fresh set of allocators.
func New() *IDs { return &IDs{} }
