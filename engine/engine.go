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

// Package engine assembles every pipeline stage's output into the single
// immutable value object the RPC server serves from: replay/fork info,
// compiled and recompiled artifacts, per-address analysis results, the call
// trace, and the merged snapshot sequence.
package engine

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"

	"github.com/edb-rs/edb/replay"
	edbtypes "github.com/edb-rs/edb/types"
)

// Context is the read-only value object every RPC handler borrows from.
// Once Finalize returns, nothing in it is mutated again — concurrent
// handlers read it without synchronization, matching spec.md §5's
// "handlers are pure functions over a shared immutable context".
type Context struct {
	ForkInfo replay.ForkInfo
	Config   *params.ChainConfig
	Block    *types.Block
	Tx       *types.Transaction
	TxHash   common.Hash

	Snapshots *edbtypes.Snapshots
	Trace     *edbtypes.Trace

	// Artifacts holds the as-deployed compiled contract per address;
	// RecompiledArtifacts holds the instrumented recompilation for
	// addresses that have one (i.e. every address with source, minus any
	// that failed to recompile and were demoted to opcode-only).
	Artifacts           map[common.Address]*edbtypes.Artifact
	RecompiledArtifacts map[common.Address]*edbtypes.Artifact
	AnalysisResults     map[common.Address]*edbtypes.AnalysisResult

	finalizeOnce sync.Once
	finalized    bool

	addrCodeAddrsOnce sync.Once
	addrCodeAddrs     map[common.Address]map[common.Address]struct{}
}

// Build assembles a Context from already-computed pipeline outputs. It
// performs no I/O and no EVM execution itself — every heavier step
// (replay, compile, instrument, tweak, trace, snapshot capture) has already
// run by the time Build is called; Build only wires the results together.
func Build(
	forkInfo replay.ForkInfo,
	cfg *params.ChainConfig,
	block *types.Block,
	tx *types.Transaction,
	trace *edbtypes.Trace,
	snapshots *edbtypes.Snapshots,
	artifacts, recompiled map[common.Address]*edbtypes.Artifact,
	analysisResults map[common.Address]*edbtypes.AnalysisResult,
) *Context {
	return &Context{
		ForkInfo:            forkInfo,
		Config:              cfg,
		Block:               block,
		Tx:                  tx,
		TxHash:              tx.Hash(),
		Snapshots:           snapshots,
		Trace:               trace,
		Artifacts:           artifacts,
		RecompiledArtifacts: recompiled,
		AnalysisResults:     analysisResults,
	}
}

// AddressCodeAddressMap lazily computes and caches Trace's
// address -> {code addresses} index, per spec.md §4.12's "lazily-computed
// indices" note: most sessions never call edb_getCode for most addresses,
// so building this eagerly in Build would be wasted work on the common
// path.
func (c *Context) AddressCodeAddressMap() map[common.Address]map[common.Address]struct{} {
	c.addrCodeAddrsOnce.Do(func() {
		c.addrCodeAddrs = c.Trace.AddressCodeAddressMap()
	})
	return c.addrCodeAddrs
}

// ABIFor returns the deployed (not recompiled) ABI for addr, for use by the
// eval package's function-call dispatch — evaluation reasons about the
// contract exactly as deployed, not as instrumented.
func (c *Context) ABIFor(addr common.Address) (json []byte, ok bool) {
	art, ok := c.Artifacts[addr]
	if !ok {
		return nil, false
	}
	contract, ok := art.Contract()
	if !ok {
		return nil, false
	}
	return contract.ABI, true
}

// Finalized reports whether Finalize has completed, for the RPC server's
// Created -> Built state transition.
func (c *Context) Finalized() bool { return c.finalized }
