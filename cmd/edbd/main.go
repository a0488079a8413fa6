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

// Command edbd builds a single transaction's debug session and serves it
// over JSON-RPC until interrupted. Exit codes follow spec.md §6: 0 normal,
// 1 build failure, 2 bind failure.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/edb-rs/edb/analysis"
	"github.com/edb-rs/edb/cachestore"
	"github.com/edb-rs/edb/calltrace"
	"github.com/edb-rs/edb/compiler"
	"github.com/edb-rs/edb/engine"
	"github.com/edb-rs/edb/forkdb"
	"github.com/edb-rs/edb/idgen"
	"github.com/edb-rs/edb/instrument"
	"github.com/edb-rs/edb/keypool"
	"github.com/edb-rs/edb/replay"
	"github.com/edb-rs/edb/rpcserver"
	"github.com/edb-rs/edb/snapshot"
	"github.com/edb-rs/edb/source"
	edbtypes "github.com/edb-rs/edb/types"
)

const (
	exitOK           = 0
	exitBuildFailure = 1
	exitBindFailure  = 2
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	app := &cli.App{
		Name:  "edbd",
		Usage: "serve a single transaction's time-travel debug session over JSON-RPC",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rpc-url", Required: true, Usage: "archive node JSON-RPC endpoint"},
			&cli.StringFlag{Name: "tx", Required: true, Usage: "target transaction hash"},
			&cli.StringFlag{Name: "listen", Value: "127.0.0.1:8645", Usage: "address to serve edb_* JSON-RPC on"},
			&cli.StringFlag{Name: "cache-dir", Usage: "overrides EDB_CACHE_DIR"},
			&cli.StringSliceFlag{Name: "etherscan-key", EnvVars: []string{"EDB_ETHERSCAN_KEYS"}, Usage: "comma-separated etherscan API keys"},
			&cli.BoolFlag{Name: "quick", Usage: "skip replaying the block's preceding transactions"},
		},
		Action: func(c *cli.Context) error {
			return run(c, log)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("edbd: build failed")
		os.Exit(exitBuildFailure)
	}
}

func run(c *cli.Context, log *logrus.Entry) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := ethclient.DialContext(ctx, c.String("rpc-url"))
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.String("rpc-url"), err)
	}
	defer client.Close()

	txHash := common.HexToHash(c.String("tx"))
	tx, _, err := client.TransactionByHash(ctx, txHash)
	if err != nil {
		return fmt.Errorf("fetch tx %s: %w", txHash, err)
	}
	receipt, err := client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return fmt.Errorf("fetch receipt for %s: %w", txHash, err)
	}

	replayer := replay.New(client, log)
	fork, err := replayer.Run(ctx, receipt.BlockNumber.Uint64(), txHash, c.Bool("quick"))
	if err != nil {
		return fmt.Errorf("replay preamble: %w", err)
	}

	cacheDir := resolveCacheDir(c, fork.ForkInfo.ChainID)
	etherscanCache, err := cachestore.Open(filepath.Join(cacheDir, "etherscan"), log)
	if err != nil {
		return fmt.Errorf("open etherscan cache: %w", err)
	}
	defer etherscanCache.Close()

	compilerCache, err := cachestore.Open(filepath.Join(cacheDir, "compiler"), log)
	if err != nil {
		return fmt.Errorf("open compiler cache: %w", err)
	}
	defer compilerCache.Close()

	keys := keypool.New(c.StringSlice("etherscan-key"))
	oracle := source.NewEtherscanOracle(keys, etherscanCache, fork.ForkInfo.ChainID.Uint64(), log)

	build, err := buildDebugSession(ctx, log, fork, tx, oracle, compilerCache)
	if err != nil {
		return fmt.Errorf("build debug session: %w", err)
	}

	if err := build.Finalize(log); err != nil {
		return fmt.Errorf("finalize debug session: %w", err)
	}

	srv, err := rpcserver.New(log, build, c.String("listen"))
	if err != nil {
		return fmt.Errorf("build rpc server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("edbd: bind failed")
			os.Exit(exitBindFailure)
		}
		return nil
	}
}

func resolveCacheDir(c *cli.Context, chainID *big.Int) string {
	if dir := c.String("cache-dir"); dir != "" {
		return dir
	}
	if dir := os.Getenv("EDB_CACHE_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".edb", "cache", chainID.String())
}

// oracleLookup is the narrow surface buildDebugSession needs from a source
// oracle; satisfied by *source.EtherscanOracle, narrowed for testability.
type oracleLookup interface {
	Lookup(ctx context.Context, address common.Address) (*edbtypes.Artifact, bool, error)
}

// buildDebugSession runs the target transaction twice: once under a plain
// call-trace pass to discover every address it touches, then once more
// under the opcode/hook inspectors now that source lookup and
// instrumentation have sorted those addresses into "has source" and
// "opcode only" buckets. Two passes keep Lookup/Compile calls off of
// addresses the transaction never actually reaches. Each discovered
// address's Lookup/Analyze/Instrument/Compile chain is independent of
// every other address's, so the per-address loop fans out one goroutine
// per address via errgroup, guarding the shared result maps with a mutex.
func buildDebugSession(
	ctx context.Context,
	log *logrus.Entry,
	fork *replay.ForkResult,
	tx *types.Transaction,
	oracle oracleLookup,
	compilerCache *cachestore.Store,
) (*engine.Context, error) {
	blockCtx := replay.BlockContext(fork.Block, fork.ForkInfo.HardforkID)
	signer := types.MakeSigner(fork.ForkInfo.ChainConfig, fork.Block.Number(), fork.Block.Time())
	msg, err := core.TransactionToMessage(tx, signer, fork.Block.BaseFee())
	if err != nil {
		return nil, fmt.Errorf("decode target tx: %w", err)
	}

	discoveryTracer := calltrace.New()
	discoveryState := forkdb.NewStateAdapter(fork.DB)
	if err := runOnce(discoveryState, fork, blockCtx, msg, discoveryTracer.Hooks()); err != nil {
		log.WithError(err).Debug("edbd: discovery pass reverted or halted")
	}
	visited := discoveryTracer.Result().VisitedAddresses

	artifacts := make(map[common.Address]*edbtypes.Artifact)
	recompiled := make(map[common.Address]*edbtypes.Artifact)
	analysisResults := make(map[common.Address]*edbtypes.AnalysisResult)
	sources := make(map[string]string)
	noSourceAddrs := make(map[common.Address]bool)

	// A single idgen.IDs and a single monotonically increasing FileID
	// counter span every address: the hook inspector resolves a USID to
	// its Step through one merged AnalysisResult (see mergedAnalysis), so
	// USIDs and FileIDs must stay globally unique across contracts, not
	// just within one contract's own analyzer. Both are allocated through
	// atomics so every address's Lookup/Analyze/Instrument/Compile chain
	// below can run on its own goroutine.
	recompilerIDs := idgen.New()
	var nextFileID atomic.Uint32
	rc := compiler.New(log)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for addr := range visited {
		g.Go(func() error {
			art, ok, err := oracle.Lookup(gctx, addr)
			if err != nil || !ok {
				mu.Lock()
				noSourceAddrs[addr] = true
				mu.Unlock()
				return nil
			}

			az := analysis.New(recompilerIDs)
			fileContents := make(map[string]string, len(art.Input.Sources))
			for path, file := range art.Input.Sources {
				fileID := edbtypes.FileID(nextFileID.Add(1) - 1)
				fileContents[path] = file.Content
				var ast = art.Output.Sources[path].AST
				if _, err := az.AnalyzeFile(fileID, path, file.Content, ast); err != nil {
					log.WithError(err).WithField("path", path).Warn("edbd: analysis failed, falling back to opcode-only")
					mu.Lock()
					noSourceAddrs[addr] = true
					mu.Unlock()
					return nil
				}
			}
			result := az.Result()

			instrumented, err := instrument.Instrument(art, &result)
			if err != nil {
				log.WithError(err).WithField("address", addr).Warn("edbd: instrumentation failed, falling back to opcode-only")
				mu.Lock()
				noSourceAddrs[addr] = true
				mu.Unlock()
				return nil
			}
			output, err := compileCached(gctx, compilerCache, rc, addr, art, instrumented)
			if err != nil {
				log.WithError(err).WithField("address", addr).Warn("edbd: recompilation failed, falling back to opcode-only")
				mu.Lock()
				noSourceAddrs[addr] = true
				mu.Unlock()
				return nil
			}

			mu.Lock()
			artifacts[addr] = art
			analysisResults[addr] = &result
			recompiled[addr] = &edbtypes.Artifact{Metadata: art.Metadata, Input: instrumented, Output: *output}
			for path, content := range fileContents {
				sources[path] = content
			}
			mu.Unlock()
			return nil
		})
	}
	// Every branch above handles its own failure by marking the address
	// opcode-only rather than returning an error, so Wait only awaits
	// completion and returns nil.
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build per-address sources: %w", err)
	}

	state := forkdb.NewStateAdapter(fork.DB)
	opcodeInsp := snapshot.NewOpcodeInspector(state, noSourceAddrs)
	hookInsp := snapshot.NewHookInspector(state, mergedAnalysis(analysisResults), sources, log)
	callTracer := calltrace.New()

	if err := runOnce(state, fork, blockCtx, msg, combineHooks(opcodeInsp.Hooks(), hookInsp.Hooks(), callTracer.Hooks())); err != nil {
		log.WithError(err).Debug("edbd: debug pass reverted or halted")
	}

	opcodeSnaps, err := opcodeInsp.Snapshots()
	if err != nil {
		return nil, fmt.Errorf("opcode snapshots: %w", err)
	}
	hookSnaps, err := hookInsp.Snapshots()
	if err != nil {
		return nil, fmt.Errorf("hook snapshots: %w", err)
	}
	snapshots := snapshot.Merge(opcodeSnaps, hookSnaps, log)
	trace := callTracer.Result().Trace

	return engine.Build(
		fork.ForkInfo, fork.ForkInfo.ChainConfig, fork.Block, tx,
		&trace, snapshots, artifacts, recompiled, analysisResults,
	), nil
}

// runOnce drives the EVM for the target tx over an already-built state
// adapter. Callers build the adapter themselves so inspectors attached via
// hooks observe the same adapter instance the EVM actually mutates.
func runOnce(state *forkdb.StateAdapter, fork *replay.ForkResult, blockCtx vm.BlockContext, msg *core.Message, hooks *tracing.Hooks) error {
	evm := vm.NewEVM(blockCtx, state, fork.ForkInfo.ChainConfig, vm.Config{Tracer: hooks})
	evm.SetTxContext(core.NewEVMTxContext(msg))
	gasPool := new(core.GasPool).AddGas(fork.Block.GasLimit())
	_, err := core.ApplyMessage(evm, msg, gasPool)
	return err
}

// combineHooks fans a single tracing event out to every non-nil hook set.
// The three inspectors installed together never mutate shared EVM state,
// only their own buffers, so calling them all for the same event is safe.
func combineHooks(sets ...*tracing.Hooks) *tracing.Hooks {
	nonNil := make([]*tracing.Hooks, 0, len(sets))
	for _, s := range sets {
		if s != nil {
			nonNil = append(nonNil, s)
		}
	}
	return &tracing.Hooks{
		OnEnter: func(depth int, typ byte, from, to common.Address, input []byte, gas uint64, value *big.Int) {
			for _, s := range nonNil {
				if s.OnEnter != nil {
					s.OnEnter(depth, typ, from, to, input, gas, value)
				}
			}
		},
		OnExit: func(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
			for _, s := range nonNil {
				if s.OnExit != nil {
					s.OnExit(depth, output, gasUsed, err, reverted)
				}
			}
		},
		OnOpcode: func(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
			for _, s := range nonNil {
				if s.OnOpcode != nil {
					s.OnOpcode(pc, op, gas, cost, scope, rData, depth, err)
				}
			}
		},
	}
}

// compileCached checks the compiler cache before recompiling an address's
// instrumented source, per spec.md §6: "compiler/ — keyed by address,
// contains the resulting Artifact; never expires. Re-used across runs." A
// cache hit skips Compile entirely; a miss compiles and stores the result
// with ttl=0 (never expires) before returning it.
func compileCached(
	ctx context.Context,
	cache *cachestore.Store,
	rc *compiler.Recompiler,
	addr common.Address,
	art *edbtypes.Artifact,
	instrumented edbtypes.SolcInput,
) (*edbtypes.CompilerOutput, error) {
	key := addr.Hex()
	var cached edbtypes.CompilerOutput
	if ok, err := cache.Get(key, &cached); err == nil && ok {
		return &cached, nil
	}

	output, err := rc.Compile(ctx, addr, art.Input, instrumented, art.Metadata.CompilerVersion)
	if err != nil {
		return nil, err
	}
	if err := cache.Put(key, output, 0); err != nil {
		return nil, fmt.Errorf("cache compiled output for %s: %w", addr, err)
	}
	return output, nil
}

// mergedAnalysis builds the single AnalysisResult the hook inspector needs
// to resolve a probe-call USID to its Step: Files and UsidToStep are the
// only fields StepAt reads, and both key off ids minted from the one
// idgen.IDs shared across every address's analyzer in buildDebugSession,
// so a plain map union is safe without any index remapping. Scopes and
// Variables stay per-address in ctx.AnalysisResults for the evaluator,
// which looks variables up by name within a single contract's result.
func mergedAnalysis(byAddr map[common.Address]*edbtypes.AnalysisResult) *edbtypes.AnalysisResult {
	merged := &edbtypes.AnalysisResult{
		Files: make(map[edbtypes.FileID]*edbtypes.SourceAnalysis),
		UsidToStep: make(map[edbtypes.USID]struct {
			File edbtypes.FileID
			Step int
		}),
	}
	for _, a := range byAddr {
		for id, f := range a.Files {
			merged.Files[id] = f
		}
		for usid, loc := range a.UsidToStep {
			merged.UsidToStep[usid] = loc
		}
	}
	return merged
}
