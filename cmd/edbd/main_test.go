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

package main

import (
	"flag"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	edbtypes "github.com/edb-rs/edb/types"
)

func testCliContext(t *testing.T, set func(fs *flag.FlagSet)) *cli.Context {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	if set != nil {
		set(fs)
	}
	return cli.NewContext(nil, fs, nil)
}

func TestResolveCacheDirPrefersFlag(t *testing.T) {
	c := testCliContext(t, func(fs *flag.FlagSet) {
		fs.String("cache-dir", "/flag/dir", "")
	})
	require.Equal(t, "/flag/dir", resolveCacheDir(c, big.NewInt(1)))
}

func TestResolveCacheDirFallsBackToEnv(t *testing.T) {
	c := testCliContext(t, func(fs *flag.FlagSet) {
		fs.String("cache-dir", "", "")
	})
	t.Setenv("EDB_CACHE_DIR", "/env/dir")
	require.Equal(t, "/env/dir", resolveCacheDir(c, big.NewInt(1)))
}

func TestResolveCacheDirDefaultsUnderHome(t *testing.T) {
	c := testCliContext(t, func(fs *flag.FlagSet) {
		fs.String("cache-dir", "", "")
	})
	t.Setenv("EDB_CACHE_DIR", "")
	dir := resolveCacheDir(c, big.NewInt(5))
	require.Contains(t, dir, ".edb")
	require.Contains(t, dir, "cache")
	require.Contains(t, dir, "5")
}

func TestCombineHooksFansOutToEveryNonNilSet(t *testing.T) {
	var aEntered, bEntered bool
	a := &tracing.Hooks{OnEnter: func(int, byte, common.Address, common.Address, []byte, uint64, *big.Int) { aEntered = true }}
	b := &tracing.Hooks{OnEnter: func(int, byte, common.Address, common.Address, []byte, uint64, *big.Int) { bEntered = true }}

	combined := combineHooks(a, nil, b)
	combined.OnEnter(0, 0, common.Address{}, common.Address{}, nil, 0, big.NewInt(0))

	require.True(t, aEntered)
	require.True(t, bEntered)
}

func TestCombineHooksSkipsUnsetCallbacks(t *testing.T) {
	a := &tracing.Hooks{}
	combined := combineHooks(a)
	require.NotPanics(t, func() {
		combined.OnEnter(0, 0, common.Address{}, common.Address{}, nil, 0, big.NewInt(0))
		combined.OnExit(0, nil, 0, nil, false)
		combined.OnOpcode(0, 0, 0, 0, nil, nil, 0, nil)
	})
}

func TestMergedAnalysisUnionsFilesAndUsidToStep(t *testing.T) {
	addrA := common.HexToAddress("0xaaaa")
	addrB := common.HexToAddress("0xbbbb")

	byAddr := map[common.Address]*edbtypes.AnalysisResult{
		addrA: {
			Files: map[edbtypes.FileID]*edbtypes.SourceAnalysis{
				0: {Path: "A.sol"},
			},
			UsidToStep: map[edbtypes.USID]struct {
				File edbtypes.FileID
				Step int
			}{1: {File: 0, Step: 3}},
		},
		addrB: {
			Files: map[edbtypes.FileID]*edbtypes.SourceAnalysis{
				1: {Path: "B.sol"},
			},
			UsidToStep: map[edbtypes.USID]struct {
				File edbtypes.FileID
				Step int
			}{2: {File: 1, Step: 7}},
		},
	}

	merged := mergedAnalysis(byAddr)
	require.Len(t, merged.Files, 2)
	require.Equal(t, "A.sol", merged.Files[0].Path)
	require.Equal(t, "B.sol", merged.Files[1].Path)
	require.Len(t, merged.UsidToStep, 2)
	require.Equal(t, 3, merged.UsidToStep[1].Step)
	require.Equal(t, 7, merged.UsidToStep[2].Step)
	require.Nil(t, merged.Scopes)
	require.Nil(t, merged.Variables)
}
