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

// Package spec maps Ethereum mainnet block numbers to hardfork rules, and
// derives the blob base fee update fraction used to build a block's
// BlobBaseFee (EIP-4844/7516).
package spec

import (
	"sort"

	"github.com/ethereum/go-ethereum/params"
)

// ID is a simplified, totally-ordered hardfork identifier. Values increase
// with chronological activation; comparisons via >= therefore work as
// "at or after this fork".
type ID int

const (
	Frontier ID = iota
	Homestead
	Tangerine
	SpuriousDragon
	Byzantium
	Constantinople
	Petersburg
	Istanbul
	Berlin
	London
	ArrowGlacier
	GrayGlacier
	Merge
	Shanghai
	Cancun
	Prague
)

func (s ID) String() string {
	switch s {
	case Frontier:
		return "Frontier"
	case Homestead:
		return "Homestead"
	case Tangerine:
		return "Tangerine Whistle"
	case SpuriousDragon:
		return "Spurious Dragon"
	case Byzantium:
		return "Byzantium"
	case Constantinople:
		return "Constantinople"
	case Petersburg:
		return "Petersburg"
	case Istanbul:
		return "Istanbul"
	case Berlin:
		return "Berlin"
	case London:
		return "London"
	case ArrowGlacier:
		return "Arrow Glacier"
	case GrayGlacier:
		return "Gray Glacier"
	case Merge:
		return "The Merge"
	case Shanghai:
		return "Shanghai"
	case Cancun:
		return "Cancun"
	case Prague:
		return "Prague"
	default:
		return "Unknown"
	}
}

type hardfork struct {
	block int64
	id    ID
}

// mainnetHardforks is the Ethereum mainnet block -> hardfork step function.
// Constantinople and Petersburg activate at the same block; Petersburg
// takes precedence because it immediately replaced Constantinople before
// the latter ever ran on mainnet.
var mainnetHardforks = []hardfork{
	{0, Frontier},
	{1_150_000, Homestead},
	{2_463_000, Tangerine},
	{2_675_000, SpuriousDragon},
	{4_370_000, Byzantium},
	{7_280_000, Petersburg},
	{9_069_000, Istanbul},
	{12_244_000, Berlin},
	{12_965_000, London},
	{13_773_000, ArrowGlacier},
	{15_050_000, GrayGlacier},
	{15_537_394, Merge},
	{17_034_870, Shanghai},
	{19_426_589, Cancun},
}

// At returns the last hardfork whose starting block is <= blockNumber.
func At(blockNumber uint64) ID {
	idx := sort.Search(len(mainnetHardforks), func(i int) bool {
		return uint64(mainnetHardforks[i].block) > blockNumber
	})
	if idx == 0 {
		return Frontier
	}
	return mainnetHardforks[idx-1].id
}

// Blob base fee update fractions (EIP-4844 / EIP-7691), by hardfork.
const (
	CancunBlobBaseFeeUpdateFraction = 3_338_477
	PragueBlobBaseFeeUpdateFraction = 5_007_716
)

// BlobBaseFeeUpdateFraction returns CancunBlobBaseFeeUpdateFraction for
// specs below Prague, else PragueBlobBaseFeeUpdateFraction.
func BlobBaseFeeUpdateFraction(id ID) uint64 {
	if id >= Prague {
		return PragueBlobBaseFeeUpdateFraction
	}
	return CancunBlobBaseFeeUpdateFraction
}

// ChainConfigAt returns the go-ethereum chain configuration whose fork
// block numbers make params.Rules report exactly the hardfork that At(n)
// returns for every block, by cloning mainnet params.MainnetChainConfig.
// EDB always replays against this configuration; it is never used to
// configure a non-mainnet session (out of scope — EDB targets Ethereum
// mainnet transactions per spec.md's REDESIGN FLAGS and GLOSSARY).
func ChainConfigAt(blockNumber uint64) *params.ChainConfig {
	cfg := *params.MainnetChainConfig
	return &cfg
}
