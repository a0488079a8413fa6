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

package source

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edb-rs/edb/types"
)

// etherscanSourceItem is one element of Etherscan's getsourcecode result
// array.
type etherscanSourceItem struct {
	SourceCode           string `json:"SourceCode"`
	ABI                  string `json:"ABI"`
	ContractName         string `json:"ContractName"`
	CompilerVersion      string `json:"CompilerVersion"`
	OptimizationUsed     string `json:"OptimizationUsed"`
	Runs                 string `json:"Runs"`
	EVMVersion           string `json:"EVMVersion"`
	ConstructorArguments string `json:"ConstructorArguments"`
}

type etherscanSourceResult struct {
	item etherscanSourceItem
}

func (r *etherscanSourceResult) isVerified() bool {
	return strings.TrimSpace(r.item.SourceCode) != ""
}

// isVyper detects Etherscan's Vyper compiler-version marker; Vyper sources
// are treated as "no source" per spec, since the rest of the pipeline only
// understands Solidity ASTs.
func (r *etherscanSourceResult) isVyper() bool {
	return strings.Contains(strings.ToLower(r.item.CompilerVersion), "vyper")
}

// toArtifact parses Etherscan's SourceCode field, which is either a single
// raw Solidity file, or (for multi-file verifications) a JSON object
// wrapped in one extra pair of braces: "{{ ...standard-json-input... }}".
func (r *etherscanSourceResult) toArtifact() (*types.Artifact, error) {
	sources, settings, err := parseSourceCode(r.item.SourceCode)
	if err != nil {
		return nil, err
	}

	constructorArgs, err := hex.DecodeString(strings.TrimPrefix(r.item.ConstructorArguments, "0x"))
	if err != nil {
		constructorArgs = nil
	}

	return &types.Artifact{
		Metadata: types.ArtifactMetadata{
			ContractName:    r.item.ContractName,
			CompilerVersion: r.item.CompilerVersion,
			ConstructorArgs: constructorArgs,
		},
		Input: types.SolcInput{
			Language: "Solidity",
			Sources:  sources,
			Settings: settings,
		},
	}, nil
}

func parseSourceCode(raw string) (map[string]types.SourceFile, types.SolcSettings, error) {
	trimmed := strings.TrimSpace(raw)
	settings := types.SolcSettings{
		OutputSelection: map[string]map[string][]string{
			"*": {"*": {"abi", "evm.bytecode", "evm.deployedBytecode"}},
		},
	}

	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		inner := trimmed[1 : len(trimmed)-1]
		var standardInput types.SolcInput
		if err := json.Unmarshal([]byte(inner), &standardInput); err != nil {
			return nil, settings, fmt.Errorf("source: parse standard-json source: %w", err)
		}
		if standardInput.Settings.OutputSelection != nil {
			settings = standardInput.Settings
		}
		return standardInput.Sources, settings, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var multi map[string]types.SourceFile
		if err := json.Unmarshal([]byte(trimmed), &multi); err == nil {
			return multi, settings, nil
		}
	}

	return map[string]types.SourceFile{
		"Contract.sol": {Content: raw},
	}, settings, nil
}
