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

import "encoding/json"

// SourceFile is one file of a SolcInput: path to raw content.
type SourceFile struct {
	Content string `json:"content"`
}

// SolcInput is the subset of solc's standard-json input EDB needs to
// construct and rewrite.
type SolcInput struct {
	Language string                `json:"language"`
	Sources  map[string]SourceFile `json:"sources"`
	Settings SolcSettings          `json:"settings"`
}

// SolcSettings is the subset of solc standard-json settings EDB cares about.
type SolcSettings struct {
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
	Optimizer       *SolcOptimizer                 `json:"optimizer,omitempty"`
	EVMVersion      string                          `json:"evmVersion,omitempty"`
	Libraries       map[string]map[string]string    `json:"libraries,omitempty"`
}

// SolcOptimizer mirrors solc's optimizer settings block.
type SolcOptimizer struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// CompilerOutput is the subset of solc's standard-json output EDB consumes:
// per-file ASTs and per-contract bytecode/ABI.
type CompilerOutput struct {
	Errors   []CompilerDiagnostic          `json:"errors,omitempty"`
	Sources  map[string]CompilerOutputFile `json:"sources"`
	Contracts map[string]map[string]CompiledContract `json:"contracts"`
}

// CompilerDiagnostic is one solc error/warning entry.
type CompilerDiagnostic struct {
	Severity        string `json:"severity"`
	Message         string `json:"message"`
	FormattedMessage string `json:"formattedMessage"`
	SourceLocation  *struct {
		File  string `json:"file"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	} `json:"sourceLocation,omitempty"`
}

// CompilerOutputFile carries the raw AST JSON for one source file.
type CompilerOutputFile struct {
	ID  int             `json:"id"`
	AST json.RawMessage `json:"ast"`
}

// CompiledContract is one contract's bytecode/ABI, as emitted by solc.
type CompiledContract struct {
	ABI              json.RawMessage `json:"abi"`
	EVM              CompiledEVM     `json:"evm"`
}

// CompiledEVM is the "evm" sub-object of a CompiledContract.
type CompiledEVM struct {
	Bytecode         CompiledBytecode `json:"bytecode"`
	DeployedBytecode CompiledBytecode `json:"deployedBytecode"`
}

// CompiledBytecode is solc's {object, sourceMap, ...} bytecode entry.
type CompiledBytecode struct {
	Object    string `json:"object"`
	SourceMap string `json:"sourceMap,omitempty"`
}

// ArtifactMetadata describes how a contract was compiled and deployed.
type ArtifactMetadata struct {
	ContractName      string
	CompilerVersion   string
	ConstructorArgs   []byte
}

// Artifact is everything needed to recompile and re-deploy one contract.
type Artifact struct {
	Metadata ArtifactMetadata
	Input    SolcInput
	Output   CompilerOutput
}

// Contract returns the named compilation unit's ABI/bytecode, searching
// every file in Output.Contracts for a matching contract name.
func (a *Artifact) Contract() (CompiledContract, bool) {
	for _, byName := range a.Output.Contracts {
		if c, ok := byName[a.Metadata.ContractName]; ok {
			return c, true
		}
	}
	return CompiledContract{}, false
}
