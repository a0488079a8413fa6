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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsVerifiedEmptySourceCode(t *testing.T) {
	r := &etherscanSourceResult{}
	require.False(t, r.isVerified())
}

func TestIsVyperDetection(t *testing.T) {
	r := &etherscanSourceResult{item: etherscanSourceItem{CompilerVersion: "vyper:0.3.7"}}
	require.True(t, r.isVyper())

	r2 := &etherscanSourceResult{item: etherscanSourceItem{CompilerVersion: "v0.8.19+commit.7dd6d404"}}
	require.False(t, r2.isVyper())
}

func TestToArtifactSingleFile(t *testing.T) {
	r := &etherscanSourceResult{item: etherscanSourceItem{
		SourceCode:   "pragma solidity ^0.8.0; contract C {}",
		ContractName: "C",
	}}
	artifact, err := r.toArtifact()
	require.NoError(t, err)
	require.Contains(t, artifact.Input.Sources, "Contract.sol")
	require.Equal(t, "C", artifact.Metadata.ContractName)
}

func TestToArtifactStandardJSONDoubleBraces(t *testing.T) {
	raw := `{{"language":"Solidity","sources":{"A.sol":{"content":"contract A {}"}},"settings":{"outputSelection":{"*":{"*":["abi"]}}}}}`
	r := &etherscanSourceResult{item: etherscanSourceItem{SourceCode: raw, ContractName: "A"}}
	artifact, err := r.toArtifact()
	require.NoError(t, err)
	require.Contains(t, artifact.Input.Sources, "A.sol")
	require.Equal(t, "contract A {}", artifact.Input.Sources["A.sol"].Content)
}

func TestToArtifactConstructorArgsDecoded(t *testing.T) {
	r := &etherscanSourceResult{item: etherscanSourceItem{
		SourceCode:           "contract C {}",
		ContractName:         "C",
		ConstructorArguments: "0xdeadbeef",
	}}
	artifact, err := r.toArtifact()
	require.NoError(t, err)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, artifact.Metadata.ConstructorArgs)
}
