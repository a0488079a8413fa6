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

package tweak

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

func TestIsPlainCreateTrueWhenToIsNil(t *testing.T) {
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce: 0,
		To:    nil,
		Value: nil,
		Gas:   21000,
	})
	require.True(t, IsPlainCreate(tx))
}

func TestIsPlainCreateFalseForRegularCall(t *testing.T) {
	to := common.HexToAddress("0x000000000000000000000000000000000000aa")
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce: 0,
		To:    &to,
		Gas:   21000,
	})
	require.False(t, IsPlainCreate(tx))
}

func TestBuildInitCodeConcatenatesCodeThenArgs(t *testing.T) {
	code := []byte{0x60, 0x80, 0x60, 0x40}
	args := []byte{0x00, 0x00, 0x00, 0x01}

	initCode := BuildInitCode(code, args)
	require.Equal(t, append(append([]byte{}, code...), args...), initCode)
	require.Len(t, initCode, len(code)+len(args))
}

func TestBuildInitCodeEmptyArgs(t *testing.T) {
	code := []byte{0xde, 0xad, 0xbe, 0xef}
	initCode := BuildInitCode(code, nil)
	require.Equal(t, code, initCode)
}
