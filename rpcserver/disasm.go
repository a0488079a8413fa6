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

package rpcserver

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/core/asm"
	"github.com/ethereum/go-ethereum/core/vm"
)

// disassemble walks deployed bytecode with geth's own instruction iterator
// and returns a pc -> mnemonic-text map, the shape edb_getCode's Opcode
// variant serves for a no-source address.
func disassemble(code []byte) map[uint64]string {
	out := make(map[uint64]string)
	_ = asm.ForEachDisassembledInstruction(code, func(pc uint64, op vm.OpCode, args []byte) {
		text := op.String()
		if len(args) > 0 {
			text += " 0x" + hex.EncodeToString(args)
		}
		out[pc] = text
	})
	return out
}
