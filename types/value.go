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

import "fmt"

// Value is a decoded Solidity value as produced by the expression
// evaluator: a Solidity type name (e.g. "uint256", "address", "bool",
// "string", "bytes", "tuple") paired with its Go representation
// (*big.Int, common.Address, bool, string, []byte, or []Value for tuples
// and arrays). It is the wire shape of edb_evalOnSnapshot's success case.
type Value struct {
	Type string `json:"type"`
	Val  any    `json:"value"`
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.Type, v.Val)
}

// Bool returns v's underlying bool, or false if v is not a bool.
func (v Value) Bool() (bool, bool) {
	b, ok := v.Val.(bool)
	return b, ok
}
