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

package eval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBinaryPrecedence(t *testing.T) {
	e, err := Parse("1 + 2 * 3")
	require.NoError(t, err)
	bin, ok := e.(BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	rhs, ok := bin.Right.(BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "*", rhs.Op)
}

func TestParseTernary(t *testing.T) {
	e, err := Parse("a > 0 ? 1 : 2")
	require.NoError(t, err)
	tern, ok := e.(TernaryExpr)
	require.True(t, ok)
	_, ok = tern.Cond.(BinaryExpr)
	require.True(t, ok)
}

func TestParseMemberAndCall(t *testing.T) {
	e, err := Parse("msg.sender")
	require.NoError(t, err)
	m, ok := e.(MemberExpr)
	require.True(t, ok)
	require.Equal(t, "sender", m.Name)
	base, ok := m.Base.(IdentExpr)
	require.True(t, ok)
	require.Equal(t, "msg", base.Name)

	e, err = Parse("bool(balanceOf(msg.sender) > 0)")
	require.NoError(t, err)
	call, ok := e.(CallExpr)
	require.True(t, ok)
	callee, ok := call.Callee.(IdentExpr)
	require.True(t, ok)
	require.Equal(t, "bool", callee.Name)
	require.Len(t, call.Args, 1)
}

func TestParseAddressLiteral(t *testing.T) {
	e, err := Parse("0x000000000000000000000000000000000000dEaD")
	require.NoError(t, err)
	lit, ok := e.(AddressLit)
	require.True(t, ok)
	require.Equal(t, "0x000000000000000000000000000000000000dEaD", lit.Hex)
}

func TestParseUnaryAndIndex(t *testing.T) {
	e, err := Parse("!flag")
	require.NoError(t, err)
	u, ok := e.(UnaryExpr)
	require.True(t, ok)
	require.Equal(t, "!", u.Op)

	e, err = Parse("balances[msg.sender]")
	require.NoError(t, err)
	idx, ok := e.(IndexExpr)
	require.True(t, ok)
	_, ok = idx.Index.(MemberExpr)
	require.True(t, ok)
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	_, err := Parse("1 + 2)")
	require.Error(t, err)
}
