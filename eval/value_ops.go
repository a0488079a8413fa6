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
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/edb-rs/edb/types"
)

func isIntType(t string) bool {
	return strings.HasPrefix(t, "uint") || strings.HasPrefix(t, "int")
}

func asBigInt(v types.Value) (*big.Int, bool) {
	n, ok := v.Val.(*big.Int)
	return n, ok
}

func evalBinary(op string, l, r types.Value) (types.Value, error) {
	switch op {
	case "&&", "||":
		lb, lok := l.Bool()
		rb, rok := r.Bool()
		if !lok || !rok {
			return types.Value{}, fmt.Errorf("%s requires bool operands, got %s and %s", op, l.Type, r.Type)
		}
		if op == "&&" {
			return types.Value{Type: "bool", Val: lb && rb}, nil
		}
		return types.Value{Type: "bool", Val: lb || rb}, nil
	case "==", "!=":
		eq := valuesEqual(l, r)
		if op == "!=" {
			eq = !eq
		}
		return types.Value{Type: "bool", Val: eq}, nil
	}

	ln, lok := asBigInt(l)
	rn, rok := asBigInt(r)
	if !lok || !rok {
		return types.Value{}, fmt.Errorf("%s requires integer operands, got %s and %s", op, l.Type, r.Type)
	}
	switch op {
	case "+":
		return types.Value{Type: "int256", Val: new(big.Int).Add(ln, rn)}, nil
	case "-":
		return types.Value{Type: "int256", Val: new(big.Int).Sub(ln, rn)}, nil
	case "*":
		return types.Value{Type: "int256", Val: new(big.Int).Mul(ln, rn)}, nil
	case "/":
		if rn.Sign() == 0 {
			return types.Value{}, fmt.Errorf("division by zero")
		}
		return types.Value{Type: "int256", Val: new(big.Int).Quo(ln, rn)}, nil
	case "%":
		if rn.Sign() == 0 {
			return types.Value{}, fmt.Errorf("modulo by zero")
		}
		return types.Value{Type: "int256", Val: new(big.Int).Rem(ln, rn)}, nil
	case "<", "<=", ">", ">=":
		cmp := ln.Cmp(rn)
		var res bool
		switch op {
		case "<":
			res = cmp < 0
		case "<=":
			res = cmp <= 0
		case ">":
			res = cmp > 0
		case ">=":
			res = cmp >= 0
		}
		return types.Value{Type: "bool", Val: res}, nil
	}
	return types.Value{}, fmt.Errorf("unsupported operator %q", op)
}

func valuesEqual(l, r types.Value) bool {
	if ln, lok := asBigInt(l); lok {
		if rn, rok := asBigInt(r); rok {
			return ln.Cmp(rn) == 0
		}
	}
	if lb, ok := l.Val.(bool); ok {
		if rb, ok := r.Val.(bool); ok {
			return lb == rb
		}
	}
	if ls, ok := l.Val.(string); ok {
		if rs, ok := r.Val.(string); ok {
			return ls == rs
		}
	}
	if la, ok := l.Val.(common.Address); ok {
		if ra, ok := r.Val.(common.Address); ok {
			return la == ra
		}
	}
	return false
}

func evalUnary(op string, v types.Value) (types.Value, error) {
	switch op {
	case "-":
		n, ok := asBigInt(v)
		if !ok {
			return types.Value{}, fmt.Errorf("unary - requires an integer operand, got %s", v.Type)
		}
		return types.Value{Type: v.Type, Val: new(big.Int).Neg(n)}, nil
	case "!":
		b, ok := v.Bool()
		if !ok {
			return types.Value{}, fmt.Errorf("unary ! requires a bool operand, got %s", v.Type)
		}
		return types.Value{Type: "bool", Val: !b}, nil
	}
	return types.Value{}, fmt.Errorf("unsupported unary operator %q", op)
}

// castTo implements a Solidity explicit cast: bool(x), uint256(x),
// address(x), and friends. typeName is the identifier used as the call
// target, e.g. "uint8" in "uint8(x)".
func castTo(typeName string, v types.Value) (types.Value, error) {
	switch {
	case typeName == "bool":
		switch val := v.Val.(type) {
		case bool:
			return v, nil
		case *big.Int:
			return types.Value{Type: "bool", Val: val.Sign() != 0}, nil
		}
		return types.Value{}, fmt.Errorf("cannot cast %s to bool", v.Type)
	case isIntType(typeName):
		n, ok := asBigInt(v)
		if !ok {
			if b, ok := v.Val.(bool); ok {
				if b {
					n = big.NewInt(1)
				} else {
					n = big.NewInt(0)
				}
			} else {
				return types.Value{}, fmt.Errorf("cannot cast %s to %s", v.Type, typeName)
			}
		}
		bits, signed := intTypeWidth(typeName)
		return types.Value{Type: typeName, Val: truncateInt(n, bits, signed)}, nil
	case typeName == "address":
		switch val := v.Val.(type) {
		case common.Address:
			return v, nil
		case *big.Int:
			return types.Value{Type: "address", Val: common.BigToAddress(val)}, nil
		}
		return types.Value{}, fmt.Errorf("cannot cast %s to address", v.Type)
	case typeName == "string":
		if s, ok := v.Val.(string); ok {
			return types.Value{Type: "string", Val: s}, nil
		}
		return types.Value{}, fmt.Errorf("cannot cast %s to string", v.Type)
	}
	return types.Value{}, fmt.Errorf("unsupported cast target %q", typeName)
}

// intTypeWidth parses "uint256"/"int8"/etc. into (bit width, signed).
func intTypeWidth(t string) (int, bool) {
	signed := !strings.HasPrefix(t, "u")
	digits := strings.TrimPrefix(strings.TrimPrefix(t, "u"), "int")
	if digits == "" {
		return 256, signed
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 256, signed
	}
	return n, signed
}

func truncateInt(n *big.Int, bits int, signed bool) *big.Int {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	r := new(big.Int).Mod(n, mod)
	if signed {
		half := new(big.Int).Rsh(mod, 1)
		if r.Cmp(half) >= 0 {
			r.Sub(r, mod)
		}
	}
	return r
}

// isCastIdent reports whether name names a Solidity elementary type usable
// as an explicit-cast call target.
func isCastIdent(name string) bool {
	return name == "bool" || name == "address" || name == "string" || isIntType(name)
}
