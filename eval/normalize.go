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

import "strings"

// NormalizeExpression collapses any run of whitespace in expr to a single
// space and trims the ends, so that whitespace-only edits to an expression
// string never change its cache key or its round-trip through the parser.
func NormalizeExpression(expr string) string {
	return strings.Join(strings.Fields(expr), " ")
}
