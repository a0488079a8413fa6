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

package compiler

import (
	"path/filepath"
	"strings"
)

// sanitizePath strips ".."/"."/absolute-root components from a solc source
// path before joining it under a dump directory, so a crafted import path
// in untrusted on-chain metadata can never escape that directory.
func sanitizePath(path string) string {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	parts := strings.Split(cleaned, "/")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".", "..":
			continue
		default:
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "unnamed_source"
	}
	return filepath.Join(kept...)
}
