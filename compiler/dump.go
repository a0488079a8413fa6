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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/edb-rs/edb/types"
)

// dumpSourcesForDebugging writes original and instrumented sources plus
// their settings.json to sibling directories under the OS temp dir, for a
// human to inspect after a recompilation failure. Returns the two
// directories.
func dumpSourcesForDebugging(address common.Address, original, instrumented types.SolcInput) (originalDir, instrumentedDir string, err error) {
	debugDir := filepath.Join(os.TempDir(), fmt.Sprintf("edb_debug_%s", address.Hex()))
	originalDir = filepath.Join(debugDir, "original")
	instrumentedDir = filepath.Join(debugDir, "instrumented")

	if err := writeSolcInput(originalDir, original); err != nil {
		return "", "", err
	}
	if err := writeSolcInput(instrumentedDir, instrumented); err != nil {
		return "", "", err
	}
	return originalDir, instrumentedDir, nil
}

func writeSolcInput(dir string, input types.SolcInput) error {
	for path, src := range input.Sources {
		sanitized := sanitizePath(path)
		filePath := filepath.Join(dir, sanitized)

		// Path-based containment check: sanitizePath already strips ".."
		// components, but a defense-in-depth check costs nothing here.
		if !strings.HasPrefix(filePath, filepath.Clean(dir)+string(filepath.Separator)) {
			return fmt.Errorf("compiler: path traversal detected in source path %q", path)
		}

		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filePath, []byte(src.Content), 0o644); err != nil {
			return err
		}
	}

	settings, err := json.MarshalIndent(input.Settings, "", "  ")
	if err != nil {
		return fmt.Errorf("compiler: marshal settings: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "settings.json"), settings, 0o644)
}
