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

// Package compiler recompiles instrumented Solidity sources with the
// external solc binary matching the contract's original compiler version,
// and on failure dumps both source trees plus annotated diagnostics for a
// human to inspect.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/edb-rs/edb/edberr"
	"github.com/edb-rs/edb/types"
)

// Recompiler runs solc against an instrumented SolcInput.
type Recompiler struct {
	log *logrus.Entry
}

// New returns a Recompiler that logs through log.
func New(log *logrus.Entry) *Recompiler {
	return &Recompiler{log: log}
}

// CompilationFailure is returned when solc reports at least one
// error-severity diagnostic; it carries the paths the caller dumped the
// conflicting source trees and diagnostics report to.
type CompilationFailure struct {
	Address         common.Address
	OriginalDir     string
	InstrumentedDir string
	DiagnosticsPath string
	Diagnostics     []types.CompilerDiagnostic
}

func (e *CompilationFailure) Error() string {
	return fmt.Sprintf("compiler: recompilation of %s failed, see %s (original: %s, instrumented: %s)",
		e.Address, e.DiagnosticsPath, e.OriginalDir, e.InstrumentedDir)
}

// Compile runs solc matching compilerVersion against instrumented, returns
// the parsed CompilerOutput on success. On failure it dumps original and
// instrumented to a temp directory, writes compilation_errors.txt there,
// and returns a *CompilationFailure wrapping both paths plus the
// diagnostics file.
func (r *Recompiler) Compile(ctx context.Context, address common.Address, original, instrumented types.SolcInput, compilerVersion string) (*types.CompilerOutput, error) {
	bin, err := resolveSolcBinary(compilerVersion)
	if err != nil {
		return nil, edberr.Wrap(edberr.CompilationError, "compiler: %v", err)
	}

	requestBody, err := json.Marshal(instrumented)
	if err != nil {
		return nil, fmt.Errorf("compiler: marshal standard-json input: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "--standard-json")
	cmd.Stdin = bytes.NewReader(requestBody)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("compiler: invoke %s: %w (stderr: %s)", bin, err, stderr.String())
	}

	var output types.CompilerOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("compiler: parse solc output: %w", err)
	}

	if hasErrors(output.Errors) {
		return nil, r.dumpFailure(address, original, instrumented, output.Errors)
	}

	return &output, nil
}

func hasErrors(diags []types.CompilerDiagnostic) bool {
	for _, d := range diags {
		if d.Severity == "error" {
			return true
		}
	}
	return false
}

func (r *Recompiler) dumpFailure(address common.Address, original, instrumented types.SolcInput, diags []types.CompilerDiagnostic) error {
	origDir, instrDir, err := dumpSourcesForDebugging(address, original, instrumented)
	if err != nil {
		return fmt.Errorf("compiler: dump sources for %s after compile failure: %w", address, err)
	}

	report := formatDiagnostics(diags, origDir)
	diagPath := filepath.Join(filepath.Dir(origDir), "compilation_errors.txt")
	if werr := writeDiagnosticsFile(diagPath, report); werr != nil {
		r.log.WithError(werr).Warn("compiler: failed to write compilation_errors.txt")
	}

	return &CompilationFailure{
		Address:         address,
		OriginalDir:     origDir,
		InstrumentedDir: instrDir,
		DiagnosticsPath: diagPath,
		Diagnostics:     diags,
	}
}

// resolveSolcBinary prefers a version-pinned binary (as installed by
// solc-select/svm-style tooling: "solc-0.8.19" on PATH) and falls back to a
// bare "solc", letting whatever default toolchain is installed attempt the
// compile rather than failing outright when no version manager is present.
func resolveSolcBinary(compilerVersion string) (string, error) {
	version := strings.TrimPrefix(strings.TrimSpace(compilerVersion), "v")
	if version != "" {
		if short := strings.SplitN(version, "+", 2)[0]; short != "" {
			if path, err := exec.LookPath("solc-" + short); err == nil {
				return path, nil
			}
		}
	}
	path, err := exec.LookPath("solc")
	if err != nil {
		return "", fmt.Errorf("no solc binary found on PATH (wanted version %s): %w", compilerVersion, err)
	}
	return path, nil
}
