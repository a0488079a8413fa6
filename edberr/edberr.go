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

// Package edberr defines the error taxonomy of spec.md §7 as sentinel
// values usable with errors.Is/errors.As, plus a MultiError for
// aggregating per-address pipeline failures.
package edberr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Kind) to attach
// detail while keeping errors.Is(err, edberr.Kind) working.
var (
	// NetworkError covers RPC/explorer/HTTP failures. Retried with backoff
	// on rate-limit responses; otherwise surfaced to the caller.
	NetworkError = errors.New("network error")

	// UnverifiedContract is not a failure: the explorer reported the
	// address as unverified, so it is demoted to opcode-only.
	UnverifiedContract = errors.New("contract source not verified")

	// CompilationError means sources compiled under the original version
	// failed to compile once instrumented. The address is demoted to
	// opcode-only; the pipeline fails overall only if every address fails.
	CompilationError = errors.New("compilation error")

	// EvmExecutionError is an unexpected halt/revert during a re-execution
	// pass. Fatal for the pipeline.
	EvmExecutionError = errors.New("evm execution error")

	// AnalysisError means an AST could not be analyzed; demotes the
	// contract to opcode-only.
	AnalysisError = errors.New("analysis error")

	// InvariantViolation indicates a bug: a snapshot, trace entry, or USID
	// that invariants guarantee should exist was not found. Fatal.
	InvariantViolation = errors.New("invariant violation")

	// EvaluationError is a user-supplied expression that failed to parse
	// or evaluate. Returned to the RPC client without killing the session.
	EvaluationError = errors.New("evaluation error")
)

// Wrap attaches a sentinel kind to a lower-level error or message so
// errors.Is(result, kind) still holds.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// PerAddressFailure records one address's demotion reason, for aggregation
// into a MultiError at the point a pipeline stage gives up on it.
type PerAddressFailure struct {
	Address string
	Err     error
}

func (f PerAddressFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Address, f.Err)
}

func (f PerAddressFailure) Unwrap() error { return f.Err }

// MultiError aggregates independent per-address failures collected during
// a pipeline stage (source acquisition, instrumentation, recompilation,
// tweaking). The pipeline fails overall only when every attempted address
// is present here with no surviving opcode-only fallback.
type MultiError struct {
	Failures []PerAddressFailure
}

func (m *MultiError) Add(address string, err error) {
	m.Failures = append(m.Failures, PerAddressFailure{Address: address, Err: err})
}

func (m *MultiError) HasAny() bool { return len(m.Failures) > 0 }

func (m *MultiError) Error() string {
	errs := make([]error, len(m.Failures))
	for i, f := range m.Failures {
		errs[i] = f
	}
	return errors.Join(errs...).Error()
}

// Join merges m into a single error via errors.Join, or returns nil if m
// has no failures.
func (m *MultiError) Join() error {
	if !m.HasAny() {
		return nil
	}
	errs := make([]error, len(m.Failures))
	for i, f := range m.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
