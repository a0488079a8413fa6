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

// HookKind identifies what an instrumentation site represents.
type HookKind int

const (
	// HookBeforeStep is the primary breakpoint anchor: the debugger stops
	// here, just before the step executes.
	HookBeforeStep HookKind = iota
	// HookVariableInScope marks a variable becoming accessible.
	HookVariableInScope
	// HookVariableOutOfScope marks a variable leaving scope.
	HookVariableOutOfScope
	// HookVariableUpdate records a post-update value.
	HookVariableUpdate
)

// Hook is a single instrumentation site payload, as decoded from a probe
// precompile call during hook-snapshot capture.
type Hook struct {
	Kind HookKind
	USID USID // valid for HookBeforeStep
	UVID UVID // valid for the VariableXxx kinds
}
