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

package analysis

import (
	"github.com/edb-rs/edb/types"
)

// processFunction walks one FunctionDefinition, minting a FuncEntry step
// plus one step per statement in its body, and records the visibility/
// mutability relaxation actions needed to make the function callable from
// outside the contract for state-variable pre-evaluation.
func (a *Analyzer) processFunction(fn node, fileID types.FileID, ucid types.UCID, sa *types.SourceAnalysis, source string) {
	body := fn.child("body")
	if body == nil {
		// Abstract, interface, or unimplemented function: nothing to step
		// through, and no visibility/mutability relaxation action is
		// recorded for it either.
		return
	}

	ufid := a.ids.UFID.Next()
	entryRange := fn.src(fileID)
	funcScope := a.newScope(intField(fn, "id"), entryRange, -1)

	for _, p := range fn.child("parameters").nodes("parameters") {
		a.declareParam(p, fileID, funcScope, ufid, ucid, true, false)
	}
	for _, r := range fn.child("returnParameters").nodes("parameters") {
		if r.str("name") == "" {
			continue // unnamed return value: nothing to reference by name
		}
		a.declareParam(r, fileID, funcScope, ufid, ucid, false, true)
	}

	usid := a.ids.USID.Next()
	entryStep := types.Step{
		USID:       usid,
		Kind:       types.StepFuncEntry,
		Range:      entryRange,
		Function:   ufid,
		Accessible: append([]types.UVID(nil), a.scopes[funcScope].Declared...),
	}
	a.addStep(sa, fileID, entryStep)

	// The hook fires on entry into the body, not at the "function" keyword:
	// inserting a statement before the function's own declaration would not
	// even be valid Solidity. bodyRange.Start is the body's opening brace,
	// so the hook is placed just past it.
	bodyRange := body.src(fileID)
	beforeOffset := entryRange.Start
	if !bodyRange.IsNonExistent() {
		beforeOffset = bodyRange.Start + 1
	}

	var afterOffsets []int
	w := &walker{a: a, fileID: fileID, ufid: ufid, sa: sa, source: source}
	w.walkBlock(body, funcScope, &afterOffsets)
	afterOffsets = append(afterOffsets, entryRange.End())
	sa.HookSites[usid] = types.StepHookLocations{
		BeforeStep: beforeOffset,
		AfterStep:  dedupInts(afterOffsets),
	}

	header := headerRange(fn, fileID, body)

	visibility := fn.str("visibility")
	if visibility == "private" || visibility == "internal" {
		sa.PrivateFunctions = append(sa.PrivateFunctions, ufid)
		if act, ok := keywordRemoveAction(source, header, visibility); ok {
			sa.Actions = append(sa.Actions, act)
			sa.Actions = append(sa.Actions, types.SourceAction{
				Kind:   types.ActionInsert,
				Offset: act.Range.Start,
				Text:   "public ",
			})
		}
	}

	mutability := fn.str("stateMutability")
	if mutability == "pure" || mutability == "view" {
		sa.PureOrViewFunctions = append(sa.PureOrViewFunctions, ufid)
		if act, ok := keywordRemoveAction(source, header, mutability); ok {
			sa.Actions = append(sa.Actions, act)
		}
	}
}

// headerRange bounds the search space for visibility/mutability keywords to
// the function's signature: from its own start up to the body's start,
// which excludes the body from the keyword search so e.g. a local variable
// named "view" can never be mistaken for the mutability keyword.
func headerRange(fn node, fileID types.FileID, body node) types.SourceRange {
	full := fn.src(fileID)
	bodyRange := body.src(fileID)
	if bodyRange.IsNonExistent() || bodyRange.Start <= full.Start {
		return full
	}
	return types.SourceRange{FileID: fileID, Start: full.Start, Length: bodyRange.Start - full.Start}
}

func (a *Analyzer) declareParam(p node, fileID types.FileID, scope int, ufid types.UFID, ucid types.UCID, isParam, isReturn bool) {
	uvid := a.ids.UVID.Next()
	a.variables = append(a.variables, types.Variable{
		UVID:     uvid,
		Name:     p.str("name"),
		Type:     typeString(p),
		Storage:  storageOf(p),
		IsParam:  isParam,
		IsReturn: isReturn,
		Scope:    scope,
		Function: &ufid,
		Contract: &ucid,
	})
	a.declareInScope(scope, uvid)
}

func storageOf(n node) types.StorageLocation {
	switch n.str("storageLocation") {
	case "storage":
		return types.StorageStorage
	case "memory":
		return types.StorageMemory
	case "calldata":
		return types.StorageCalldata
	default:
		return types.StorageDefault
	}
}

func intField(n node, key string) int {
	f, _ := n[key].(float64) // encoding/json decodes all JSON numbers as float64
	return int(f)
}

func dedupInts(xs []int) []int {
	seen := make(map[int]bool, len(xs))
	out := xs[:0]
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

// walker threads the per-function context (file, owning function, the
// SourceAnalysis being built, raw source text) through statement recursion
// without repeating those parameters on every call.
type walker struct {
	a      *Analyzer
	fileID types.FileID
	ufid   types.UFID
	sa     *types.SourceAnalysis
	source string
}

// walkBlock walks every statement of a Block node in order, threading
// declared so each step's Accessible/Declared reflect what's in scope
// at that point. afterOffsets collects every `return`'s end offset so the
// enclosing FuncEntry's hook sites include each early exit.
func (w *walker) walkBlock(block node, scope int, afterOffsets *[]int) {
	declared := (&types.AnalysisResult{Scopes: w.a.scopes}).AccessibleAt(scope)
	for _, stmt := range block.nodes("statements") {
		w.walkStatement(stmt, scope, &declared, afterOffsets)
	}
}

func (w *walker) walkStatement(stmt node, scope int, declared *[]types.UVID, afterOffsets *[]int) {
	switch stmt.nodeType() {
	case "VariableDeclarationStatement":
		var newVars []types.UVID
		for _, decl := range stmt.nodes("declarations") {
			if decl == nil {
				continue // a `(uint a, , uint c) = f()` skipped slot
			}
			uvid := w.a.ids.UVID.Next()
			w.a.variables = append(w.a.variables, types.Variable{
				UVID:     uvid,
				Name:     decl.str("name"),
				Type:     typeString(decl),
				Storage:  storageOf(decl),
				Scope:    scope,
				Function: &w.ufid,
			})
			w.a.declareInScope(scope, uvid)
			*declared = append(*declared, uvid)
			newVars = append(newVars, uvid)
		}
		w.emitStep(stmt, types.StepStmt, scope, newVars, nil, *declared)

	case "ExpressionStatement":
		updated := assignmentTargets(stmt)
		w.emitStep(stmt, types.StepStmt, scope, nil, updated, *declared)

	case "Return":
		w.emitStep(stmt, types.StepStmt, scope, nil, nil, *declared)
		rng := stmt.src(w.fileID)
		*afterOffsets = append(*afterOffsets, rng.End())

	case "IfStatement":
		w.emitStep(stmt, types.StepIf, scope, nil, nil, *declared)
		if body := stmt.child("trueBody"); body != nil {
			w.walkBranch(body, scope, afterOffsets)
		}
		if body := stmt.child("falseBody"); body != nil {
			w.walkBranch(body, scope, afterOffsets)
		}

	case "ForStatement":
		w.emitStep(stmt, types.StepLoop, scope, nil, nil, *declared)
		if body := stmt.child("body"); body != nil {
			w.walkBranch(body, scope, afterOffsets)
		}

	case "WhileStatement", "DoWhileStatement":
		w.emitStep(stmt, types.StepLoop, scope, nil, nil, *declared)
		if body := stmt.child("body"); body != nil {
			w.walkBranch(body, scope, afterOffsets)
		}

	case "TryStatement":
		w.emitStep(stmt, types.StepTry, scope, nil, nil, *declared)
		for _, clause := range stmt.nodes("clauses") {
			if body := clause.child("block"); body != nil {
				w.walkBranch(body, scope, afterOffsets)
			}
		}

	case "Block":
		w.walkBlock(stmt, scope, afterOffsets)

	default:
		// Any other statement kind (Emit, Revert, Break, Continue, Throw,
		// InlineAssembly, ...) still gets a plain Stmt step so it can be a
		// breakpoint target.
		w.emitStep(stmt, types.StepStmt, scope, nil, nil, *declared)
	}
}

// walkBranch walks a nested statement that may or may not itself be a
// Block, opening a child scope either way so variables declared inside an
// unbraced `if (...) uint x = 1;`-style single statement don't leak out.
func (w *walker) walkBranch(stmt node, parentScope int, afterOffsets *[]int) {
	child := w.a.newScope(intField(stmt, "id"), stmt.src(w.fileID), parentScope)
	if stmt.nodeType() == "Block" {
		w.walkBlock(stmt, child, afterOffsets)
		return
	}
	declared := (&types.AnalysisResult{Scopes: w.a.scopes}).AccessibleAt(child)
	w.walkStatement(stmt, child, &declared, afterOffsets)
}

func (w *walker) emitStep(n node, kind types.StepKind, scope int, declaredHere, updated, accessible []types.UVID) types.USID {
	rng := n.src(w.fileID)
	usid := w.a.ids.USID.Next()
	step := types.Step{
		USID:       usid,
		Kind:       kind,
		Range:      rng,
		Function:   w.ufid,
		Declared:   declaredHere,
		Updated:    updated,
		Accessible: accessible,
		CallCount:  countFunctionCalls(n),
	}
	w.a.addStep(w.sa, w.fileID, step)
	w.sa.HookSites[usid] = types.StepHookLocations{
		BeforeStep: rng.Start,
		AfterStep:  []int{rng.End()},
	}
	return usid
}

// countFunctionCalls counts FunctionCall nodes anywhere within n's AST
// subtree. walk has no statement boundary: for a simple statement that is
// just its own expressions, but for an If/Loop/Try step the count also
// includes every call inside the statements nested in its bodies.
func countFunctionCalls(n node) int {
	count := 0
	walk(n, func(cur node) {
		if cur.nodeType() == "FunctionCall" {
			count++
		}
	})
	return count
}

// assignmentTargets always returns nil: resolving an Assignment's
// leftHandSide Identifier to a UVID requires the full variable arena, which
// isn't complete until every function in the contract has been walked.
// Step.Updated is therefore always empty, and the instrument package, which
// only emits variable-update calls for Step.Updated, emits none.
func assignmentTargets(stmt node) []types.UVID {
	return nil
}
