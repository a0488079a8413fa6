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

// Package analysis walks solc's AST JSON output to produce the debugger's
// step/scope/variable model and the source-text edits needed to relax
// visibility and mutability ahead of instrumentation.
package analysis

import (
	"encoding/json"
	"regexp"

	"github.com/edb-rs/edb/idgen"
	"github.com/edb-rs/edb/types"
)

// Analyzer accumulates the scope/variable arena across every file of a
// single compilation unit; one Analyzer should be built per artifact so
// ids stay dense and cross-file references (e.g. inherited state vars)
// resolve against a single arena.
type Analyzer struct {
	ids *idgen.IDs

	scopes    []types.Scope
	variables []types.Variable

	files      map[types.FileID]*types.SourceAnalysis
	usidToStep map[types.USID]struct {
		File types.FileID
		Step int
	}
}

// New returns an Analyzer that mints ids from ids.
func New(ids *idgen.IDs) *Analyzer {
	return &Analyzer{
		ids:   ids,
		files: make(map[types.FileID]*types.SourceAnalysis),
		usidToStep: make(map[types.USID]struct {
			File types.FileID
			Step int
		}),
	}
}

// AnalyzeFile walks one file's AST and records its SourceAnalysis. source
// is the file's raw text, needed to locate visibility/mutability keywords
// that solc's AST does not carve out as their own nodes.
func (a *Analyzer) AnalyzeFile(fileID types.FileID, path string, source string, ast json.RawMessage) (*types.SourceAnalysis, error) {
	root, err := parseAST(ast)
	if err != nil {
		return nil, err
	}

	sa := &types.SourceAnalysis{
		Path:      path,
		HookSites: make(map[types.USID]types.StepHookLocations),
	}

	for _, top := range root.nodes("nodes") {
		if top.nodeType() != "ContractDefinition" {
			continue
		}
		a.processContract(top, fileID, sa, source)
	}

	a.files[fileID] = sa
	return sa, nil
}

// Result assembles the accumulated per-file analyses into the whole-artifact
// AnalysisResult.
func (a *Analyzer) Result() types.AnalysisResult {
	return types.AnalysisResult{
		Scopes:     a.scopes,
		Variables:  a.variables,
		Files:      a.files,
		UsidToStep: a.usidToStep,
	}
}

func (a *Analyzer) processContract(contract node, fileID types.FileID, sa *types.SourceAnalysis, source string) {
	ucid := a.ids.UCID.Next()

	for _, member := range contract.nodes("nodes") {
		switch member.nodeType() {
		case "VariableDeclaration":
			if !member.boolField("stateVariable") {
				continue
			}
			a.processStateVariable(member, fileID, ucid, sa, source)
		case "FunctionDefinition":
			a.processFunction(member, fileID, ucid, sa, source)
		}
	}
}

func (a *Analyzer) processStateVariable(decl node, fileID types.FileID, ucid types.UCID, sa *types.SourceAnalysis, source string) {
	uvid := a.ids.UVID.Next()
	a.variables = append(a.variables, types.Variable{
		UVID:     uvid,
		Name:     decl.str("name"),
		Type:     typeString(decl),
		Storage:  types.StorageStorage,
		IsState:  true,
		Scope:    -1,
		Contract: &ucid,
	})

	visibility := decl.str("visibility")
	if visibility == "private" || visibility == "internal" {
		sa.PrivateStateVars = append(sa.PrivateStateVars, uvid)
		if act, ok := keywordRemoveAction(source, decl.src(fileID), visibility); ok {
			sa.Actions = append(sa.Actions, act)
			sa.Actions = append(sa.Actions, types.SourceAction{
				Kind:   types.ActionInsert,
				Offset: act.Range.Start,
				Text:   "public ",
			})
		}
	}
}

func typeString(n node) string {
	if td := n.child("typeDescriptions"); td != nil {
		return td.str("typeString")
	}
	return ""
}

// keywordRemoveAction searches header (a node's own source text, bounded so
// it doesn't reach into a nested function body) for a standalone occurrence
// of keyword and returns the RemoveAction that deletes it, plus the trailing
// whitespace so removal doesn't leave a double space behind.
func keywordRemoveAction(source string, header types.SourceRange, keyword string) (types.SourceAction, bool) {
	if header.IsNonExistent() || header.Start < 0 || header.End() > len(source) {
		return types.SourceAction{}, false
	}
	text := source[header.Start:header.End()]
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b\s*`)
	loc := re.FindStringIndex(text)
	if loc == nil {
		return types.SourceAction{}, false
	}
	return types.SourceAction{
		Kind: types.ActionRemove,
		Range: types.SourceRange{
			FileID: header.FileID,
			Start:  header.Start + loc[0],
			Length: loc[1] - loc[0],
		},
	}, true
}

// newScope allocates a scope in the arena and links it under parent (-1 for
// a root scope), returning its arena index.
func (a *Analyzer) newScope(astID int, rng types.SourceRange, parent int) int {
	id := len(a.scopes)
	a.scopes = append(a.scopes, types.Scope{
		ID:     id,
		ASTID:  astID,
		Range:  rng,
		Parent: parent,
	})
	if parent != -1 {
		a.scopes[parent].Children = append(a.scopes[parent].Children, id)
	}
	return id
}

func (a *Analyzer) declareInScope(scope int, uvid types.UVID) {
	a.scopes[scope].Declared = append(a.scopes[scope].Declared, uvid)
}

func (a *Analyzer) addStep(sa *types.SourceAnalysis, fileID types.FileID, step types.Step) types.USID {
	idx := len(sa.Steps)
	sa.Steps = append(sa.Steps, step)
	a.usidToStep[step.USID] = struct {
		File types.FileID
		Step int
	}{File: fileID, Step: idx}
	return step.USID
}
