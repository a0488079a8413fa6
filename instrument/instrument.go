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

// Package instrument rewrites a compiled artifact's sources to call out to
// the probe precompile at every debugger-visible step, and to relax the
// visibility/mutability the analyzer flagged as needing it.
package instrument

import (
	"fmt"
	"sort"

	"github.com/edb-rs/edb/types"
)

// probeAddressHex is the reserved probe precompile address; calls to
// it are intercepted by the hook-snapshot inspector and are otherwise
// no-ops from the contract's perspective.
const probeAddressHex = "0x0000000000000000000000000000000000023333"

// Instrument returns a new SolcInput whose sources are artifact's original
// sources with every analysis-driven edit applied: visibility/mutability
// relaxation, a before-step probe call at each step's before-step offset,
// and a variable-update probe call at each after-step offset for every
// variable in the step's Updated list.
func Instrument(artifact *types.Artifact, analysis *types.AnalysisResult) (types.SolcInput, error) {
	out := types.SolcInput{
		Language: artifact.Input.Language,
		Settings: artifact.Input.Settings,
		Sources:  make(map[string]types.SourceFile, len(artifact.Input.Sources)),
	}

	for fileID, sa := range analysis.Files {
		file, ok := artifact.Input.Sources[sa.Path]
		if !ok {
			return types.SolcInput{}, fmt.Errorf("instrument: source for %q not found in artifact input", sa.Path)
		}

		edits := collectEdits(sa, analysis, fileID)
		out.Sources[sa.Path] = types.SourceFile{Content: applyEdits(file.Content, edits)}
	}

	// Carry over any sources analysis never touched (e.g. interface-only
	// files with no function bodies) unmodified.
	for path, file := range artifact.Input.Sources {
		if _, done := out.Sources[path]; !done {
			out.Sources[path] = file
		}
	}

	return out, nil
}

// edit is a single textual splice: replace text[offset:end] with insert.
// offset == end is a pure insertion; insert == "" is a pure deletion.
type edit struct {
	offset int
	end    int
	insert string
}

func collectEdits(sa *types.SourceAnalysis, analysis *types.AnalysisResult, fileID types.FileID) []edit {
	var edits []edit

	for _, act := range sa.Actions {
		switch act.Kind {
		case types.ActionRemove:
			edits = append(edits, edit{offset: act.Range.Start, end: act.Range.End()})
		case types.ActionInsert:
			edits = append(edits, edit{offset: act.Offset, end: act.Offset, insert: act.Text})
		}
	}

	for _, step := range sa.Steps {
		hooks, ok := sa.HookSites[step.USID]
		if !ok {
			continue
		}
		edits = append(edits, edit{
			offset: hooks.BeforeStep,
			end:    hooks.BeforeStep,
			insert: beforeStepCall(sa.Path, step.USID),
		})

		for _, offset := range hooks.AfterStep {
			for _, uvid := range step.Updated {
				v, ok := analysis.Variable(uvid)
				if !ok {
					continue
				}
				edits = append(edits, edit{offset: offset, end: offset, insert: variableUpdateCall(uvid, v.Name)})
			}
		}
	}

	return edits
}

func beforeStepCall(path string, usid types.USID) string {
	return fmt.Sprintf("address(%s).call(abi.encode(%q, %d));\n", probeAddressHex, path, usid)
}

// variableUpdateCall encodes the post-assignment value of expr (the
// variable's own name, since it is in scope at the after-step offset where
// this call is inserted) alongside its uvid so the hook-snapshot inspector
// can record the update without re-deriving which variable changed.
func variableUpdateCall(uvid types.UVID, expr string) string {
	return fmt.Sprintf("address(%s).call(abi.encode(\"update\", %d, %s));\n", probeAddressHex, uvid, expr)
}

// applyEdits sorts edits by descending start offset and splices them into
// text back-to-front, so earlier offsets remain valid for edits not yet
// applied. Edits at the same offset are applied in the order they were
// collected (sort.SliceStable), which keeps an inserted probe call and a
// co-located visibility edit from interleaving unpredictably.
func applyEdits(text string, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].offset > edits[j].offset
	})

	for _, e := range edits {
		if e.offset < 0 || e.end > len(text) || e.offset > e.end {
			continue // out-of-range edit from a stale/synthetic range; skip rather than corrupt the source
		}
		text = text[:e.offset] + e.insert + text[e.end:]
	}
	return text
}
