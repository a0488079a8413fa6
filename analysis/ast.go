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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/edb-rs/edb/types"
)

// node is a raw solc AST node, kept as a generic map since the AST schema
// spans dozens of node types and this package only needs a handful of
// fields from each.
type node map[string]any

func parseAST(raw json.RawMessage) (node, error) {
	var n node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("analysis: parse AST: %w", err)
	}
	return n, nil
}

func (n node) nodeType() string {
	s, _ := n["nodeType"].(string)
	return s
}

func (n node) str(key string) string {
	s, _ := n[key].(string)
	return s
}

func (n node) boolField(key string) bool {
	b, _ := n[key].(bool)
	return b
}

// nodes returns n[key] as a slice of child nodes, tolerating absence.
func (n node) nodes(key string) []node {
	raw, ok := n[key]
	if !ok || raw == nil {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]node, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, node(m))
		}
	}
	return out
}

// child returns n[key] as a single child node, or nil if absent/not an object.
func (n node) child(key string) node {
	raw, ok := n[key]
	if !ok || raw == nil {
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return node(m)
}

// src parses solc's "start:length:fileIndex" triple into a SourceRange,
// using fileID (our own FileID, not solc's source-unit index) for the
// file component since analysis always processes one file at a time.
func (n node) src(fileID types.FileID) types.SourceRange {
	raw := n.str("src")
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return types.NonExistentSourceRange()
	}
	start, err1 := strconv.Atoi(parts[0])
	length, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return types.NonExistentSourceRange()
	}
	return types.SourceRange{FileID: fileID, Start: start, Length: length}
}

// walk visits n and every descendant node reachable through any
// map/array-of-object field, depth-first, calling visit on each. This
// covers the AST generically without enumerating every node type's
// specific child field names.
func walk(n node, visit func(node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, v := range n {
		walkValue(v, visit)
	}
}

func walkValue(v any, visit func(node)) {
	switch val := v.(type) {
	case map[string]any:
		walk(node(val), visit)
	case []any:
		for _, item := range val {
			walkValue(item, visit)
		}
	}
}
