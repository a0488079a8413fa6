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

import "fmt"

// SourceRange is a half-open byte range [Start, Start+Length) within a
// source file. Semicolons belong to the statement they terminate.
type SourceRange struct {
	FileID FileID
	Start  int
	Length int
}

// NonExistentSourceRange returns the sentinel used when a range has no
// meaningful location (e.g. a synthesized AST node).
func NonExistentSourceRange() SourceRange {
	return SourceRange{FileID: MaxFileID}
}

// IsNonExistent reports whether r is the sentinel range.
func (r SourceRange) IsNonExistent() bool {
	return r.FileID == MaxFileID
}

// End returns the exclusive end offset of the range.
func (r SourceRange) End() int {
	return r.Start + r.Length
}

// Overlaps reports whether r and other share at least one byte.
func (r SourceRange) Overlaps(other SourceRange) bool {
	if r.FileID != other.FileID {
		return false
	}
	return r.Start < other.End() && other.Start < r.End()
}

// Adjacent reports whether r and other touch end-to-end without gap.
func (r SourceRange) Adjacent(other SourceRange) bool {
	if r.FileID != other.FileID {
		return false
	}
	return r.End() == other.Start || other.End() == r.Start
}

// Merge returns the minimal SourceRange enclosing both r and other.
// The two ranges must be in the same file and either adjacent or
// overlapping; otherwise merge is undefined and Merge returns an error.
func (r SourceRange) Merge(other SourceRange) (SourceRange, error) {
	if r.FileID != other.FileID {
		return SourceRange{}, fmt.Errorf("cannot merge ranges from different files (%d vs %d)", r.FileID, other.FileID)
	}
	if !r.Overlaps(other) && !r.Adjacent(other) {
		return SourceRange{}, fmt.Errorf("cannot merge non-adjacent, non-overlapping ranges [%d,%d) and [%d,%d)", r.Start, r.End(), other.Start, other.End())
	}
	start := min(r.Start, other.Start)
	end := max(r.End(), other.End())
	return SourceRange{FileID: r.FileID, Start: start, Length: end - start}, nil
}
