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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceRangeMergeOverlapping(t *testing.T) {
	a := SourceRange{FileID: 1, Start: 10, Length: 10} // [10,20)
	b := SourceRange{FileID: 1, Start: 15, Length: 10} // [15,25)

	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, 10, merged.Start)
	assert.Equal(t, 25, merged.End())
}

func TestSourceRangeMergeAdjacent(t *testing.T) {
	a := SourceRange{FileID: 1, Start: 0, Length: 5}  // [0,5)
	b := SourceRange{FileID: 1, Start: 5, Length: 5}  // [5,10)

	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, 0, merged.Start)
	assert.Equal(t, 10, merged.End())
}

func TestSourceRangeMergeNonAdjacentFails(t *testing.T) {
	a := SourceRange{FileID: 1, Start: 0, Length: 5}   // [0,5)
	b := SourceRange{FileID: 1, Start: 10, Length: 5}  // [10,15)

	_, err := a.Merge(b)
	require.Error(t, err)
}

func TestSourceRangeMergeDifferentFilesFails(t *testing.T) {
	a := SourceRange{FileID: 1, Start: 0, Length: 5}
	b := SourceRange{FileID: 2, Start: 5, Length: 5}

	_, err := a.Merge(b)
	require.Error(t, err)
}

func TestNonExistentSourceRange(t *testing.T) {
	r := NonExistentSourceRange()
	assert.True(t, r.IsNonExistent())
	assert.False(t, (SourceRange{FileID: 0}).IsNonExistent())
}

func TestExecutionFrameIdOrderingAndDisplay(t *testing.T) {
	a := ExecutionFrameId{TraceEntryID: 1, ReEntryCount: 0}
	b := ExecutionFrameId{TraceEntryID: 1, ReEntryCount: 1}
	c := ExecutionFrameId{TraceEntryID: 2, ReEntryCount: 0}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.Equal(t, "1.0", a.String())

	incremented := a.IncrementReEntry()
	assert.Equal(t, b, incremented)
	// IncrementReEntry must not mutate the receiver.
	assert.Equal(t, 0, a.ReEntryCount)
}
