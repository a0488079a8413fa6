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

package rpcserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionLegalTransitions(t *testing.T) {
	s := newSession()
	require.Equal(t, StateCreated, s.current())

	require.NoError(t, s.transition(StateCreated, StateBuilt))
	require.Equal(t, StateBuilt, s.current())

	require.NoError(t, s.transition(StateBuilt, StateServing))
	require.NoError(t, s.transition(StateServing, StateShutdown))
	require.Equal(t, StateShutdown, s.current())
}

func TestSessionRejectsOutOfOrderTransition(t *testing.T) {
	s := newSession()
	require.Error(t, s.transition(StateBuilt, StateServing))
	require.Error(t, s.transition(StateServing, StateShutdown))
	require.Equal(t, StateCreated, s.current())
}

func TestSessionRejectsDoubleTransition(t *testing.T) {
	s := newSession()
	require.NoError(t, s.transition(StateCreated, StateBuilt))
	require.Error(t, s.transition(StateCreated, StateBuilt))
}
