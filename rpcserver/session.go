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
	"fmt"
	"sync/atomic"
)

// SessionState is one node of the server's Created -> Built -> Serving ->
// Shutdown state machine. Only one transition is legal out of each state.
type SessionState int32

const (
	StateCreated SessionState = iota
	StateBuilt
	StateServing
	StateShutdown
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBuilt:
		return "built"
	case StateServing:
		return "serving"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// session guards the four-state lifecycle with a single atomic word: every
// transition is a compare-and-swap from the one legal predecessor state.
type session struct {
	state atomic.Int32
}

func newSession() *session {
	s := &session{}
	s.state.Store(int32(StateCreated))
	return s
}

func (s *session) current() SessionState { return SessionState(s.state.Load()) }

// transition moves from `from` to `to`, failing if the session is not
// currently in `from` — callers never observe a torn or skipped state.
func (s *session) transition(from, to SessionState) error {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("session: cannot transition %s -> %s from state %s", from, to, s.current())
	}
	return nil
}
