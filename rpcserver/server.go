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
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/edb-rs/edb/engine"
)

// Server is a single debugging session's JSON-RPC 2.0 HTTP server: one
// POST / endpoint dispatching to the edb namespace, one GET /health, and
// the Created -> Built -> Serving -> Shutdown lifecycle spec.md §4.14
// requires. Handlers are pure functions over the shared *engine.Context;
// nothing here mutates it after Finalize, so no locking guards reads.
type Server struct {
	log     *logrus.Entry
	engine  *engine.Context
	rpcSrv  *rpc.Server
	http    *http.Server
	session *session
}

// New builds a Server over an already-Finalize'd engine context. Finalize
// must have returned nil before New is called: the session starts life
// already in the Built state, one transition past Created.
func New(log *logrus.Entry, ctx *engine.Context, addr string) (*Server, error) {
	s := &Server{log: log, engine: ctx, session: newSession()}
	if err := s.session.transition(StateCreated, StateBuilt); err != nil {
		return nil, err
	}

	s.rpcSrv = rpc.NewServer()
	if err := s.rpcSrv.RegisterName("edb", NewEdbAPI(ctx)); err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/", s.rpcSrv).Methods(http.MethodPost)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s, nil
}

// Serve binds the listener and blocks until Shutdown is called or the
// listener errors. Exit codes 0/1/2 (spec.md §6) are the caller's concern —
// Serve only distinguishes a clean Shutdown (nil) from a bind failure.
func (s *Server) Serve() error {
	if err := s.session.transition(StateBuilt, StateServing); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.log.WithField("addr", ln.Addr().String()).Info("rpcserver: listening")
	err = s.http.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.session.transition(StateServing, StateShutdown); err != nil {
		return err
	}
	return s.http.Shutdown(ctx)
}

// State reports the session's current lifecycle state.
func (s *Server) State() SessionState { return s.session.current() }

type healthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", State: s.session.current().String()})
}
