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

import "fmt"

// JSON-RPC 2.0 standard error codes, plus the EDB-specific range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeSnapshotOutOfBounds = -33001
	CodeInvalidAddress      = -33002
	CodeSourceNotFound      = -33003
	CodeBreakpointNotFound  = -33004
	CodeEvaluationError     = -33005
)

// rpcError satisfies go-ethereum rpc.Error (Error() string; ErrorCode() int),
// the interface the rpc package inspects to put a numeric code on the wire
// instead of always falling back to -32603.
type rpcError struct {
	code    int
	message string
}

func newRPCError(code int, format string, args ...any) *rpcError {
	return &rpcError{code: code, message: fmt.Sprintf(format, args...)}
}

func (e *rpcError) Error() string  { return e.message }
func (e *rpcError) ErrorCode() int { return e.code }
