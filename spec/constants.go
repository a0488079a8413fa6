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

package spec

import "github.com/ethereum/go-ethereum/common"

// ProbePrecompileAddress is the reserved address instrumented source calls
// to report BeforeStep/VariableUpdate hooks. It is never present on real
// mainnet, so the hook-snapshot inspector can intercept calls to it
// unambiguously.
var ProbePrecompileAddress = common.HexToAddress("0x0000000000000000000000000000000000023333")
