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

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/edb-rs/edb/cachestore"
	"github.com/edb-rs/edb/keypool"
)

func newTestOracle(t *testing.T, handler http.HandlerFunc) (*EtherscanOracle, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	store, err := cachestore.Open(t.TempDir(), logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(); srv.Close() })

	oracle := NewEtherscanOracle(keypool.New([]string{"testkey"}), store, 1, logrus.NewEntry(logrus.New()))
	oracle.baseURL = srv.URL
	return oracle, srv
}

func TestLookupVerifiedContractIsCached(t *testing.T) {
	calls := 0
	oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":"1","message":"OK","result":[{"SourceCode":"contract C {}","ContractName":"C","CompilerVersion":"v0.8.19"}]}`))
	})

	addr := common.HexToAddress("0x1")
	artifact, verified, err := oracle.Lookup(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, verified)
	require.Equal(t, "C", artifact.Metadata.ContractName)

	// Second lookup must be served from cache, not hit the network again.
	_, verified2, err := oracle.Lookup(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, verified2)
	require.Equal(t, 1, calls)
}

func TestLookupUnverifiedIsNegativelyCached(t *testing.T) {
	calls := 0
	oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"status":"0","message":"NOTOK","result":[]}`))
	})

	addr := common.HexToAddress("0x2")
	artifact, verified, err := oracle.Lookup(context.Background(), addr)
	require.NoError(t, err)
	require.False(t, verified)
	require.Nil(t, artifact)

	_, verified2, err := oracle.Lookup(context.Background(), addr)
	require.NoError(t, err)
	require.False(t, verified2)
	require.Equal(t, 1, calls, "negative result must not be re-fetched")
}

func TestLookupVyperTreatedAsNoSource(t *testing.T) {
	oracle, _ := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","message":"OK","result":[{"SourceCode":"# vyper","ContractName":"V","CompilerVersion":"vyper:0.3.7"}]}`))
	})

	_, verified, err := oracle.Lookup(context.Background(), common.HexToAddress("0x3"))
	require.NoError(t, err)
	require.False(t, verified)
}
