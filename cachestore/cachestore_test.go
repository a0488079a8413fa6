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

package cachestore

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, bad := range []string{"../etc/passwd", "/etc/passwd", "a/b", `a\b`, "", "  ", "a b"} {
		_, err := SanitizeKey(bad)
		require.Error(t, err, "key %q should be rejected", bad)
	}
	clean, err := SanitizeKey("0xDEADBEEF.json")
	require.NoError(t, err)
	require.Equal(t, "0xDEADBEEF.json", clean)
}

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	defer store.Close()

	type payload struct {
		Source string `json:"source"`
	}
	require.NoError(t, store.Put("0xabc", payload{Source: "verified"}, 0))

	var got payload
	ok, err := store.Get("0xabc", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "verified", got.Source)

	ok, err = store.Get("0xmissing", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetExpiresAfterTTL(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("0xabc", "value", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	ok, err := store.Get("0xabc", &got)
	require.NoError(t, err)
	require.False(t, ok, "entry should be expired")
}
