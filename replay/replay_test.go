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

package replay

import (
	"testing"

	"github.com/edb-rs/edb/spec"
	"github.com/stretchr/testify/require"
)

func TestCalcBlobBaseFeeZeroExcess(t *testing.T) {
	fee := calcBlobBaseFee(0, spec.Cancun)
	require.Equal(t, int64(1), fee.Int64())
}

func TestCalcBlobBaseFeeMonotonic(t *testing.T) {
	low := calcBlobBaseFee(1_000_000, spec.Cancun)
	high := calcBlobBaseFee(5_000_000, spec.Cancun)
	require.True(t, high.Cmp(low) > 0, "blob base fee must increase with excess blob gas")
}

func TestCalcBlobBaseFeeHardforkFractionDiffers(t *testing.T) {
	excess := uint64(10_000_000)
	cancun := calcBlobBaseFee(excess, spec.Cancun)
	prague := calcBlobBaseFee(excess, spec.Prague)
	require.NotEqual(t, cancun.String(), prague.String(), "Prague's larger update fraction must change the result")
	require.True(t, cancun.Cmp(prague) > 0, "a larger update fraction dampens the fee increase")
}
