// Licensed to the Basalt contributors under one or more contributor
// license agreements. See the NOTICE file distributed with this work
// for additional information regarding copyright ownership. The
// contributors license this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except in
// compliance with the License. You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package basalt_test

import (
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basaltdb/basalt-go"
)

func TestNumericLiteralCompare(t *testing.T) {
	small := basalt.NewLiteral(int32(10)).(basalt.Int32Literal)
	big := basalt.NewLiteral(int32(1000)).(basalt.Int32Literal)

	assert.False(t, small.Equals(big))
	assert.True(t, small.Equals(basalt.NewLiteral(int32(10))))

	cmp := small.Comparator()
	assert.Equal(t, -1, cmp(small.Value(), big.Value()))
	assert.Equal(t, 1, cmp(big.Value(), small.Value()))
	assert.Equal(t, basalt.TypeInt, small.Type().Type)
}

func TestIntConversion(t *testing.T) {
	lit := basalt.NewLiteral(int32(34))

	t.Run("to bigint", func(t *testing.T) {
		long, err := lit.To(basalt.TypeOf(basalt.TypeBigInt))
		require.NoError(t, err)
		assert.IsType(t, basalt.Int64Literal(0), long)
		assert.EqualValues(t, 34, long.(basalt.Int64Literal).Value())
	})

	t.Run("to decimal", func(t *testing.T) {
		dec, err := lit.To(basalt.DecimalTypeOf(9, 2))
		require.NoError(t, err)
		require.IsType(t, basalt.DecimalLiteral{}, dec)
		assert.Equal(t, 2, dec.(basalt.DecimalLiteral).Value().Scale)
		assert.Equal(t, "34.00", dec.String())
	})

	t.Run("to string fails", func(t *testing.T) {
		_, err := lit.To(basalt.TypeOf(basalt.TypeVarchar))
		assert.ErrorIs(t, err, basalt.ErrBadCast)
	})
}

func TestInt64BoundedConversion(t *testing.T) {
	fits, err := basalt.NewLiteral(int64(42)).To(basalt.TypeOf(basalt.TypeInt))
	require.NoError(t, err)
	assert.EqualValues(t, 42, fits.(basalt.Int32Literal).Value())

	_, err = basalt.NewLiteral(int64(math.MaxInt32) + 1).To(basalt.TypeOf(basalt.TypeInt))
	assert.ErrorIs(t, err, basalt.ErrBadCast)
}

func TestBoolConversion(t *testing.T) {
	yes, err := basalt.NewLiteral(true).To(basalt.TypeOf(basalt.TypeInt))
	require.NoError(t, err)
	assert.EqualValues(t, 1, yes.(basalt.Int32Literal).Value())

	no, err := basalt.NewLiteral(false).To(basalt.TypeOf(basalt.TypeInt))
	require.NoError(t, err)
	assert.EqualValues(t, 0, no.(basalt.Int32Literal).Value())
}

func TestStringLiteral(t *testing.T) {
	lit := basalt.NewLiteral("bucket")

	asChar, err := lit.To(basalt.TypeOf(basalt.TypeChar))
	require.NoError(t, err)
	assert.Equal(t, "bucket", asChar.String())

	_, err = lit.To(basalt.TypeOf(basalt.TypeInt))
	assert.ErrorIs(t, err, basalt.ErrBadCast)
}

func TestDateTimeToDateConversion(t *testing.T) {
	midnight := basalt.DateTimeFromTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	lit := basalt.NewLiteral(midnight)

	asDate, err := lit.To(basalt.TypeOf(basalt.TypeDate))
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", asDate.String())

	withTime := basalt.DateTimeFromTime(time.Date(2020, 1, 1, 1, 0, 0, 0, time.UTC))
	_, err = basalt.NewLiteral(withTime).To(basalt.TypeOf(basalt.TypeDate))
	assert.ErrorIs(t, err, basalt.ErrBadCast)
}

func TestDateToDateTimeConversion(t *testing.T) {
	d := basalt.DateFromTime(time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC))

	dt, err := basalt.NewLiteral(d).To(basalt.TypeOf(basalt.TypeDateTime))
	require.NoError(t, err)
	assert.Equal(t, "2023-06-15 00:00:00", dt.String())
}

func TestDecimalComparatorRescales(t *testing.T) {
	a := basalt.Decimal{Val: decimal128.FromI64(1250), Scale: 2} // 12.50
	b := basalt.Decimal{Val: decimal128.FromI64(125), Scale: 1}  // 12.5

	cmp := basalt.DecimalLiteral(a).Comparator()
	assert.Equal(t, 0, cmp(a, b))

	c := basalt.Decimal{Val: decimal128.FromI64(1251), Scale: 2}
	assert.Equal(t, -1, cmp(a, c))
	assert.Equal(t, 1, cmp(c, a))
}

func TestDecimalRescaleConversion(t *testing.T) {
	d := basalt.DecimalLiteral(basalt.Decimal{Val: decimal128.FromI64(1250), Scale: 2})

	widened, err := d.To(basalt.DecimalTypeOf(18, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, widened.(basalt.DecimalLiteral).Value().Scale)
	assert.Equal(t, 0, basalt.DecimalLiteral{}.Comparator()(d.Value(), widened.(basalt.DecimalLiteral).Value()))

	// 12.55 cannot drop to scale 1 without losing the trailing digit.
	lossy := basalt.DecimalLiteral(basalt.Decimal{Val: decimal128.FromI64(1255), Scale: 2})
	_, err = lossy.To(basalt.DecimalTypeOf(18, 1))
	assert.ErrorIs(t, err, basalt.ErrBadCast)
}

func TestDecimalFitsPrecision(t *testing.T) {
	d := basalt.DecimalLiteral(basalt.Decimal{Val: decimal128.FromI64(999_99), Scale: 2})

	assert.True(t, d.FitsPrecision(5))
	assert.True(t, d.FitsPrecision(6))
	assert.False(t, d.FitsPrecision(4))
	assert.False(t, d.FitsPrecision(0))
	assert.False(t, d.FitsPrecision(39))
}

func TestCompareLiteralsAcrossTypes(t *testing.T) {
	c, err := basalt.CompareLiterals(basalt.NewLiteral(int32(7)), basalt.NewLiteral(int32(9)))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	d := basalt.DateFromTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	midnight := basalt.DateTimeFromTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	c, err = basalt.CompareLiterals(basalt.NewLiteral(d), basalt.NewLiteral(midnight))
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	_, err = basalt.CompareLiterals(basalt.NewLiteral("a"), basalt.NewLiteral(int32(1)))
	assert.ErrorIs(t, err, basalt.ErrBadCast)
}

func TestLiteralMarshalBinary(t *testing.T) {
	raw, err := basalt.NewLiteral(int32(1)).MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0}, raw)

	raw, err = basalt.NewLiteral("key").MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte("key"), raw)
}
