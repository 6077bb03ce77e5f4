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

package basalt

import (
	"cmp"
	"encoding"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/cockroachdb/errors"
)

// LiteralValue is the closed set of Go types that can back a literal.
type LiteralValue interface {
	bool | int32 | int64 | string | Date | DateTime | Decimal
}

// Comparator is a comparison function for a specific literal value type:
// returns 0 if v1 == v2, <0 if v1 < v2, and >0 if v1 > v2.
type Comparator[T LiteralValue] func(v1, v2 T) int

// Literal is a non-null constant value.
type Literal interface {
	fmt.Stringer
	encoding.BinaryMarshaler

	Type() TypeDescriptor
	Any() any
	Equals(Literal) bool
	// To casts the literal to the requested type, returning ErrBadCast
	// when the conversion would lose information.
	To(TypeDescriptor) (Literal, error)
}

// TypedLiteral is a Literal with a known underlying value type.
type TypedLiteral[T LiteralValue] interface {
	Literal

	Value() T
	Comparator() Comparator[T]
}

// NewLiteral wraps a raw value in the corresponding literal type.
func NewLiteral[T LiteralValue](val T) Literal {
	switch v := any(val).(type) {
	case bool:
		return BoolLiteral(v)
	case int32:
		return Int32Literal(v)
	case int64:
		return Int64Literal(v)
	case string:
		return StringLiteral(v)
	case Date:
		return DateLiteral(v)
	case DateTime:
		return DateTimeLiteral(v)
	case Decimal:
		return DecimalLiteral(v)
	}
	panic("unhandled literal value type")
}

type BoolLiteral bool

func (BoolLiteral) Comparator() Comparator[bool] {
	return func(v1, v2 bool) int {
		if v1 == v2 {
			return 0
		}
		if v1 {
			return 1
		}

		return -1
	}
}

func (b BoolLiteral) Type() TypeDescriptor { return TypeOf(TypeBoolean) }
func (b BoolLiteral) Value() bool          { return bool(b) }
func (b BoolLiteral) Any() any             { return b.Value() }
func (b BoolLiteral) String() string       { return strconv.FormatBool(bool(b)) }

func (b BoolLiteral) To(t TypeDescriptor) (Literal, error) {
	switch t.Type {
	case TypeBoolean:
		return b, nil
	case TypeTinyInt, TypeSmallInt, TypeInt:
		if b {
			return Int32Literal(1), nil
		}

		return Int32Literal(0), nil
	}

	return nil, errors.Wrapf(ErrBadCast, "boolean to %s", t)
}

func (b BoolLiteral) Equals(other Literal) bool {
	rhs, ok := other.(BoolLiteral)

	return ok && b == rhs
}

func (b BoolLiteral) MarshalBinary() ([]byte, error) {
	if b {
		return []byte{1}, nil
	}

	return []byte{0}, nil
}

// Int32Literal also represents BOOLEAN, TINYINT and SMALLINT constants:
// narrow integer columns share the int32 value domain.
type Int32Literal int32

func (Int32Literal) Comparator() Comparator[int32] { return cmp.Compare[int32] }
func (i Int32Literal) Type() TypeDescriptor        { return TypeOf(TypeInt) }
func (i Int32Literal) Value() int32                { return int32(i) }
func (i Int32Literal) Any() any                    { return i.Value() }
func (i Int32Literal) String() string              { return strconv.FormatInt(int64(i), 10) }

func (i Int32Literal) To(t TypeDescriptor) (Literal, error) {
	switch t.Type {
	case TypeBoolean, TypeTinyInt, TypeSmallInt, TypeInt:
		return i, nil
	case TypeBigInt:
		return Int64Literal(i), nil
	case TypeDecimal:
		unscaled := Decimal{Val: decimal128.FromI64(int64(i)), Scale: 0}
		out, err := unscaled.Val.Rescale(0, int32(t.Scale))
		if err != nil {
			return nil, errors.Wrapf(ErrBadCast, "int to %s: %v", t, err)
		}

		return DecimalLiteral(Decimal{Val: out, Scale: t.Scale}), nil
	}

	return nil, errors.Wrapf(ErrBadCast, "int to %s", t)
}

func (i Int32Literal) Equals(other Literal) bool {
	rhs, ok := other.(Int32Literal)

	return ok && i == rhs
}

func (i Int32Literal) MarshalBinary() ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, uint32(i)), nil
}

type Int64Literal int64

func (Int64Literal) Comparator() Comparator[int64] { return cmp.Compare[int64] }
func (i Int64Literal) Type() TypeDescriptor        { return TypeOf(TypeBigInt) }
func (i Int64Literal) Value() int64                { return int64(i) }
func (i Int64Literal) Any() any                    { return i.Value() }
func (i Int64Literal) String() string              { return strconv.FormatInt(int64(i), 10) }

func (i Int64Literal) To(t TypeDescriptor) (Literal, error) {
	switch t.Type {
	case TypeBigInt:
		return i, nil
	case TypeBoolean, TypeTinyInt, TypeSmallInt, TypeInt:
		if i > math.MaxInt32 || i < math.MinInt32 {
			return nil, errors.Wrapf(ErrBadCast, "bigint %d out of int range", int64(i))
		}

		return Int32Literal(int32(i)), nil
	case TypeDecimal:
		unscaled := Decimal{Val: decimal128.FromI64(int64(i)), Scale: 0}
		out, err := unscaled.Val.Rescale(0, int32(t.Scale))
		if err != nil {
			return nil, errors.Wrapf(ErrBadCast, "bigint to %s: %v", t, err)
		}

		return DecimalLiteral(Decimal{Val: out, Scale: t.Scale}), nil
	}

	return nil, errors.Wrapf(ErrBadCast, "bigint to %s", t)
}

func (i Int64Literal) Equals(other Literal) bool {
	rhs, ok := other.(Int64Literal)

	return ok && i == rhs
}

func (i Int64Literal) MarshalBinary() ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(i)), nil
}

// StringLiteral represents both CHAR and VARCHAR constants.
type StringLiteral string

func (StringLiteral) Comparator() Comparator[string] { return cmp.Compare[string] }
func (s StringLiteral) Type() TypeDescriptor         { return TypeOf(TypeVarchar) }
func (s StringLiteral) Value() string                { return string(s) }
func (s StringLiteral) Any() any                     { return s.Value() }
func (s StringLiteral) String() string               { return string(s) }

func (s StringLiteral) To(t TypeDescriptor) (Literal, error) {
	if t.Type.IsStringType() {
		return s, nil
	}

	return nil, errors.Wrapf(ErrBadCast, "string to %s", t)
}

func (s StringLiteral) Equals(other Literal) bool {
	rhs, ok := other.(StringLiteral)

	return ok && s == rhs
}

func (s StringLiteral) MarshalBinary() ([]byte, error) {
	return []byte(s), nil
}

type DateLiteral Date

func (DateLiteral) Comparator() Comparator[Date] {
	return func(v1, v2 Date) int { return cmp.Compare(v1, v2) }
}

func (d DateLiteral) Type() TypeDescriptor { return TypeOf(TypeDate) }
func (d DateLiteral) Value() Date          { return Date(d) }
func (d DateLiteral) Any() any             { return d.Value() }
func (d DateLiteral) String() string       { return Date(d).String() }

func (d DateLiteral) To(t TypeDescriptor) (Literal, error) {
	switch t.Type {
	case TypeDate:
		return d, nil
	case TypeDateTime:
		return DateTimeLiteral(Date(d).ToDateTime()), nil
	}

	return nil, errors.Wrapf(ErrBadCast, "date to %s", t)
}

func (d DateLiteral) Equals(other Literal) bool {
	rhs, ok := other.(DateLiteral)

	return ok && d == rhs
}

func (d DateLiteral) MarshalBinary() ([]byte, error) {
	return binary.LittleEndian.AppendUint32(nil, uint32(d)), nil
}

type DateTimeLiteral DateTime

func (DateTimeLiteral) Comparator() Comparator[DateTime] {
	return func(v1, v2 DateTime) int { return cmp.Compare(v1, v2) }
}

func (d DateTimeLiteral) Type() TypeDescriptor { return TypeOf(TypeDateTime) }
func (d DateTimeLiteral) Value() DateTime      { return DateTime(d) }
func (d DateTimeLiteral) Any() any             { return d.Value() }
func (d DateTimeLiteral) String() string       { return DateTime(d).String() }

// To truncation of a DATETIME to DATE is only permitted when the time
// component is zero; lossy truncations require an operator rewrite and
// are the caller's responsibility.
func (d DateTimeLiteral) To(t TypeDescriptor) (Literal, error) {
	switch t.Type {
	case TypeDateTime:
		return d, nil
	case TypeDate:
		if DateTime(d).HasTimePart() {
			return nil, errors.Wrapf(ErrBadCast, "datetime %s has a nonzero time part", d)
		}

		return DateLiteral(DateTime(d).ToDate()), nil
	}

	return nil, errors.Wrapf(ErrBadCast, "datetime to %s", t)
}

func (d DateTimeLiteral) Equals(other Literal) bool {
	rhs, ok := other.(DateTimeLiteral)

	return ok && d == rhs
}

func (d DateTimeLiteral) MarshalBinary() ([]byte, error) {
	return binary.LittleEndian.AppendUint64(nil, uint64(d)), nil
}

type DecimalLiteral Decimal

func (DecimalLiteral) Comparator() Comparator[Decimal] {
	return func(v1, v2 Decimal) int {
		if v1.Scale == v2.Scale {
			return v1.Val.Cmp(v2.Val)
		}

		rescaled, err := v2.Val.Rescale(int32(v2.Scale), int32(v1.Scale))
		if err != nil {
			return -1
		}

		return v1.Val.Cmp(rescaled)
	}
}

func (d DecimalLiteral) Type() TypeDescriptor {
	return DecimalTypeOf(maxDecimalPrecision, d.Scale)
}

func (d DecimalLiteral) Value() Decimal { return Decimal(d) }
func (d DecimalLiteral) Any() any       { return d.Value() }
func (d DecimalLiteral) String() string { return Decimal(d).String() }

func (d DecimalLiteral) To(t TypeDescriptor) (Literal, error) {
	if t.Type != TypeDecimal {
		return nil, errors.Wrapf(ErrBadCast, "decimal to %s", t)
	}
	if t.Scale == d.Scale {
		return d, nil
	}

	out, err := d.Val.Rescale(int32(d.Scale), int32(t.Scale))
	if err != nil {
		return nil, errors.Wrapf(ErrBadCast, "decimal rescale %d to %d: %v", d.Scale, t.Scale, err)
	}

	return DecimalLiteral(Decimal{Val: out, Scale: t.Scale}), nil
}

func (d DecimalLiteral) Equals(other Literal) bool {
	rhs, ok := other.(DecimalLiteral)
	if !ok {
		return false
	}

	return DecimalLiteral(Decimal{}).Comparator()(Decimal(d), Decimal(rhs)) == 0
}

func (d DecimalLiteral) MarshalBinary() ([]byte, error) {
	// unscaled value in two's complement big-endian.
	n := d.Val.BigInt()

	return n.Bytes(), nil
}

// FitsPrecision reports whether the unscaled value fits within the given
// declared precision, i.e. -10^precision < unscaled < 10^precision.
func (d DecimalLiteral) FitsPrecision(precision int) bool {
	if precision <= 0 || precision > maxDecimalPrecision {
		return false
	}

	factor := (&big.Int{}).Exp(big.NewInt(10), big.NewInt(int64(precision)), nil)
	unscaled := d.Val.BigInt()

	return unscaled.CmpAbs(factor) < 0
}

const maxDecimalPrecision = 38

// getComparator returns the comparator for the given literal value type.
func getComparator[T LiteralValue]() Comparator[T] {
	var z T

	return (NewLiteral(z).(TypedLiteral[T])).Comparator()
}
