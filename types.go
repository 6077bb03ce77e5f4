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
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/decimal128"
)

// LogicalType is the closed set of column type tags understood by the
// scan-preparation engine. Specialized behavior (decimal overflow checks,
// date truncation, string casts) is dispatched once per column via a
// switch over this tag, never per value.
type LogicalType int8

const (
	TypeUnknown LogicalType = iota
	TypeBoolean
	TypeTinyInt
	TypeSmallInt
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeChar
	TypeVarchar
	TypeDate
	TypeDateTime
	TypeJSON
)

var typeNames = map[LogicalType]string{
	TypeUnknown:  "unknown",
	TypeBoolean:  "boolean",
	TypeTinyInt:  "tinyint",
	TypeSmallInt: "smallint",
	TypeInt:      "int",
	TypeBigInt:   "bigint",
	TypeFloat:    "float",
	TypeDouble:   "double",
	TypeDecimal:  "decimal",
	TypeChar:     "char",
	TypeVarchar:  "varchar",
	TypeDate:     "date",
	TypeDateTime: "datetime",
	TypeJSON:     "json",
}

func (t LogicalType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}

	return fmt.Sprintf("LogicalType(%d)", int8(t))
}

// IsDateType reports whether t is DATE or DATETIME. A comparison between
// a date-typed slot and a date-typed operand is one of the two recognized
// safe casts.
func (t LogicalType) IsDateType() bool {
	return t == TypeDate || t == TypeDateTime
}

// IsStringType reports whether t is CHAR or VARCHAR, the other
// recognized safe cast pair.
func (t LogicalType) IsStringType() bool {
	return t == TypeChar || t == TypeVarchar
}

// IsRangeable reports whether a column of this type can carry a value
// range. Floating point, JSON and unknown columns never participate in
// range pushdown.
func (t LogicalType) IsRangeable() bool {
	switch t {
	case TypeFloat, TypeDouble, TypeJSON, TypeUnknown:
		return false
	default:
		return true
	}
}

// TypeDescriptor pairs a logical type tag with the precision and scale
// declared for decimal columns. Precision and scale are zero for every
// other type.
type TypeDescriptor struct {
	Type      LogicalType
	Precision int
	Scale     int
}

func TypeOf(t LogicalType) TypeDescriptor {
	return TypeDescriptor{Type: t}
}

func DecimalTypeOf(precision, scale int) TypeDescriptor {
	return TypeDescriptor{Type: TypeDecimal, Precision: precision, Scale: scale}
}

func (d TypeDescriptor) String() string {
	if d.Type == TypeDecimal {
		return fmt.Sprintf("decimal(%d, %d)", d.Precision, d.Scale)
	}

	return d.Type.String()
}

func (d TypeDescriptor) Equals(other TypeDescriptor) bool {
	return d == other
}

// Decimal is a fixed-point value held as a 128-bit unscaled integer plus
// a scale.
type Decimal struct {
	Val   decimal128.Num
	Scale int
}

func (d Decimal) String() string {
	return d.Val.ToString(int32(d.Scale))
}
