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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basaltdb/basalt-go"
)

var (
	intSlot = basalt.SlotDescriptor{
		ID: 1, Name: "order_id", Type: basalt.TypeOf(basalt.TypeInt),
	}
	strSlot = basalt.SlotDescriptor{
		ID: 2, Name: "region", Type: basalt.TypeOf(basalt.TypeVarchar), Nullable: true,
	}
)

func TestOperationFlipLR(t *testing.T) {
	tests := []struct {
		op, want basalt.Operation
	}{
		{basalt.OpEQ, basalt.OpEQ},
		{basalt.OpNE, basalt.OpNE},
		{basalt.OpLT, basalt.OpGT},
		{basalt.OpLE, basalt.OpGE},
		{basalt.OpGT, basalt.OpLT},
		{basalt.OpGE, basalt.OpLE},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.op.FlipLR())
		assert.Equal(t, tc.op, tc.want.FlipLR())
	}
}

func TestOperationNegate(t *testing.T) {
	assert.Equal(t, basalt.OpNotIn, basalt.OpIn.Negate())
	assert.Equal(t, basalt.OpGE, basalt.OpLT.Negate())
	assert.Equal(t, basalt.OpNotNull, basalt.OpIsNull.Negate())
	assert.Panics(t, func() { basalt.OpAnd.Negate() })
}

func TestSlotIDsOf(t *testing.T) {
	expr := basalt.NewAnd(
		basalt.NewBinary(basalt.OpGT, basalt.NewColumnRef(intSlot), basalt.NewConst(basalt.NewLiteral(int32(5)))),
		basalt.NewOr(
			basalt.NewIn(basalt.NewColumnRef(strSlot), basalt.NewLiteral("cn"), basalt.NewLiteral("us")),
			basalt.NewIsNull(basalt.NewColumnRef(strSlot)),
		),
	)

	ids := basalt.SlotIDsOf(expr)
	assert.ElementsMatch(t, []basalt.SlotID{1, 2}, ids)
}

func TestExprString(t *testing.T) {
	eq := basalt.NewBinary(basalt.OpEQ, basalt.NewColumnRef(intSlot), basalt.NewConst(basalt.NewLiteral(int32(7))))
	assert.Equal(t, "(order_id = 7)", eq.String())

	in := basalt.NewNotIn(basalt.NewColumnRef(strSlot), basalt.NewLiteral("eu"))
	assert.Contains(t, in.String(), "not in")
}

func TestFoldConstantComparison(t *testing.T) {
	lit, null, err := basalt.FoldConstant(basalt.NewBinary(basalt.OpLT,
		basalt.NewConst(basalt.NewLiteral(int32(1))),
		basalt.NewConst(basalt.NewLiteral(int32(2)))))
	require.NoError(t, err)
	assert.False(t, null)
	assert.Equal(t, basalt.BoolLiteral(true), lit)

	_, null, err = basalt.FoldConstant(basalt.NewBinary(basalt.OpLT,
		basalt.NewNullConst(basalt.TypeOf(basalt.TypeInt)),
		basalt.NewConst(basalt.NewLiteral(int32(2)))))
	require.NoError(t, err)
	assert.True(t, null)
}

func TestFoldConstantCompound(t *testing.T) {
	boolConst := func(v bool) basalt.Expr { return basalt.NewConst(basalt.NewLiteral(v)) }
	nullBool := basalt.NewNullConst(basalt.TypeOf(basalt.TypeBoolean))

	t.Run("false dominates null under and", func(t *testing.T) {
		lit, null, err := basalt.FoldConstant(basalt.NewAnd(nullBool, boolConst(false)))
		require.NoError(t, err)
		assert.False(t, null)
		assert.Equal(t, basalt.BoolLiteral(false), lit)
	})

	t.Run("true keeps null under and", func(t *testing.T) {
		_, null, err := basalt.FoldConstant(basalt.NewAnd(nullBool, boolConst(true)))
		require.NoError(t, err)
		assert.True(t, null)
	})

	t.Run("true dominates null under or", func(t *testing.T) {
		lit, null, err := basalt.FoldConstant(basalt.NewOr(nullBool, boolConst(true)))
		require.NoError(t, err)
		assert.False(t, null)
		assert.Equal(t, basalt.BoolLiteral(true), lit)
	})
}

func TestFoldConstantIn(t *testing.T) {
	member := basalt.NewConst(basalt.NewLiteral(int32(2)))

	lit, null, err := basalt.FoldConstant(
		basalt.NewIn(member, basalt.NewLiteral(int32(1)), basalt.NewLiteral(int32(2))))
	require.NoError(t, err)
	assert.False(t, null)
	assert.Equal(t, basalt.BoolLiteral(true), lit)

	// A miss with NULL in the set is NULL, not false.
	missing := basalt.NewConst(basalt.NewLiteral(int32(9)))
	_, null, err = basalt.FoldConstant(
		basalt.NewIn(missing, basalt.NewLiteral(int32(1))).WithNullInSet())
	require.NoError(t, err)
	assert.True(t, null)
}

func TestFoldConstantRejectsSlotRefs(t *testing.T) {
	expr := basalt.NewBinary(basalt.OpEQ, basalt.NewColumnRef(intSlot), basalt.NewConst(basalt.NewLiteral(int32(1))))

	_, _, err := basalt.FoldConstant(expr)
	assert.ErrorIs(t, err, basalt.ErrNotConstant)
}

func TestExprContextEvalConst(t *testing.T) {
	ctx := basalt.NewExprContext(basalt.NewConst(basalt.NewLiteral(true)))

	_, _, err := ctx.EvalConst()
	assert.ErrorIs(t, err, basalt.ErrInvalidArgument)

	require.NoError(t, ctx.Prepare())
	lit, null, err := ctx.EvalConst()
	require.NoError(t, err)
	assert.False(t, null)
	assert.Equal(t, basalt.BoolLiteral(true), lit)
}
