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

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidArgument is returned or wrapped when a caller violates an
	// API contract, such as constructing a predicate with a nil term.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrType indicates a type mismatch with no recognized safe cast.
	ErrType = errors.New("type mismatch")
	// ErrBadCast indicates a literal conversion that cannot be performed
	// without losing information.
	ErrBadCast = errors.New("invalid literal cast")
	// ErrNotConstant is returned when constant folding is attempted on an
	// expression that references at least one column.
	ErrNotConstant = errors.New("expression is not constant")
)
