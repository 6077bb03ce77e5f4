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

package scan

import "github.com/cockroachdb/errors"

var (
	// ErrNoRows is the explicit short-circuit signal: the scan result is
	// provably empty. It is not a failure; callers must treat it as
	// "zero rows, scan complete".
	ErrNoRows = errors.New("no rows match")

	// ErrInvalidFilter is returned when the external predicate parser
	// rejects a well-formed pushed condition, which indicates an
	// internal consistency bug.
	ErrInvalidFilter = errors.New("invalid filter")

	// errNotPushable is the internal, expected outcome for a predicate
	// shape the range algebra cannot absorb; the predicate stays
	// residual.
	errNotPushable = errors.New("predicate not pushable")
)
