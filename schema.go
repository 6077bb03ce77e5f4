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

// SlotID identifies one column slot in a row schema.
type SlotID int32

// SlotDescriptor describes one column of the scanned row: its slot id,
// column name, logical type (with declared precision/scale for decimals)
// and nullability.
type SlotDescriptor struct {
	ID       SlotID
	Name     string
	Type     TypeDescriptor
	Nullable bool
}

// Schema is an ordered list of slot descriptors.
type Schema struct {
	slots  []SlotDescriptor
	byID   map[SlotID]int
	byName map[string]int
}

func NewSchema(slots ...SlotDescriptor) (*Schema, error) {
	s := &Schema{
		slots:  slots,
		byID:   make(map[SlotID]int, len(slots)),
		byName: make(map[string]int, len(slots)),
	}
	for i, slot := range slots {
		if _, ok := s.byID[slot.ID]; ok {
			return nil, errors.Wrapf(ErrInvalidArgument, "duplicate slot id %d", slot.ID)
		}
		if _, ok := s.byName[slot.Name]; ok {
			return nil, errors.Wrapf(ErrInvalidArgument, "duplicate column name %q", slot.Name)
		}
		s.byID[slot.ID] = i
		s.byName[slot.Name] = i
	}

	return s, nil
}

// Slots returns the descriptors in schema order. The returned slice must
// be treated as read-only.
func (s *Schema) Slots() []SlotDescriptor { return s.slots }

func (s *Schema) Len() int { return len(s.slots) }

func (s *Schema) FindByID(id SlotID) (SlotDescriptor, bool) {
	i, ok := s.byID[id]
	if !ok {
		return SlotDescriptor{}, false
	}

	return s.slots[i], true
}

func (s *Schema) FindByName(name string) (SlotDescriptor, bool) {
	i, ok := s.byName[name]
	if !ok {
		return SlotDescriptor{}, false
	}

	return s.slots[i], true
}

// IndexOf returns the position of the slot id in schema order.
func (s *Schema) IndexOf(id SlotID) (int, bool) {
	i, ok := s.byID[id]

	return i, ok
}
