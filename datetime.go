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

import "time"

const microsPerDay = int64(24 * time.Hour / time.Microsecond)

// Date is a calendar date without a timezone, represented as the number
// of days since the unix epoch. Negative values denote days before it.
type Date int32

func DateFromTime(t time.Time) Date {
	t = t.UTC()
	y, m, d := t.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / (24 * 60 * 60)

	return Date(days)
}

func (d Date) ToTime() time.Time {
	return time.Unix(int64(d)*24*60*60, 0).UTC()
}

// ToDateTime widens the date to a timestamp at midnight. The conversion
// is always lossless.
func (d Date) ToDateTime() DateTime {
	return DateTime(int64(d) * microsPerDay)
}

func (d Date) String() string {
	return d.ToTime().Format("2006-01-02")
}

// DateTime is a timestamp without a timezone, represented as the number
// of microseconds since the unix epoch.
type DateTime int64

func DateTimeFromTime(t time.Time) DateTime {
	return DateTime(t.UTC().UnixMicro())
}

func (t DateTime) ToTime() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// ToDate truncates the timestamp to its calendar date. Use HasTimePart
// to detect whether this loses information.
func (t DateTime) ToDate() Date {
	days := int64(t) / microsPerDay
	if int64(t)%microsPerDay < 0 {
		days--
	}

	return Date(days)
}

// HasTimePart reports whether the timestamp carries a nonzero time
// component, i.e. whether truncating it to a Date is lossy.
func (t DateTime) HasTimePart() bool {
	return int64(t)%microsPerDay != 0
}

func (t DateTime) String() string {
	return t.ToTime().Format("2006-01-02 15:04:05")
}
