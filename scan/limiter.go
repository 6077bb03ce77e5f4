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

import (
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/basaltdb/basalt-go"
)

// DynamicChunkBufferLimiter is the admission control for in-flight scan
// result buffers. Pinning is a non-blocking bounded increment: an
// acquisition that would exceed the current capacity fails immediately
// and the caller backpressures at a higher layer. Capacity adapts to
// the observed row width so wide rows hold fewer chunks in flight.
type DynamicChunkBufferLimiter struct {
	pinned   atomic.Int64
	capacity atomic.Int64

	mu            sync.Mutex
	memLimit      int64
	maxChunkRows  int64
	maxCapacity   int64
	rowBytesSum   int64
	rowBytesCount int64
}

func NewDynamicChunkBufferLimiter(memLimit int64, maxChunkRows, maxCapacity int) (*DynamicChunkBufferLimiter, error) {
	if memLimit <= 0 || maxChunkRows <= 0 || maxCapacity <= 0 {
		return nil, errors.Wrap(basalt.ErrInvalidArgument, "limiter bounds must be positive")
	}
	l := &DynamicChunkBufferLimiter{
		memLimit:     memLimit,
		maxChunkRows: int64(maxChunkRows),
		maxCapacity:  int64(maxCapacity),
	}
	l.capacity.Store(int64(maxCapacity))

	return l, nil
}

// ChunkBufferToken releases pinned chunks exactly once.
type ChunkBufferToken struct {
	limiter *DynamicChunkBufferLimiter
	n       int64
	once    sync.Once
}

// Release unpins the chunks held by the token. The pinned counter can
// never go negative; if it does, releases outnumber pins and the
// bookkeeping is corrupt.
func (t *ChunkBufferToken) Release() {
	t.once.Do(func() {
		if v := t.limiter.pinned.Sub(t.n); v < 0 {
			panic("chunk buffer limiter: pinned count went negative")
		}
	})
}

// Pin reserves n chunk buffers. It never blocks: when the reservation
// would exceed capacity it is rolled back and Pin reports failure.
func (l *DynamicChunkBufferLimiter) Pin(n int) (*ChunkBufferToken, bool) {
	if n <= 0 {
		return nil, false
	}
	if l.pinned.Add(int64(n)) > l.capacity.Load() {
		l.pinned.Sub(int64(n))

		return nil, false
	}

	return &ChunkBufferToken{limiter: l, n: int64(n)}, true
}

// UpdateAvgRowBytes feeds one observed average row width and recomputes
// capacity so that capacity × maxChunkRows × avgRowBytes stays within
// the memory limit. Capacity never exceeds the configured maximum and
// never drops below one.
func (l *DynamicChunkBufferLimiter) UpdateAvgRowBytes(rowBytes int64) {
	if rowBytes <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rowBytesSum += rowBytes
	l.rowBytesCount++
	avg := l.rowBytesSum / l.rowBytesCount

	limit := l.memLimit / (avg * l.maxChunkRows)
	if limit > l.maxCapacity {
		limit = l.maxCapacity
	}
	if limit < 1 {
		limit = 1
	}
	l.capacity.Store(limit)
}

func (l *DynamicChunkBufferLimiter) Pinned() int64   { return l.pinned.Load() }
func (l *DynamicChunkBufferLimiter) Capacity() int64 { return l.capacity.Load() }
