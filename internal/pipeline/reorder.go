// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import "fmt"

// reorderBuffer restores strict index order from out-of-order completions.
//
// Completions for indices ahead of the next expected one are parked in a
// sparse map. The map never grows beyond the number of in-flight evaluations,
// which the scheduler caps at the worker count. Not safe for concurrent use,
// the collector goroutine is its single owner.
type reorderBuffer struct {
	next    uint64
	pending map[uint64]float64
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{pending: make(map[uint64]float64)}
}

// push accepts one completed sample and returns the run of samples that
// became contiguous with it, in strictly increasing index order. An index
// below the emission watermark or already parked means the scheduler
// evaluated a pair twice, which must never happen.
func (b *reorderBuffer) push(s Sample) ([]Sample, error) {
	if s.Index < b.next {
		return nil, &InvariantError{Index: s.Index, Expected: b.next}
	}
	if _, dup := b.pending[s.Index]; dup {
		return nil, &InvariantError{Index: s.Index, Expected: b.next}
	}

	if s.Index > b.next {
		b.pending[s.Index] = s.Value
		return nil, nil
	}

	out := []Sample{s}
	b.next++
	for {
		v, ok := b.pending[b.next]
		if !ok {
			break
		}
		delete(b.pending, b.next)
		out = append(out, Sample{Index: b.next, Value: v})
		b.next++
	}
	return out, nil
}

// InvariantError signals a duplicate or regressed completion index, which
// indicates a scheduler bug rather than bad input.
type InvariantError struct {
	Index    uint64
	Expected uint64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal invariant violation: completion for frame pair %d arrived with emission watermark at %d", e.Index, e.Expected)
}
