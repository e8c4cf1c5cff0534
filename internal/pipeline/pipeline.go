// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Frame-parallel score evaluation pipeline.
//
// A fixed pool of workers pulls frame pairs straight from the pair source
// under a mutex (decoders are stateful, decoding stays sequential), evaluates
// the metric concurrently and hands completions to a single collector that
// restores strict frame order. Workers pull instead of being fed: a pair is
// decoded only when the worker that will score it is free, so at most W
// decoded pairs are alive at any time, which caps in-flight decoded frame
// memory.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/evolution-gaming/vqcmp/internal/frame"
)

// Sample is a single per-frame score. Value is not bounded below, quality
// metrics may go negative on severe distortion.
type Sample struct {
	Index uint64  `csv:"frame" json:"frame"`
	Value float64 `csv:"score" json:"score"`
}

// Scorer computes a quality score for one frame pair. Implementations must
// be pure and safe for concurrent use from multiple workers.
type Scorer func(ref, dist *frame.Buffer) (float64, error)

// PairProducer is the pair source seam, implemented by frame.PairSource.
type PairProducer interface {
	Next() (*frame.Pair, error)
}

// Options configures a pipeline run.
type Options struct {
	Source PairProducer
	Score  Scorer
	// Number of concurrent evaluation workers. Values < 1 mean 1, which
	// degenerates to fully sequential deterministic execution. This is the
	// default since memory use grows linearly with workers.
	Workers int
	// OnComplete, when non-nil, is called once per finished evaluation in
	// completion order. It must not block.
	OnComplete func()
	// OnSample, when non-nil, is called for every sample in strict index
	// order as soon as it becomes contiguous.
	OnSample func(Sample)
}

// Run evaluates the score for every frame pair the source yields and returns
// the complete, strictly index-ordered sample series.
//
// On the first fatal error new pulls stop, in-flight evaluations drain
// without starting new work and the error is returned. Cancellation of the
// parent context is reported as its error. Partial results are discarded,
// the returned series is either complete or nil.
func Run(ctx context.Context, opts Options) ([]Sample, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	src := &sharedSource{src: opts.Source, fail: fail}
	results := make(chan Sample, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			evaluate(runCtx, opts.Score, src, results)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	series := collect(results, &opts, fail)

	// collect returns only after every worker exited, reading firstErr here
	// is race free.
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		// Cancelled from outside with no internal failure recorded.
		return nil, err
	}
	return series, nil
}

// sharedSource serializes pair production across the worker pool. The mutex
// is the backpressure mechanism: pulling and decoding happen only inside a
// worker that is free to evaluate the result.
type sharedSource struct {
	mu   sync.Mutex
	src  PairProducer
	done bool
	fail func(error)
}

// next returns the next frame pair, or nil once the source is exhausted or
// has failed. Exhaustion and failure are sticky across workers.
func (s *sharedSource) next() *frame.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil
	}
	p, err := s.src.Next()
	if err == io.EOF {
		s.done = true
		return nil
	}
	if err != nil {
		s.done = true
		s.fail(err)
		return nil
	}
	return p
}

// evaluate pulls and scores pairs until the source runs dry or the run is
// cancelled. The worker holds at most one decoded pair at a time.
func evaluate(ctx context.Context, score Scorer, src *sharedSource, results chan<- Sample) {
	for {
		if ctx.Err() != nil {
			return
		}

		p := src.next()
		if p == nil {
			return
		}

		v, err := score(p.Reference, p.Distorted)
		if err != nil {
			src.fail(&MetricError{Index: p.Index, Err: err})
			return
		}
		results <- Sample{Index: p.Index, Value: v}
	}
}

// collect is the single owner of the reorder buffer. It consumes completions
// until the result channel closes and accumulates the ordered series.
func collect(results <-chan Sample, opts *Options, fail func(error)) []Sample {
	buf := newReorderBuffer()
	var series []Sample

	for s := range results {
		// Progress counts completions, not emissions, so it is reported
		// before reordering.
		if opts.OnComplete != nil {
			opts.OnComplete()
		}

		ordered, err := buf.push(s)
		if err != nil {
			fail(err)
			continue
		}
		for _, o := range ordered {
			if opts.OnSample != nil {
				opts.OnSample(o)
			}
			series = append(series, o)
		}
	}

	return series
}

// MetricError is a fatal per-evaluation failure tagged with the frame pair
// index. A failed evaluation is never skipped silently, a missing sample
// would corrupt both the statistics and graph continuity.
type MetricError struct {
	Index uint64
	Err   error
}

func (e *MetricError) Error() string {
	return fmt.Sprintf("scoring frame pair %d: %v", e.Index, e.Err)
}

func (e *MetricError) Unwrap() error { return e.Err }
