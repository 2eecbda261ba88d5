// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool provides a persistent worker pool shared by the
// parallel kernel variants. A Pool is created once (usually by a backend) and
// reused for every call, so per-call cost is a few channel sends instead of
// goroutine spawns.
//
// All methods accept a nil *Pool and then run the work on the calling
// goroutine, which lets kernels take an optional pool without branching.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	pool.ParallelSegments(offsets, func(first, last int) {
//	    for s := first; s < last; s++ {
//	        reduceSegment(s)
//	    }
//	})
package workerpool

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool. Workers are spawned once at creation and
// live until Close.
type Pool struct {
	numWorkers int
	workC      chan workItem
	closeOnce  sync.Once
	closed     atomic.Bool
}

type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a pool with numWorkers workers. If numWorkers <= 0, GOMAXPROCS
// is used.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan workItem, numWorkers*2),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers, or 1 for a nil pool.
func (p *Pool) NumWorkers() int {
	if p == nil {
		return 1
	}
	return p.numWorkers
}

// Close shuts the pool down. Pending work completes; later calls run
// sequentially. Calling Close more than once is safe.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// usable reports whether work should be handed to the workers.
func (p *Pool) usable() bool {
	return p != nil && !p.closed.Load() && p.numWorkers > 1
}

// dispatch runs task(w) for w in [0, workers) on the pool and blocks until
// every task returns.
func (p *Pool) dispatch(workers int, task func(w int)) {
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		p.workC <- workItem{
			fn:      func() { task(w) },
			barrier: &wg,
		}
	}
	wg.Wait()
}

// ParallelFor calls fn over contiguous, equally sized chunks of [0, n) and
// blocks until all chunks are done. fn receives [start, end).
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := min(p.NumWorkers(), n)
	if !p.usable() || workers == 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	workers = (n + chunk - 1) / chunk
	p.dispatch(workers, func(w int) {
		start := w * chunk
		fn(start, min(start+chunk, n))
	})
}

// ParallelForAtomic calls fn(i) for every i in [0, n), handing indices out
// one at a time. It balances load when the cost per index varies.
func (p *Pool) ParallelForAtomic(n int, fn func(i int)) {
	p.ParallelForAtomicBatched(n, 1, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// ParallelForAtomicBatched hands out batches of batchSize consecutive indices
// through an atomic counter. fn receives [start, end).
func (p *Pool) ParallelForAtomicBatched(n, batchSize int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	batchSize = max(batchSize, 1)
	numBatches := (n + batchSize - 1) / batchSize
	workers := min(p.NumWorkers(), numBatches)
	if !p.usable() || workers == 1 {
		fn(0, n)
		return
	}

	var next atomic.Int64
	p.dispatch(workers, func(int) {
		for {
			start := int(next.Add(int64(batchSize))) - batchSize
			if start >= n {
				return
			}
			fn(start, min(start+batchSize, n))
		}
	})
}

// ParallelSegments splits the segments described by offsets (as returned by
// ragged.Offsets, len = numSegments+1) into contiguous groups holding roughly
// equal numbers of rows, and calls fn(first, last) for each group of segments
// [first, last). Segments are never split across calls.
func (p *Pool) ParallelSegments(offsets []int, fn func(first, last int)) {
	numSegments := len(offsets) - 1
	if numSegments <= 0 {
		return
	}
	workers := min(p.NumWorkers(), numSegments)
	if !p.usable() || workers == 1 {
		fn(0, numSegments)
		return
	}

	// bounds[w] is the first segment of group w, chosen so that group w
	// starts at the first segment ending past w/workers of the total rows.
	total := offsets[numSegments]
	bounds := make([]int, workers+1)
	bounds[workers] = numSegments
	for w := 1; w < workers; w++ {
		target := total * w / workers
		b := sort.SearchInts(offsets[1:], target+1)
		bounds[w] = max(bounds[w-1], min(b, numSegments))
	}

	p.dispatch(workers, func(w int) {
		if first, last := bounds[w], bounds[w+1]; first < last {
			fn(first, last)
		}
	})
}
