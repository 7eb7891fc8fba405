package dataset

import (
	"context"
	"io"
	"sync"
)

type result[T any] struct {
	val T
	err error
}

// ParallelMap decodes records with up to parallelism concurrent calls to
// fn. Completion order may differ from arrival order, so fn must be a pure
// mapping with no shared mutable state. The first error, from upstream or
// from fn, terminates the stream; later pulls return the same error.
func ParallelMap[T any](ctx context.Context, s Stream[[]byte], fn DecodeFunc[T], parallelism int) Stream[T] {
	if parallelism < 1 {
		parallelism = 1
	}
	jobs := make(chan []byte, parallelism)
	results := make(chan result[T], parallelism)

	go func() {
		defer close(jobs)
		for {
			rec, err := s.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case results <- result[T]{err: err}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case jobs <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				v, err := fn(rec)
				select {
				case results <- result[T]{val: v, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var sticky error
	return StreamFunc[T](func() (T, error) {
		var zero T
		if sticky != nil {
			return zero, sticky
		}
		select {
		case r, ok := <-results:
			if !ok {
				sticky = io.EOF
				return zero, io.EOF
			}
			if r.err != nil {
				sticky = r.err
				return zero, r.err
			}
			return r.val, nil
		case <-ctx.Done():
			sticky = ctx.Err()
			return zero, sticky
		}
	})
}

// Prefetch keeps up to n values buffered ahead of the consumer so a pull
// never waits on upstream latency while the buffer is non-empty. n of zero
// still decouples the producer by one in-flight value.
func Prefetch[T any](ctx context.Context, s Stream[T], n int) Stream[T] {
	if n < 0 {
		n = 0
	}
	ch := make(chan result[T], n)
	go func() {
		defer close(ch)
		for {
			v, err := s.Next()
			if err == io.EOF {
				return
			}
			select {
			case ch <- result[T]{val: v, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var sticky error
	return StreamFunc[T](func() (T, error) {
		var zero T
		if sticky != nil {
			return zero, sticky
		}
		select {
		case r, ok := <-ch:
			if !ok {
				sticky = io.EOF
				return zero, io.EOF
			}
			if r.err != nil {
				sticky = r.err
				return zero, r.err
			}
			return r.val, nil
		case <-ctx.Done():
			sticky = ctx.Err()
			return zero, sticky
		}
	})
}
