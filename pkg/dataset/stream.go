// Package dataset assembles shuffled, sharded, interleaved input pipelines
// over sets of record files. A pipeline is an ordered chain of stream
// stages: expand patterns, shard, repeat, shuffle filenames, interleave
// file reads, shuffle records, decode in parallel, prefetch. Every stage is
// lazy; nothing is read until the consumer pulls.
package dataset

import "io"

// Stream is a pull-based lazy sequence. Next returns io.EOF once the
// sequence is exhausted; any other error terminates the stream. Streams are
// single-consumer and not restartable.
type Stream[T any] interface {
	Next() (T, error)
}

// StreamFunc adapts a function to the Stream interface.
type StreamFunc[T any] func() (T, error)

// Next calls f.
func (f StreamFunc[T]) Next() (T, error) { return f() }

// FromSlice returns a finite stream over the elements of s.
func FromSlice[T any](s []T) Stream[T] {
	i := 0
	return StreamFunc[T](func() (T, error) {
		if i >= len(s) {
			var zero T
			return zero, io.EOF
		}
		v := s[i]
		i++
		return v, nil
	})
}

// Empty returns a stream that is exhausted immediately.
func Empty[T any]() Stream[T] {
	return StreamFunc[T](func() (T, error) {
		var zero T
		return zero, io.EOF
	})
}

// Collect drains s into a slice. It is meant for finite streams.
func Collect[T any](s Stream[T]) ([]T, error) {
	var out []T
	for {
		v, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// Take pulls at most n elements from s. It returns fewer when the stream
// exhausts first.
func Take[T any](s Stream[T], n int) ([]T, error) {
	out := make([]T, 0, n)
	for len(out) < n {
		v, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
