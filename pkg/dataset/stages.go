package dataset

import (
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
)

// Glob expands glob patterns into a combined file list. A pattern that
// matches nothing contributes nothing; only a malformed pattern is an
// error.
func Glob(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("dataset: bad pattern %q: %w", p, err)
		}
		files = append(files, matches...)
	}
	return files, nil
}

// ShardFiles keeps the files whose index satisfies
// i % numShards == shardIndex. Shards are disjoint across indices and
// together cover the full list.
func ShardFiles(files []string, numShards, shardIndex int) []string {
	if numShards <= 1 {
		return files
	}
	var shard []string
	for i, f := range files {
		if i%numShards == shardIndex {
			shard = append(shard, f)
		}
	}
	return shard
}

// Repeat chains n passes over the source produced by the factory, or repeats
// indefinitely when n <= 0. An empty source terminates immediately rather
// than spinning.
func Repeat[T any](source func() Stream[T], n int) Stream[T] {
	cur := source()
	pass := 1
	return StreamFunc[T](func() (T, error) {
		var zero T
		v, err := cur.Next()
		if err != io.EOF {
			return v, err
		}
		if n > 0 && pass >= n {
			return zero, io.EOF
		}
		pass++
		cur = source()
		v, err = cur.Next()
		if err == io.EOF {
			return zero, io.EOF
		}
		return v, err
	})
}

// Shuffle applies a bounded-buffer shuffle. The buffer fills to size, then
// each pull emits a uniformly chosen buffered element and backfills it from
// upstream, so a fresh random order is drawn on every traversal. Larger
// buffers approach a full permutation; size <= 1 is a passthrough.
func Shuffle[T any](s Stream[T], size int, rng *rand.Rand) Stream[T] {
	if size <= 1 {
		return s
	}
	buf := make([]T, 0, size)
	done := false
	return StreamFunc[T](func() (T, error) {
		var zero T
		for !done && len(buf) < size {
			v, err := s.Next()
			if err == io.EOF {
				done = true
				break
			}
			if err != nil {
				return zero, err
			}
			buf = append(buf, v)
		}
		if len(buf) == 0 {
			return zero, io.EOF
		}
		i := rng.Intn(len(buf))
		v := buf[i]
		buf[i] = buf[len(buf)-1]
		buf = buf[:len(buf)-1]
		return v, nil
	})
}

// Interleave reads records from up to cycleLength files at a time, pulling
// one record per file in round-robin order before moving on. When a file
// exhausts, its slot is refilled from the filename stream. If cycleLength
// exceeds the number of distinct files and the filename stream repeats
// them, the same file can occupy several slots and its records repeat;
// that is accepted, not an error.
func Interleave(files Stream[string], readFn FileReadFunc, cycleLength int) Stream[[]byte] {
	if cycleLength < 1 {
		cycleLength = 1
	}
	slots := make([]Stream[[]byte], 0, cycleLength)
	filesDone := false
	next := 0
	return StreamFunc[[]byte](func() ([]byte, error) {
		for {
			for !filesDone && len(slots) < cycleLength {
				path, err := files.Next()
				if err == io.EOF {
					filesDone = true
					break
				}
				if err != nil {
					return nil, err
				}
				slots = append(slots, readFn(path))
			}
			if len(slots) == 0 {
				return nil, io.EOF
			}
			if next >= len(slots) {
				next = 0
			}
			rec, err := slots[next].Next()
			if err == io.EOF {
				slots = append(slots[:next], slots[next+1:]...)
				continue
			}
			if err != nil {
				return nil, err
			}
			next++
			return rec, nil
		}
	})
}
