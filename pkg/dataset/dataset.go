package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// FileReadFunc opens one input file as a lazy stream of raw records. Open
// errors are delivered on the first pull from the returned stream.
type FileReadFunc func(path string) Stream[[]byte]

// DecodeFunc maps one raw record to one decoded record. It must be safe to
// call concurrently with itself.
type DecodeFunc[T any] func(rec []byte) (T, error)

// Dataset is an assembled input pipeline recipe. It holds the sharded file
// list and configuration; no I/O happens until Iterator is called, and each
// Iterator call starts an independent traversal from the beginning.
type Dataset[T any] struct {
	readFn   FileReadFunc
	decodeFn DecodeFunc[T]
	files    []string
	cfg      ReadConfig
}

// ReadDataset expands the glob patterns, keeps this worker's shard of the
// matched files, and returns a dataset that repeats, shuffles, interleaves,
// decodes and prefetches records per cfg. numWorkers and workerIndex
// partition the file set so concurrent workers see disjoint subsets.
// Patterns matching no files yield a dataset whose iterators are exhausted
// immediately.
func ReadDataset[T any](readFn FileReadFunc, decodeFn DecodeFunc[T], patterns []string, cfg ReadConfig, numWorkers, workerIndex int) (*Dataset[T], error) {
	if readFn == nil {
		return nil, fmt.Errorf("dataset: nil file read func")
	}
	if decodeFn == nil {
		return nil, fmt.Errorf("dataset: nil decode func")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if numWorkers < 1 {
		return nil, fmt.Errorf("dataset: num workers must be positive, got %d", numWorkers)
	}
	if workerIndex < 0 || workerIndex >= numWorkers {
		return nil, fmt.Errorf("dataset: worker index %d out of range [0,%d)", workerIndex, numWorkers)
	}
	files, err := Glob(patterns)
	if err != nil {
		return nil, err
	}
	return &Dataset[T]{
		readFn:   readFn,
		decodeFn: decodeFn,
		files:    ShardFiles(files, numWorkers, workerIndex),
		cfg:      cfg,
	}, nil
}

// Files returns this worker's shard of the expanded file list.
func (d *Dataset[T]) Files() []string {
	out := make([]string, len(d.files))
	copy(out, d.files)
	return out
}

// Iterator starts a traversal. The caller owns the returned iterator and
// must Close it to stop the pipeline goroutines; nothing is registered
// globally on its behalf.
func (d *Dataset[T]) Iterator(ctx context.Context) *Iterator[T] {
	ctx, cancel := context.WithCancel(ctx)
	return &Iterator[T]{
		stream: d.assemble(ctx),
		cancel: cancel,
	}
}

// assemble chains the pipeline stages in their fixed order: repeat the
// sharded filenames, shuffle them, interleave file reads, shuffle records,
// decode in parallel, prefetch.
func (d *Dataset[T]) assemble(ctx context.Context) Stream[T] {
	cfg := d.cfg
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	files := d.files

	names := Repeat(func() Stream[string] { return FromSlice(files) }, cfg.NumEpochs)
	if cfg.Shuffle {
		names = Shuffle(names, cfg.FilenamesShuffleBufferSize, rand.New(rand.NewSource(seed)))
	}

	// More readers than files leads to repeated records, not an error.
	cycle := cfg.NumReaders
	if len(files) > 0 && cycle > len(files) {
		cycle = len(files)
	}
	recs := Interleave(names, d.readFn, cycle)
	if cfg.Shuffle {
		recs = Shuffle(recs, cfg.ShuffleBufferSize, rand.New(rand.NewSource(seed+1)))
	}

	decoded := ParallelMap(ctx, recs, d.decodeFn, cfg.NumReaders)
	return Prefetch(ctx, decoded, cfg.PrefetchBufferSize)
}

// Iterator is one traversal of a dataset. Next blocks until a decoded
// record, an error, or exhaustion (io.EOF). A decode error ends the
// traversal; start a new iterator to read again from the beginning.
type Iterator[T any] struct {
	stream Stream[T]
	cancel context.CancelFunc
}

// Next returns the next decoded record.
func (it *Iterator[T]) Next() (T, error) {
	return it.stream.Next()
}

// Close stops the pipeline goroutines. It is safe to call more than once.
func (it *Iterator[T]) Close() error {
	it.cancel()
	return nil
}
