package dataset

import "fmt"

// ReadConfig controls repetition, shuffling and concurrency of an input
// pipeline.
type ReadConfig struct {
	// NumEpochs bounds the number of passes over the file set. Zero means
	// repeat indefinitely.
	NumEpochs int

	// Shuffle enables both the filename shuffle and the record shuffle.
	Shuffle bool

	// FilenamesShuffleBufferSize is the bounded buffer used to shuffle the
	// file-path sequence.
	FilenamesShuffleBufferSize int

	// ShuffleBufferSize is the bounded buffer used to shuffle interleaved
	// records.
	ShuffleBufferSize int

	// NumReaders caps both the interleave width and the number of
	// concurrent decode calls.
	NumReaders int

	// PrefetchBufferSize is the decoded-record lookahead held ahead of the
	// consumer.
	PrefetchBufferSize int

	// Seed fixes the shuffle order for reproducible runs. Zero seeds from
	// the clock.
	Seed int64
}

// DefaultReadConfig returns the defaults used by the CLI.
func DefaultReadConfig() ReadConfig {
	return ReadConfig{
		Shuffle:                    true,
		FilenamesShuffleBufferSize: 100,
		ShuffleBufferSize:          2048,
		NumReaders:                 8,
		PrefetchBufferSize:         512,
	}
}

// Validate reports the first invalid field.
func (c ReadConfig) Validate() error {
	if c.NumEpochs < 0 {
		return fmt.Errorf("dataset: num epochs must be non-negative, got %d", c.NumEpochs)
	}
	if c.NumReaders < 1 {
		return fmt.Errorf("dataset: num readers must be positive, got %d", c.NumReaders)
	}
	if c.PrefetchBufferSize < 0 {
		return fmt.Errorf("dataset: prefetch buffer size must be non-negative, got %d", c.PrefetchBufferSize)
	}
	if c.Shuffle {
		if c.FilenamesShuffleBufferSize < 1 {
			return fmt.Errorf("dataset: filenames shuffle buffer size must be positive, got %d", c.FilenamesShuffleBufferSize)
		}
		if c.ShuffleBufferSize < 1 {
			return fmt.Errorf("dataset: shuffle buffer size must be positive, got %d", c.ShuffleBufferSize)
		}
	}
	return nil
}
