// Package build turns a split file plus VOC-style images and annotations
// into sharded record files, with an optional parquet/Arrow manifest and a
// resumable checkpoint.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"segdata/internal/checkpoint"
	"segdata/internal/manifest"
	"segdata/pkg/annotation"
	"segdata/pkg/recordio"
)

// Config holds the inputs and outputs of one build run.
type Config struct {
	ListPath      string // split file of example identifiers
	ImageDir      string
	AnnotationDir string
	OutDir        string
	Prefix        string // record file prefix, e.g. "train"
	ImageExt      string // defaults to ".jpg"

	NumShards  int
	NumWorkers int

	CheckpointPath string // empty disables resume tracking
	ManifestPath   string // empty disables the parquet manifest
	ArrowPath      string // empty disables the Arrow IPC export

	Progress bool // render an mpb progress bar
}

func (c *Config) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = "train"
	}
	if c.ImageExt == "" {
		c.ImageExt = ".jpg"
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumWorkers < 1 {
		c.NumWorkers = 1
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.ListPath == "" {
		return fmt.Errorf("build: examples list path is required")
	}
	if c.ImageDir == "" {
		return fmt.Errorf("build: image directory is required")
	}
	if c.AnnotationDir == "" {
		return fmt.Errorf("build: annotation directory is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("build: output directory is required")
	}
	return nil
}

// Stats summarizes one build run.
type Stats struct {
	Total   int // identifiers in the split file
	Skipped int // already encoded per the checkpoint
	Encoded int
	Failed  int // unreadable or malformed examples, logged and skipped
}

// Builder encodes examples with a worker pool and round-robins the encoded
// records across the output shards.
type Builder struct {
	cfg Config
	log zerolog.Logger
}

// New validates cfg and returns a Builder.
func New(cfg Config, log zerolog.Logger) (*Builder, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, log: log}, nil
}

// ShardName returns the record file name for shard i of n.
func ShardName(prefix string, i, n int) string {
	return fmt.Sprintf("%s-%05d-of-%05d.rec", prefix, i, n)
}

type encodedResult struct {
	id  string
	rec []byte
	row manifest.Row
	err error
}

// Run executes the build. Examples that fail to read or parse are logged
// and skipped; the run only aborts on output errors or cancellation.
func (b *Builder) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	ids, err := annotation.ReadExamplesList(b.cfg.ListPath)
	if err != nil {
		return stats, err
	}
	stats.Total = len(ids)

	var store *checkpoint.Store
	if b.cfg.CheckpointPath != "" {
		store, err = checkpoint.Open(b.cfg.CheckpointPath)
		if err != nil {
			return stats, err
		}
		defer store.Close()
	}

	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if store != nil && store.IsEncoded(id) {
			stats.Skipped++
			continue
		}
		pending = append(pending, id)
	}
	b.log.Info().
		Int("total", stats.Total).
		Int("pending", len(pending)).
		Int("skipped", stats.Skipped).
		Msg("starting build")
	if len(pending) == 0 {
		return stats, nil
	}

	if err := os.MkdirAll(b.cfg.OutDir, 0755); err != nil {
		return stats, fmt.Errorf("build: create output directory: %w", err)
	}
	writers := make([]*recordio.FileWriter, b.cfg.NumShards)
	shardNames := make([]string, b.cfg.NumShards)
	for i := range writers {
		shardNames[i] = ShardName(b.cfg.Prefix, i, b.cfg.NumShards)
		w, err := recordio.NewFileWriter(filepath.Join(b.cfg.OutDir, shardNames[i]))
		if err != nil {
			closeWriters(writers[:i])
			return stats, err
		}
		writers[i] = w
	}

	var bar *mpb.Bar
	var progress *mpb.Progress
	if b.cfg.Progress {
		progress = mpb.New(mpb.WithWidth(80))
		bar = progress.AddBar(int64(len(pending)),
			mpb.PrependDecorators(
				decor.Name("Encoding examples: "),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done"),
			),
		)
	}

	jobs := make(chan string, b.cfg.NumWorkers*2)
	results := make(chan encodedResult, b.cfg.NumWorkers*2)
	var wg sync.WaitGroup

	for w := 0; w < b.cfg.NumWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				imagePath := filepath.Join(b.cfg.ImageDir, id+b.cfg.ImageExt)
				annotationPath := filepath.Join(b.cfg.AnnotationDir, id+".xml")
				rec, row, err := encodeExample(id, imagePath, annotationPath)
				results <- encodedResult{id: id, rec: rec, row: row, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range pending {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var rows []manifest.Row
	shard := 0
	var writeErr error
	for res := range results {
		if bar != nil {
			bar.Increment()
		}
		if res.err != nil {
			stats.Failed++
			b.log.Warn().Str("example", res.id).Err(res.err).Msg("skipping example")
			continue
		}
		if writeErr != nil {
			continue // drain remaining results after a write failure
		}
		w := writers[shard]
		if err := w.Write(res.rec); err != nil {
			writeErr = err
			continue
		}
		res.row.RecordFile = shardNames[shard]
		rows = append(rows, res.row)
		stats.Encoded++
		if store != nil {
			if err := store.MarkEncoded(res.id, res.row.RecordFile, res.row.RecordBytes); err != nil {
				writeErr = err
				continue
			}
		}
		shard = (shard + 1) % b.cfg.NumShards
	}
	if progress != nil {
		progress.Wait()
	}
	if err := closeWriters(writers); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return stats, writeErr
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if b.cfg.ManifestPath != "" {
		if err := manifest.Write(b.cfg.ManifestPath, rows); err != nil {
			return stats, err
		}
	}
	if b.cfg.ArrowPath != "" {
		if err := manifest.WriteArrowIPC(b.cfg.ArrowPath, rows); err != nil {
			return stats, err
		}
	}

	b.log.Info().
		Int("encoded", stats.Encoded).
		Int("failed", stats.Failed).
		Int("shards", b.cfg.NumShards).
		Str("out", b.cfg.OutDir).
		Msg("build complete")
	return stats, nil
}

func closeWriters(writers []*recordio.FileWriter) error {
	var first error
	for _, w := range writers {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
