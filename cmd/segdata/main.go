// Command segdata builds and inspects segmentation training datasets.
//
//	segdata build   -list train.txt -images JPEGImages -annotations Annotations -out data
//	segdata inspect data/train-00000-of-00004.rec
//	segdata scan    -pattern 'data/train-*.rec' -epochs 1
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"segdata/internal/build"
	"segdata/pkg/dataset"
	"segdata/pkg/feature"
	"segdata/pkg/recordio"
)

func main() {
	godotenv.Load()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:], logger)
	case "inspect":
		err = runInspect(os.Args[2:])
	case "scan":
		err = runScan(os.Args[2:], logger)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `segdata - segmentation dataset preparation

Usage: %s <command> [options]

Commands:
  build     encode a split of images + annotation XML into sharded record files
  inspect   print a summary of the records in a record file
  scan      stream records through the input pipeline and count them

Run '%s <command> -h' for command options. A .env file in the working
directory supplies SEGDATA_* defaults.
`, os.Args[0], os.Args[0])
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runBuild(args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var cfg build.Config
	fs.StringVar(&cfg.ListPath, "list", envOr("SEGDATA_LIST", ""), "split file of example identifiers")
	fs.StringVar(&cfg.ImageDir, "images", envOr("SEGDATA_IMAGES", ""), "directory of images")
	fs.StringVar(&cfg.AnnotationDir, "annotations", envOr("SEGDATA_ANNOTATIONS", ""), "directory of annotation XML files")
	fs.StringVar(&cfg.OutDir, "out", envOr("SEGDATA_OUT", "data"), "output directory for record shards")
	fs.StringVar(&cfg.Prefix, "prefix", "train", "record file prefix")
	fs.StringVar(&cfg.ImageExt, "image-ext", ".jpg", "image file extension")
	fs.IntVar(&cfg.NumShards, "shards", 4, "number of output record files")
	fs.IntVar(&cfg.NumWorkers, "workers", runtime.NumCPU(), "number of concurrent encode workers")
	fs.StringVar(&cfg.CheckpointPath, "checkpoint", "", "checkpoint database for resumable builds")
	fs.StringVar(&cfg.ManifestPath, "manifest", "", "write a parquet manifest to this path")
	fs.StringVar(&cfg.ArrowPath, "arrow", "", "write an Arrow IPC manifest to this path")
	fs.BoolVar(&cfg.Progress, "progress", true, "show a progress bar")
	fs.Parse(args)

	b, err := build.New(cfg, logger)
	if err != nil {
		return err
	}
	stats, err := b.Run(context.Background())
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		logger.Warn().Int("failed", stats.Failed).Msg("some examples were skipped")
	}
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	limit := fs.Int("limit", 10, "maximum records to print (0 prints all)")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("inspect: record file argument required")
	}

	for _, path := range fs.Args() {
		s := recordio.ReadFile(path)
		fmt.Printf("%s:\n", path)
		for i := 0; *limit == 0 || i < *limit; i++ {
			rec, err := s.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			ex, err := feature.UnmarshalExample(rec)
			if err != nil {
				return err
			}
			fmt.Printf("  record %d (%d bytes):\n", i, len(rec))
			for name, f := range ex {
				fmt.Printf("    %-28s %s[%d]\n", name, f.Kind(), f.Len())
			}
		}
	}
	return nil
}

func runScan(args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	cfg := dataset.DefaultReadConfig()
	patterns := fs.String("pattern", "", "comma-separated record file glob patterns")
	fs.IntVar(&cfg.NumEpochs, "epochs", 1, "passes over the file set (0 repeats forever)")
	fs.BoolVar(&cfg.Shuffle, "shuffle", cfg.Shuffle, "shuffle filenames and records")
	fs.IntVar(&cfg.FilenamesShuffleBufferSize, "filename-shuffle-buffer", cfg.FilenamesShuffleBufferSize, "filename shuffle buffer size")
	fs.IntVar(&cfg.ShuffleBufferSize, "shuffle-buffer", cfg.ShuffleBufferSize, "record shuffle buffer size")
	fs.IntVar(&cfg.NumReaders, "readers", cfg.NumReaders, "interleave width and decode parallelism")
	fs.IntVar(&cfg.PrefetchBufferSize, "prefetch", cfg.PrefetchBufferSize, "prefetch buffer size")
	fs.Int64Var(&cfg.Seed, "seed", 0, "shuffle seed (0 uses the clock)")
	numWorkers := fs.Int("workers", 1, "total workers sharding the file set")
	workerIndex := fs.Int("worker-index", 0, "this worker's shard index")
	limit := fs.Int("limit", 0, "stop after this many records (0 means until exhausted)")
	fs.Parse(args)

	if *patterns == "" {
		return fmt.Errorf("scan: -pattern is required")
	}
	ds, err := dataset.ReadDataset(
		recordio.ReadFile,
		feature.UnmarshalExample,
		strings.Split(*patterns, ","),
		cfg, *numWorkers, *workerIndex,
	)
	if err != nil {
		return err
	}
	logger.Info().Int("files", len(ds.Files())).Msg("scanning")

	it := ds.Iterator(context.Background())
	defer it.Close()
	count := 0
	for *limit == 0 || count < *limit {
		_, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		count++
	}
	logger.Info().Int("records", count).Msg("scan complete")
	return nil
}
