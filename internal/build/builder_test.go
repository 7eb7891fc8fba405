package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"segdata/internal/manifest"
	"segdata/pkg/feature"
	"segdata/pkg/recordio"
)

const annotationTemplate = `<annotation>
  <filename>%s.jpg</filename>
  <size><width>100</width><height>50</height><depth>3</depth></size>
  <object>
    <name>person</name>
    <bndbox><xmin>10</xmin><ymin>5</ymin><xmax>50</xmax><ymax>25</ymax></bndbox>
  </object>
</annotation>`

// writeDataset lays out a split file, images and annotations for ids.
func writeDataset(t *testing.T, root string, ids []string) Config {
	t.Helper()
	imageDir := filepath.Join(root, "images")
	annotationDir := filepath.Join(root, "annotations")
	outDir := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(imageDir, 0755))
	require.NoError(t, os.MkdirAll(annotationDir, 0755))

	var list string
	for _, id := range ids {
		list += id + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(imageDir, id+".jpg"), []byte("jpegbytes-"+id), 0644))
		xml := fmt.Sprintf(annotationTemplate, id)
		require.NoError(t, os.WriteFile(filepath.Join(annotationDir, id+".xml"), []byte(xml), 0644))
	}
	listPath := filepath.Join(root, "train.txt")
	require.NoError(t, os.WriteFile(listPath, []byte(list), 0644))

	return Config{
		ListPath:      listPath,
		ImageDir:      imageDir,
		AnnotationDir: annotationDir,
		OutDir:        outDir,
		Prefix:        "train",
		NumShards:     2,
		NumWorkers:    3,
	}
}

func countShardRecords(t *testing.T, outDir string, prefix string, numShards int) map[string][]feature.Example {
	t.Helper()
	out := map[string][]feature.Example{}
	for i := 0; i < numShards; i++ {
		name := ShardName(prefix, i, numShards)
		s := recordio.ReadFile(filepath.Join(outDir, name))
		for {
			rec, err := s.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			ex, err := feature.UnmarshalExample(rec)
			require.NoError(t, err)
			out[name] = append(out[name], ex)
		}
	}
	return out
}

func TestRunEncodesAllExamples(t *testing.T) {
	ids := []string{"000001", "000002", "000003", "000004", "000005"}
	cfg := writeDataset(t, t.TempDir(), ids)
	cfg.ManifestPath = filepath.Join(cfg.OutDir, "manifest.parquet")

	b, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	stats, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{Total: 5, Encoded: 5}, stats)

	shards := countShardRecords(t, cfg.OutDir, cfg.Prefix, cfg.NumShards)
	total := 0
	for _, examples := range shards {
		total += len(examples)
		for _, ex := range examples {
			require.Equal(t, feature.KindInt64, ex["image/width"].Kind())
			require.EqualValues(t, 100, ex["image/width"].Int64List[0])
			require.Equal(t, "person", string(ex["image/object/class/text"].BytesList[0]))
			// xmin 10 normalized by width 100.
			require.InDelta(t, 0.1, ex["image/object/bbox/xmin"].FloatList[0], 1e-6)
			// ymax 25 normalized by height 50.
			require.InDelta(t, 0.5, ex["image/object/bbox/ymax"].FloatList[0], 1e-6)
		}
	}
	require.Equal(t, 5, total)
	// Round-robin keeps shards balanced.
	for name, examples := range shards {
		require.InDeltaf(t, 2.5, float64(len(examples)), 0.5, "shard %s unbalanced", name)
	}

	rows, err := manifest.Read(cfg.ManifestPath)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for _, row := range rows {
		require.EqualValues(t, 100, row.Width)
		require.EqualValues(t, 50, row.Height)
		require.EqualValues(t, 1, row.NumObjects)
		require.NotZero(t, row.RecordBytes)
	}
}

func TestRunSkipsFailedExamples(t *testing.T) {
	ids := []string{"000001", "000002", "000003"}
	cfg := writeDataset(t, t.TempDir(), ids)
	// An identifier with no image or annotation on disk.
	require.NoError(t, os.WriteFile(cfg.ListPath, []byte("000001\n000002\n000003\nmissing\n"), 0644))

	b, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	stats, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 3, stats.Encoded)
	require.Equal(t, 1, stats.Failed)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	ids := []string{"000001", "000002", "000003"}
	root := t.TempDir()
	cfg := writeDataset(t, root, ids)
	cfg.CheckpointPath = filepath.Join(root, "checkpoint.db")

	b, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	stats, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Encoded)

	// A second run finds everything already encoded.
	b2, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	stats, err = b2.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Stats{Total: 3, Skipped: 3}, stats)
}

func TestRunArrowExport(t *testing.T) {
	ids := []string{"000001", "000002"}
	cfg := writeDataset(t, t.TempDir(), ids)
	cfg.ArrowPath = filepath.Join(cfg.OutDir, "manifest.arrow")

	b, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	rows, err := manifest.ReadArrowIPC(cfg.ArrowPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestNewRejectsMissingPaths(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(Config{ListPath: "x"}, zerolog.Nop())
	require.Error(t, err)
}

func TestEncodeExampleZeroObjects(t *testing.T) {
	root := t.TempDir()
	imagePath := filepath.Join(root, "a.jpg")
	annotationPath := filepath.Join(root, "a.xml")
	require.NoError(t, os.WriteFile(imagePath, []byte("img"), 0644))
	xml := `<annotation><size><width>10</width><height>10</height></size></annotation>`
	require.NoError(t, os.WriteFile(annotationPath, []byte(xml), 0644))

	rec, row, err := encodeExample("a", imagePath, annotationPath)
	require.NoError(t, err)
	require.EqualValues(t, 0, row.NumObjects)

	ex, err := feature.UnmarshalExample(rec)
	require.NoError(t, err)
	require.Zero(t, ex["image/object/class/text"].Len())
	require.Zero(t, ex["image/object/bbox/xmin"].Len())
}

func TestEncodeExampleBadAnnotation(t *testing.T) {
	root := t.TempDir()
	imagePath := filepath.Join(root, "a.jpg")
	annotationPath := filepath.Join(root, "a.xml")
	require.NoError(t, os.WriteFile(imagePath, []byte("img"), 0644))
	require.NoError(t, os.WriteFile(annotationPath, []byte("<annotation><size><width>abc</width></size></annotation>"), 0644))

	_, _, err := encodeExample("a", imagePath, annotationPath)
	require.Error(t, err)
}

func TestShardName(t *testing.T) {
	require.Equal(t, "train-00000-of-00010.rec", ShardName("train", 0, 10))
	require.Equal(t, "val-00003-of-00004.rec", ShardName("val", 3, 4))
}
