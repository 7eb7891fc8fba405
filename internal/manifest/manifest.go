// Package manifest writes the per-build index of encoded examples as a
// parquet table, with an optional Arrow IPC export.
package manifest

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// Row indexes one encoded example.
type Row struct {
	ExampleID      string `parquet:"name=example_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ImagePath      string `parquet:"name=image_path, type=BYTE_ARRAY, convertedtype=UTF8"`
	AnnotationPath string `parquet:"name=annotation_path, type=BYTE_ARRAY, convertedtype=UTF8"`
	Width          int32  `parquet:"name=width, type=INT32"`
	Height         int32  `parquet:"name=height, type=INT32"`
	NumObjects     int32  `parquet:"name=num_objects, type=INT32"`
	RecordFile     string `parquet:"name=record_file, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RecordBytes    int64  `parquet:"name=record_bytes, type=INT64"`
}

// Write writes rows to a parquet file at path.
func Write(path string, rows []Row) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("manifest: create %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(Row), 2)
	if err != nil {
		fw.Close()
		return fmt.Errorf("manifest: create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			fw.Close()
			return fmt.Errorf("manifest: write row %s: %w", row.ExampleID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("manifest: finalize parquet: %w", err)
	}
	return fw.Close()
}

// Read loads all rows from a parquet manifest.
func Read(path string) ([]Row, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Row), 2)
	if err != nil {
		return nil, fmt.Errorf("manifest: create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	rows := make([]Row, pr.GetNumRows())
	if len(rows) == 0 {
		return nil, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("manifest: read rows: %w", err)
	}
	return rows, nil
}
