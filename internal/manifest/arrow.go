package manifest

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/ipc"
	"github.com/apache/arrow/go/arrow/memory"
)

// ArrowSchema returns the Arrow schema matching Row.
func ArrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "example_id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "image_path", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "annotation_path", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "width", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "height", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "num_objects", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
		{Name: "record_file", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "record_bytes", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	}, nil)
}

// WriteArrowIPC writes rows as a single-batch Arrow IPC stream file.
func WriteArrowIPC(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("manifest: create %s: %w", path, err)
	}
	defer file.Close()

	schema := ArrowSchema()
	w := ipc.NewWriter(file, ipc.WithSchema(schema))
	defer w.Close()

	batch := rowsToArrowBatch(rows, memory.NewGoAllocator())
	defer batch.Release()

	if err := w.Write(batch); err != nil {
		return fmt.Errorf("manifest: write arrow batch: %w", err)
	}
	return nil
}

func rowsToArrowBatch(rows []Row, mem memory.Allocator) array.Record {
	idBuilder := array.NewStringBuilder(mem)
	defer idBuilder.Release()

	imageBuilder := array.NewStringBuilder(mem)
	defer imageBuilder.Release()

	annotationBuilder := array.NewStringBuilder(mem)
	defer annotationBuilder.Release()

	widthBuilder := array.NewInt32Builder(mem)
	defer widthBuilder.Release()

	heightBuilder := array.NewInt32Builder(mem)
	defer heightBuilder.Release()

	numObjectsBuilder := array.NewInt32Builder(mem)
	defer numObjectsBuilder.Release()

	recordFileBuilder := array.NewStringBuilder(mem)
	defer recordFileBuilder.Release()

	recordBytesBuilder := array.NewInt64Builder(mem)
	defer recordBytesBuilder.Release()

	for _, row := range rows {
		idBuilder.Append(row.ExampleID)
		imageBuilder.Append(row.ImagePath)
		annotationBuilder.Append(row.AnnotationPath)
		widthBuilder.Append(row.Width)
		heightBuilder.Append(row.Height)
		numObjectsBuilder.Append(row.NumObjects)
		recordFileBuilder.Append(row.RecordFile)
		recordBytesBuilder.Append(row.RecordBytes)
	}

	idArr := idBuilder.NewArray()
	defer idArr.Release()

	imageArr := imageBuilder.NewArray()
	defer imageArr.Release()

	annotationArr := annotationBuilder.NewArray()
	defer annotationArr.Release()

	widthArr := widthBuilder.NewArray()
	defer widthArr.Release()

	heightArr := heightBuilder.NewArray()
	defer heightArr.Release()

	numObjectsArr := numObjectsBuilder.NewArray()
	defer numObjectsArr.Release()

	recordFileArr := recordFileBuilder.NewArray()
	defer recordFileArr.Release()

	recordBytesArr := recordBytesBuilder.NewArray()
	defer recordBytesArr.Release()

	cols := []array.Interface{idArr, imageArr, annotationArr, widthArr, heightArr, numObjectsArr, recordFileArr, recordBytesArr}
	return array.NewRecord(ArrowSchema(), cols, int64(len(rows)))
}

// ReadArrowIPC reads rows back from an Arrow IPC stream file.
func ReadArrowIPC(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer file.Close()

	r, err := ipc.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("manifest: create arrow reader: %w", err)
	}
	defer r.Release()

	var rows []Row
	for r.Next() {
		batch := r.Record()
		idCol := batch.Column(0).(*array.String)
		imageCol := batch.Column(1).(*array.String)
		annotationCol := batch.Column(2).(*array.String)
		widthCol := batch.Column(3).(*array.Int32)
		heightCol := batch.Column(4).(*array.Int32)
		numObjectsCol := batch.Column(5).(*array.Int32)
		recordFileCol := batch.Column(6).(*array.String)
		recordBytesCol := batch.Column(7).(*array.Int64)

		for i := 0; i < int(batch.NumRows()); i++ {
			rows = append(rows, Row{
				ExampleID:      idCol.Value(i),
				ImagePath:      imageCol.Value(i),
				AnnotationPath: annotationCol.Value(i),
				Width:          widthCol.Value(i),
				Height:         heightCol.Value(i),
				NumObjects:     numObjectsCol.Value(i),
				RecordFile:     recordFileCol.Value(i),
				RecordBytes:    recordBytesCol.Value(i),
			})
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("manifest: read arrow batches: %w", err)
	}
	return rows, nil
}
