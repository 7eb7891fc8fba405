package build

import (
	"fmt"
	"os"
	"strconv"

	"segdata/internal/manifest"
	"segdata/pkg/annotation"
	"segdata/pkg/feature"
)

// encodeExample reads one image and its annotation XML and produces the
// serialized training example plus its manifest row. Bounding box
// coordinates are normalized to [0,1] by the image dimensions.
func encodeExample(id, imagePath, annotationPath string) ([]byte, manifest.Row, error) {
	row := manifest.Row{
		ExampleID:      id,
		ImagePath:      imagePath,
		AnnotationPath: annotationPath,
	}

	img, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, row, fmt.Errorf("read image: %w", err)
	}

	parsed, err := annotation.ParseFile(annotationPath)
	if err != nil {
		return nil, row, err
	}
	body := rootBody(parsed)
	if body == nil {
		return nil, row, fmt.Errorf("annotation %s: empty document", annotationPath)
	}

	width, err := strconv.Atoi(annotation.Text(body, "size", "width"))
	if err != nil {
		return nil, row, fmt.Errorf("annotation %s: bad width: %w", annotationPath, err)
	}
	height, err := strconv.Atoi(annotation.Text(body, "size", "height"))
	if err != nil {
		return nil, row, fmt.Errorf("annotation %s: bad height: %w", annotationPath, err)
	}
	if width <= 0 || height <= 0 {
		return nil, row, fmt.Errorf("annotation %s: non-positive size %dx%d", annotationPath, width, height)
	}

	// Empty but non-nil so a zero-object example still carries tagged lists.
	classes := [][]byte{}
	xmins, ymins := []float32{}, []float32{}
	xmaxs, ymaxs := []float32{}, []float32{}
	objects := annotation.Objects(parsed)
	for i, obj := range objects {
		name := annotation.Text(obj, "name")
		if name == "" {
			return nil, row, fmt.Errorf("annotation %s: object %d has no name", annotationPath, i)
		}
		box, err := parseBox(obj, float32(width), float32(height))
		if err != nil {
			return nil, row, fmt.Errorf("annotation %s: object %d: %w", annotationPath, i, err)
		}
		classes = append(classes, []byte(name))
		xmins = append(xmins, box[0])
		ymins = append(ymins, box[1])
		xmaxs = append(xmaxs, box[2])
		ymaxs = append(ymaxs, box[3])
	}

	ex := feature.Example{
		"image/encoded":           feature.Bytes(img),
		"image/format":            feature.Bytes([]byte("jpeg")),
		"image/filename":          feature.Bytes([]byte(id)),
		"image/width":             feature.Int64(int64(width)),
		"image/height":            feature.Int64(int64(height)),
		"image/object/class/text": feature.BytesList(classes),
		"image/object/bbox/xmin":  feature.FloatList(xmins),
		"image/object/bbox/ymin":  feature.FloatList(ymins),
		"image/object/bbox/xmax":  feature.FloatList(xmaxs),
		"image/object/bbox/ymax":  feature.FloatList(ymaxs),
	}
	rec, err := ex.Marshal()
	if err != nil {
		return nil, row, err
	}

	row.Width = int32(width)
	row.Height = int32(height)
	row.NumObjects = int32(len(objects))
	row.RecordBytes = int64(len(rec))
	return rec, row, nil
}

// parseBox extracts a bndbox as [xmin, ymin, xmax, ymax] normalized to the
// image dimensions.
func parseBox(obj map[string]any, width, height float32) ([4]float32, error) {
	var box [4]float32
	keys := [4]string{"xmin", "ymin", "xmax", "ymax"}
	for i, k := range keys {
		raw := annotation.Text(obj, "bndbox", k)
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return box, fmt.Errorf("bad %s %q: %w", k, raw, err)
		}
		box[i] = float32(v)
	}
	box[0] /= width
	box[2] /= width
	box[1] /= height
	box[3] /= height
	return box, nil
}

// rootBody returns the body map beneath the root tag of a parsed
// annotation.
func rootBody(parsed map[string]any) map[string]any {
	for _, v := range parsed {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}
