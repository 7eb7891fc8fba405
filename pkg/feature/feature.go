// Package feature builds the tagged feature values that make up a training
// example. Each Feature carries exactly one of three list payloads; the
// serialized byte layout is owned by msgpack, not by this package.
package feature

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Feature is a tagged union value. Exactly one of the three lists is
// populated; the others stay nil and are omitted from the encoding.
type Feature struct {
	Int64List []int64   `msgpack:"int64_list,omitempty"`
	BytesList [][]byte  `msgpack:"bytes_list,omitempty"`
	FloatList []float32 `msgpack:"float_list,omitempty"`
}

// Kind identifies which branch of the union a Feature carries.
type Kind int

const (
	KindNone Kind = iota
	KindInt64
	KindBytes
	KindFloat
)

// ErrEmptyFeature is returned when an example contains a Feature with no
// populated branch.
var ErrEmptyFeature = errors.New("feature: no list populated")

// Int64 wraps a single integer in an int64-list feature.
func Int64(v int64) Feature {
	return Feature{Int64List: []int64{v}}
}

// Int64List wraps a list of integers in an int64-list feature.
func Int64List(vs []int64) Feature {
	return Feature{Int64List: vs}
}

// Bytes wraps a single byte string in a bytes-list feature.
func Bytes(v []byte) Feature {
	return Feature{BytesList: [][]byte{v}}
}

// BytesList wraps a list of byte strings in a bytes-list feature.
func BytesList(vs [][]byte) Feature {
	return Feature{BytesList: vs}
}

// FloatList wraps a list of floats in a float-list feature.
func FloatList(vs []float32) Feature {
	return Feature{FloatList: vs}
}

// Kind reports which branch of the union is set. A Feature with more than
// one branch set reports the first in int64/bytes/float order.
func (f Feature) Kind() Kind {
	switch {
	case f.Int64List != nil:
		return KindInt64
	case f.BytesList != nil:
		return KindBytes
	case f.FloatList != nil:
		return KindFloat
	}
	return KindNone
}

// Len returns the number of values in the populated branch.
func (f Feature) Len() int {
	switch f.Kind() {
	case KindInt64:
		return len(f.Int64List)
	case KindBytes:
		return len(f.BytesList)
	case KindFloat:
		return len(f.FloatList)
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64_list"
	case KindBytes:
		return "bytes_list"
	case KindFloat:
		return "float_list"
	}
	return "none"
}

// Example is one training record: a named map of feature values.
type Example map[string]Feature

// Marshal serializes the example. Every feature must have a populated
// branch; type errors beyond that surface from msgpack unmodified.
func (e Example) Marshal() ([]byte, error) {
	for name, f := range e {
		if f.Kind() == KindNone {
			return nil, fmt.Errorf("feature %q: %w", name, ErrEmptyFeature)
		}
	}
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("feature: marshal example: %w", err)
	}
	return data, nil
}

// UnmarshalExample decodes a serialized example.
func UnmarshalExample(data []byte) (Example, error) {
	var e Example
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("feature: unmarshal example: %w", err)
	}
	return e, nil
}
