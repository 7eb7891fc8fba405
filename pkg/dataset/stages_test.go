package dataset

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"
)

// sliceReader serves canned records per path for interleave tests.
func sliceReader(files map[string][][]byte) FileReadFunc {
	return func(path string) Stream[[]byte] {
		return FromSlice(files[path])
	}
}

func TestGlobNoMatches(t *testing.T) {
	files, err := Glob([]string{filepath.Join(t.TempDir(), "*.rec")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no matches, got %v", files)
	}
}

func TestGlobBadPattern(t *testing.T) {
	if _, err := Glob([]string{"[unclosed"}); err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestShardFilesPartition(t *testing.T) {
	files := make([]string, 10)
	for i := range files {
		files[i] = fmt.Sprintf("file-%02d", i)
	}

	for _, numShards := range []int{1, 2, 3, 4, 10, 13} {
		seen := make(map[string]int)
		for idx := 0; idx < numShards; idx++ {
			for _, f := range ShardFiles(files, numShards, idx) {
				seen[f]++
			}
		}
		if len(seen) != len(files) {
			t.Errorf("numShards=%d: union has %d files, expected %d", numShards, len(seen), len(files))
		}
		for f, n := range seen {
			if n != 1 {
				t.Errorf("numShards=%d: %s assigned to %d shards", numShards, f, n)
			}
		}
	}
}

func TestRepeatFinite(t *testing.T) {
	src := func() Stream[string] { return FromSlice([]string{"a", "b"}) }
	got, err := Collect(Repeat(src, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b", "a", "b", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestRepeatUnbounded(t *testing.T) {
	src := func() Stream[string] { return FromSlice([]string{"a", "b", "c"}) }
	got, err := Take(Repeat(src, 0), 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1000 {
		t.Fatalf("expected 1000 elements from unbounded repeat, got %d", len(got))
	}
	if got[999] != "a" {
		t.Errorf("element 999: expected a, got %q", got[999])
	}
}

func TestRepeatEmptySource(t *testing.T) {
	src := func() Stream[string] { return Empty[string]() }
	got, err := Collect(Repeat(src, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}

	for _, size := range []int{4, 100, 1000} {
		got, err := Collect(Shuffle(FromSlice(in), size, rand.New(rand.NewSource(7))))
		if err != nil {
			t.Fatalf("size=%d: unexpected error: %v", size, err)
		}
		if len(got) != len(in) {
			t.Fatalf("size=%d: expected %d elements, got %d", size, len(in), len(got))
		}
		sorted := append([]int(nil), got...)
		sort.Ints(sorted)
		for i := range sorted {
			if sorted[i] != i {
				t.Fatalf("size=%d: not a permutation: %v", size, sorted)
			}
		}
	}
}

func TestShuffleChangesOrder(t *testing.T) {
	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}
	got, err := Collect(Shuffle(FromSlice(in), 100, rand.New(rand.NewSource(7))))
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range in {
		if got[i] != in[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected shuffled order to differ from input")
	}
}

func TestShufflePassthroughSizeOne(t *testing.T) {
	got, err := Collect(Shuffle(FromSlice([]int{1, 2, 3}), 1, rand.New(rand.NewSource(1))))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []int{1, 2, 3} {
		if got[i] != v {
			t.Fatalf("expected passthrough order, got %v", got)
		}
	}
}

func TestInterleaveRoundRobin(t *testing.T) {
	readFn := sliceReader(map[string][][]byte{
		"f1": {[]byte("a1"), []byte("a2"), []byte("a3")},
		"f2": {[]byte("b1"), []byte("b2")},
	})
	got, err := Collect(Interleave(FromSlice([]string{"f1", "f2"}), readFn, 2))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a1", "b1", "a2", "b2", "a3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("record %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestInterleaveCycleOneIsSequential(t *testing.T) {
	readFn := sliceReader(map[string][][]byte{
		"f1": {[]byte("a1"), []byte("a2")},
		"f2": {[]byte("b1")},
	})
	got, err := Collect(Interleave(FromSlice([]string{"f1", "f2"}), readFn, 1))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a1", "a2", "b1"}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Fatalf("expected sequential order %v, got %v", want, got)
		}
	}
}

func TestInterleaveWideCycleVisitsAllFiles(t *testing.T) {
	files := map[string][][]byte{}
	var names []string
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("f%d", i)
		names = append(names, name)
		files[name] = [][]byte{[]byte(name)}
	}
	got, err := Collect(Interleave(FromSlice(names), sliceReader(files), 8))
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, rec := range got {
		seen[string(rec)] = true
	}
	for _, name := range names {
		if !seen[name] {
			t.Errorf("file %s never visited", name)
		}
	}
}

func TestInterleavePropagatesReadError(t *testing.T) {
	readErr := fmt.Errorf("disk gone")
	readFn := func(path string) Stream[[]byte] {
		return StreamFunc[[]byte](func() ([]byte, error) { return nil, readErr })
	}
	_, err := Collect(Interleave(FromSlice([]string{"f1"}), readFn, 2))
	if err != readErr {
		t.Fatalf("expected read error to propagate, got %v", err)
	}
}

func TestTakeStopsAtEOF(t *testing.T) {
	got, err := Take(FromSlice([]int{1, 2}), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 elements, got %d", len(got))
	}
}

func TestCollectPropagatesError(t *testing.T) {
	boom := fmt.Errorf("boom")
	n := 0
	s := StreamFunc[int](func() (int, error) {
		n++
		if n > 2 {
			return 0, boom
		}
		return n, nil
	})
	got, err := Collect(s)
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 elements before the error, got %d", len(got))
	}
}
