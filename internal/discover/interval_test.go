package discover

import (
	"reflect"
	"testing"
)

func TestSplitChunks(t *testing.T) {
	iv := BlockInterval{Start: 100, End: 105}
	got, err := iv.SplitChunks(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockInterval{
		{Start: 100, End: 101},
		{Start: 102, End: 103},
		{Start: 104, End: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("chunks mismatch: %+v != %+v", got, want)
	}
}

func TestSplitChunksSingle(t *testing.T) {
	iv := BlockInterval{Start: 5, End: 5}
	got, err := iv.SplitChunks(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockInterval{{Start: 5, End: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("chunks mismatch: %+v != %+v", got, want)
	}
}

func TestSplitChunksZeroSize(t *testing.T) {
	iv := BlockInterval{Start: 1, End: 10}
	if _, err := iv.SplitChunks(0); err == nil {
		t.Fatalf("expected error for zero chunk size")
	}
}

func TestNewBlockIntervalInvalid(t *testing.T) {
	if _, err := NewBlockInterval(10, 9); err == nil {
		t.Fatalf("expected error for inverted interval")
	}
}

func TestSplitMid(t *testing.T) {
	left, right := BlockInterval{Start: 0, End: 9}.SplitMid()
	if left.Start != 0 || left.End != 4 || right.Start != 5 || right.End != 9 {
		t.Fatalf("split mismatch: %+v %+v", left, right)
	}

	left, right = BlockInterval{Start: 7, End: 8}.SplitMid()
	if left.Start != 7 || left.End != 7 || right.Start != 8 || right.End != 8 {
		t.Fatalf("two-block split mismatch: %+v %+v", left, right)
	}
}
