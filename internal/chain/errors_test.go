package chain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyFilterError(t *testing.T) {
	err := classifyFilterError(100, 200, errors.New("query returned more than 10000 results"))
	if !IsRangeTooLarge(err) {
		t.Fatalf("expected range-too-large classification, got %v", err)
	}

	var rangeErr *RangeTooLargeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected *RangeTooLargeError")
	}
	if rangeErr.From != 100 || rangeErr.To != 200 {
		t.Fatalf("range mismatch: [%d,%d]", rangeErr.From, rangeErr.To)
	}
}

func TestClassifyFilterErrorPassthrough(t *testing.T) {
	original := errors.New("connection reset by peer")
	err := classifyFilterError(1, 2, original)
	if IsRangeTooLarge(err) {
		t.Fatalf("network error should not classify as range error")
	}
	if !errors.Is(err, original) {
		t.Fatalf("error identity lost")
	}
}

func TestIsRangeTooLargeWrapped(t *testing.T) {
	inner := &RangeTooLargeError{From: 5, To: 10, Err: errors.New("block range is too wide")}
	wrapped := fmt.Errorf("probe [5,10]: %w", inner)
	if !IsRangeTooLarge(wrapped) {
		t.Fatalf("wrapped range error not detected")
	}
}
