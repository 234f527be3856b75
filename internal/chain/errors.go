package chain

import (
	"errors"
	"fmt"
	"strings"
)

// RangeTooLargeError signals that a log query exceeded the provider's
// span or result limits and is recoverable by subdividing the range.
type RangeTooLargeError struct {
	From uint64
	To   uint64
	Err  error
}

func (e *RangeTooLargeError) Error() string {
	return fmt.Sprintf("log query range [%d,%d] too large: %v", e.From, e.To, e.Err)
}

func (e *RangeTooLargeError) Unwrap() error { return e.Err }

// IsRangeTooLarge reports whether err carries a range-size violation.
func IsRangeTooLarge(err error) bool {
	var target *RangeTooLargeError
	return errors.As(err, &target)
}

// rangeLimitFragments are known provider phrasings for a span or result
// cap violation. Providers word this differently, so matching happens
// only here at the RPC boundary; everything above sees the structured
// error type.
var rangeLimitFragments = []string{
	"query returned more than",
	"block range is too wide",
	"exceed maximum block range",
	"range too large",
	"range is too large",
	"response size exceeded",
	"logs matched by query exceeds limit",
	"requested too many blocks",
}

func classifyFilterError(from, to uint64, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range rangeLimitFragments {
		if strings.Contains(msg, fragment) {
			return &RangeTooLargeError{From: from, To: to, Err: err}
		}
	}
	return err
}
