package reduce

import (
	"errors"
	"fmt"

	"domain-market-indexer/internal/domain"
)

// MissingParentError reports a dependent event whose required parent
// entity has never been seen. The event is skipped, never retried or
// buffered: delivering parents before children is the delivery layer's
// contract, and a gap should be loud, not papered over with fabricated
// placeholder rows.
type MissingParentError struct {
	Entity string
	Key    string
	Reason string
}

func (e *MissingParentError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("missing parent %s %q: %s", e.Entity, e.Key, e.Reason)
	}
	return fmt.Sprintf("missing parent %s %q", e.Entity, e.Key)
}

// IsMissingParent reports whether err is a MissingParentError.
func IsMissingParent(err error) bool {
	var mp *MissingParentError
	return errors.As(err, &mp)
}

// IsDecodeError reports whether err is a malformed-payload error.
func IsDecodeError(err error) bool {
	var de *domain.DecodeError
	return errors.As(err, &de)
}
