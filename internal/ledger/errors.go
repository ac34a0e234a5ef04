package ledger

import (
	"errors"
	"fmt"
)

// Kind tags every error the ledger can surface, so callers branch on the
// taxonomy instead of matching message strings.
type Kind int

const (
	// KindBadRequest covers malformed envelopes/payloads, missing encryption
	// material, no open lots, and insufficient lots. Client-correctable,
	// never retried by the ledger.
	KindBadRequest Kind = iota + 1
	// KindLotSelectionFailed covers selector failures other than plain
	// insufficiency.
	KindLotSelectionFailed
	// KindDatabaseError covers persistence failures. Logged with full detail
	// internally, surfaced opaquely.
	KindDatabaseError
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "BadRequest"
	case KindLotSelectionFailed:
		return "LotSelectionFailed"
	case KindDatabaseError:
		return "DatabaseError"
	}
	return "Unknown"
}

// Error is a tagged ledger error. Message is safe for callers; Err carries
// the underlying cause for internal logging only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequestf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func lotSelectionFailedf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindLotSelectionFailed, Message: fmt.Sprintf(format, args...)}
}

func databaseErrorf(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindDatabaseError, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the tag of a ledger error, or 0 for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
