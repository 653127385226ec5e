package torrentfile

import (
	"errors"
	"fmt"
)

// ErrInfoNotFound is returned when the stream holds no top level dictionary
// with an info key. It is the only error from Decode that is not fatal.
var ErrInfoNotFound = errors.New("no info dictionary in metainfo")

var (
	ErrMalformedLength      = errors.New("malformed length prefix")
	ErrMalformedDictionary  = errors.New("malformed dictionary")
	ErrTruncatedStream      = errors.New("truncated stream")
	ErrInfoNotADictionary   = errors.New("info is not a dictionary")
	ErrBadFieldType         = errors.New("unexpected value type")
	ErrNameTooLong          = errors.New("name too long")
	ErrInvalidSegmentSize   = errors.New("piece length must be a power of two")
	ErrBadDigestTableLength = errors.New("pieces length must be a positive multiple of 20")
	ErrUnknownInfoKey       = errors.New("unknown info key")
	ErrIncompleteDescriptor = errors.New("info dictionary is missing fields")
)

// FormatError reports a fatal problem with the metainfo encoding and where it
// was found. Err is always one of the sentinel errors above.
type FormatError struct {
	Err    error
	Field  string // info key being decoded, empty outside the info dictionary
	Offset int64  // stream offset of the byte that triggered the error
	Detail string
}

func (e *FormatError) Error() string {
	msg := e.Err.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Field)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return fmt.Sprintf("metainfo: %s at offset %d", msg, e.Offset)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IsFatal reports whether err means the metainfo cannot be trusted. A missing
// info section is not fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrInfoNotFound)
}
