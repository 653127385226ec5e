package torrentfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Squwid/squidcheck/util"
	"github.com/sirupsen/logrus"
)

// Options controls how an info dictionary is extracted.
type Options struct {
	// Logger receives progress lines at debug level. Nil discards them.
	Logger *logrus.Entry

	// SkipUnknownKeys skips info keys other than length, name, piece length
	// and pieces instead of failing with ErrUnknownInfoKey.
	SkipUnknownKeys bool
}

// parser is the state of a single Decode call.
type parser struct {
	cur     *Cursor
	l       *logrus.Entry
	lenient bool

	// field is the info key whose value is being decoded, for error reports
	field string
}

// Open reads the descriptor from the metainfo file at path
func Open(path string, opts Options) (*Descriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	opts.Logger = util.Logger(opts.Logger)
	opts.Logger.WithField("File", path).Debugf("Parsing metainfo file")
	return Decode(file, opts)
}

// Decode scans r for the top level info dictionary and extracts the descriptor
// from it. ErrInfoNotFound is returned when there is none.
func Decode(r io.Reader, opts Options) (*Descriptor, error) {
	p := &parser{
		cur:     NewCursor(r),
		l:       util.Logger(opts.Logger),
		lenient: opts.SkipUnknownKeys,
	}
	return p.scan()
}

// scan walks the outermost level of the stream. Dictionaries are searched for
// an info key, everything else is skipped.
func (p *parser) scan() (*Descriptor, error) {
	for {
		b, err := p.cur.Peek()
		if err == io.EOF {
			return nil, ErrInfoNotFound
		}
		if err != nil {
			return nil, p.fail(err)
		}

		if b != 'd' {
			if !startsValue(b) {
				// Stray bytes between top level values are stepped over
				if _, err := p.cur.Next(); err != nil {
					return nil, p.fail(err)
				}
				continue
			}
			if err := p.skipValue(); err != nil {
				return nil, err
			}
			continue
		}

		if _, err := p.cur.Next(); err != nil {
			return nil, p.fail(err)
		}
		for {
			b, err := p.cur.Next()
			if err != nil {
				return nil, p.fail(err)
			}
			if b == 'e' {
				break
			}
			if !isDigit(b) {
				return nil, p.errorf(ErrMalformedDictionary, "key must be a string, got %q", b)
			}

			n, err := p.readLength(b)
			if err != nil {
				return nil, err
			}
			isInfo, err := p.keyEquals(n, "info")
			if err != nil {
				return nil, err
			}
			if err := p.expectValue(); err != nil {
				return nil, err
			}

			if isInfo {
				return p.extractInfo()
			}
			if err := p.skipValue(); err != nil {
				return nil, err
			}
		}
	}
}

// keyEquals consumes a key of length n and reports whether it is lit. Keys of
// any other length are skipped without being stored.
func (p *parser) keyEquals(n int64, lit string) (bool, error) {
	if n != int64(len(lit)) {
		if err := p.cur.Skip(n); err != nil {
			return false, p.fail(err)
		}
		return false, nil
	}
	buf := make([]byte, n)
	if err := p.cur.ReadFull(buf); err != nil {
		return false, p.fail(err)
	}
	return string(buf) == lit, nil
}

// expectValue checks that a dictionary key is followed by a value.
func (p *parser) expectValue() error {
	b, err := p.cur.Peek()
	if err == io.EOF || (err == nil && b == 'e') {
		return p.errorf(ErrMalformedDictionary, "key without a value")
	}
	if err != nil {
		return p.fail(err)
	}
	return nil
}

func (p *parser) errorf(kind error, format string, args ...interface{}) error {
	return &FormatError{
		Err:    kind,
		Field:  p.field,
		Offset: p.cur.Offset(),
		Detail: fmt.Sprintf(format, args...),
	}
}

// fail converts an error from the cursor. Running out of bytes is a truncated
// stream, anything else is an I/O failure passed through.
func (p *parser) fail(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &FormatError{Err: ErrTruncatedStream, Field: p.field, Offset: p.cur.Offset()}
	}
	var fe *FormatError
	if errors.As(err, &fe) {
		return err
	}
	return fmt.Errorf("read metainfo: %w", err)
}
