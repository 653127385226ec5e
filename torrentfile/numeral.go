package torrentfile

import "math"

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// startsValue reports whether b can be the first byte of a value
func startsValue(b byte) bool {
	return isDigit(b) || b == 'i' || b == 'l' || b == 'd'
}

// accumulate appends one decimal digit to v. ok is false if the result would
// overflow an int64.
func accumulate(v int64, digit byte) (next int64, ok bool) {
	d := int64(digit - '0')
	if v > (math.MaxInt64-d)/10 {
		return v, false
	}
	return v*10 + d, true
}

// readLength decodes a <length>: prefix whose first digit has already been
// consumed. The cursor is left right after the colon.
func (p *parser) readLength(first byte) (int64, error) {
	if !isDigit(first) {
		return 0, p.errorf(ErrMalformedLength, "unexpected byte %q", first)
	}
	n := int64(first - '0')
	for {
		b, err := p.cur.Next()
		if err != nil {
			return 0, p.fail(err)
		}
		if b == ':' {
			return n, nil
		}
		if !isDigit(b) {
			return 0, p.errorf(ErrMalformedLength, "unexpected byte %q", b)
		}
		var ok bool
		if n, ok = accumulate(n, b); !ok {
			return 0, p.errorf(ErrMalformedLength, "length overflows")
		}
	}
}

// readInteger decodes an i<digits>e value for the current field. Anything
// other than a non-negative integer is ErrBadFieldType.
func (p *parser) readInteger() (int64, error) {
	b, err := p.cur.Next()
	if err != nil {
		return 0, p.fail(err)
	}
	if b != 'i' {
		return 0, p.errorf(ErrBadFieldType, "expected integer, got %q", b)
	}

	var n int64
	digits := 0
	for {
		b, err := p.cur.Next()
		if err != nil {
			return 0, p.fail(err)
		}
		if b == 'e' {
			break
		}
		if !isDigit(b) {
			return 0, p.errorf(ErrBadFieldType, "unexpected byte %q in integer", b)
		}
		var ok bool
		if n, ok = accumulate(n, b); !ok {
			return 0, p.errorf(ErrBadFieldType, "integer overflows")
		}
		digits++
	}
	if digits == 0 {
		return 0, p.errorf(ErrBadFieldType, "empty integer")
	}
	return n, nil
}

// readStringLength consumes the length prefix of a string value for the
// current field.
func (p *parser) readStringLength() (int64, error) {
	b, err := p.cur.Next()
	if err != nil {
		return 0, p.fail(err)
	}
	if !isDigit(b) {
		return 0, p.errorf(ErrBadFieldType, "expected string, got %q", b)
	}
	return p.readLength(b)
}
