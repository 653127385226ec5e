package torrentfile

import "io"

// container is an open list or dictionary while skipping.
type container struct {
	dict bool
	key  bool // next element of a dictionary is a key
}

// skipValue consumes one complete value starting at the cursor, however deeply
// nested, without storing any of it.
func (p *parser) skipValue() error {
	var open []container

	// done marks one element of the innermost container as finished.
	done := func() {
		if top := len(open) - 1; top >= 0 && open[top].dict {
			open[top].key = !open[top].key
		}
	}

	for {
		b, err := p.cur.Next()
		if err != nil {
			if err == io.EOF && len(open) > 0 && open[len(open)-1].dict && !open[len(open)-1].key {
				return p.errorf(ErrMalformedDictionary, "key without a value")
			}
			return p.fail(err)
		}

		if top := len(open) - 1; top >= 0 {
			if b == 'e' {
				if open[top].dict && !open[top].key {
					return p.errorf(ErrMalformedDictionary, "key without a value")
				}
				open = open[:top]
				if len(open) == 0 {
					return nil
				}
				done()
				continue
			}
			if open[top].dict && open[top].key && !isDigit(b) {
				return p.errorf(ErrMalformedDictionary, "key must be a string, got %q", b)
			}
		}

		switch {
		case b == 'i':
			if err := p.skipInteger(); err != nil {
				return err
			}
		case b == 'l':
			open = append(open, container{})
			continue
		case b == 'd':
			open = append(open, container{dict: true, key: true})
			continue
		default:
			n, err := p.readLength(b)
			if err != nil {
				return err
			}
			if err := p.cur.Skip(n); err != nil {
				return p.fail(err)
			}
		}

		if len(open) == 0 {
			return nil
		}
		done()
	}
}

// skipInteger consumes the rest of an integer after its 'i'.
func (p *parser) skipInteger() error {
	for {
		b, err := p.cur.Next()
		if err != nil {
			return p.fail(err)
		}
		if b == 'e' {
			return nil
		}
	}
}
