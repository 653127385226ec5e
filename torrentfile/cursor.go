package torrentfile

import (
	"bufio"
	"io"
)

// Cursor is a forward only view of a byte stream. Every byte consumed,
// including skipped ones, can be mirrored to a tap writer.
type Cursor struct {
	r   *bufio.Reader
	off int64
	tap io.Writer
}

// NewCursor buffers r. A *bufio.Reader is used as is.
func NewCursor(r io.Reader) *Cursor {
	return &Cursor{r: bufio.NewReader(r)}
}

// Offset is the number of bytes consumed so far
func (c *Cursor) Offset() int64 { return c.off }

// Tap mirrors consumed bytes into w until Tap(nil) is called.
func (c *Cursor) Tap(w io.Writer) { c.tap = w }

// Peek returns the next byte without consuming it. io.EOF is returned at the
// end of the stream.
func (c *Cursor) Peek() (byte, error) {
	b, err := c.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Next consumes one byte
func (c *Cursor) Next() (byte, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, err
	}
	c.off++
	if c.tap != nil {
		if _, err := c.tap.Write([]byte{b}); err != nil {
			return 0, err
		}
	}
	return b, nil
}

// ReadFull consumes exactly len(buf) bytes into buf. A short stream yields
// io.ErrUnexpectedEOF (or io.EOF if nothing was left).
func (c *Cursor) ReadFull(buf []byte) error {
	n, err := io.ReadFull(c.r, buf)
	c.off += int64(n)
	if c.tap != nil && n > 0 {
		if _, werr := c.tap.Write(buf[:n]); werr != nil {
			return werr
		}
	}
	return err
}

// Skip moves forward n bytes without keeping them.
func (c *Cursor) Skip(n int64) error {
	if c.tap != nil {
		written, err := io.CopyN(c.tap, c.r, n)
		c.off += written
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	const chunk = 1 << 20
	for n > 0 {
		step := n
		if step > chunk {
			step = chunk
		}
		discarded, err := c.r.Discard(int(step))
		c.off += int64(discarded)
		n -= int64(discarded)
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}
