package bitfield

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Squwid/squidcheck/torrentfile"
	"github.com/Squwid/squidcheck/util"
	"github.com/sirupsen/logrus"
)

// ErrFileShorter means the local file ends before the last piece starts
var ErrFileShorter = errors.New("local file is shorter than the descriptor")

// VerifyFile hashes the file at path against the descriptor
func VerifyFile(d *torrentfile.Descriptor, path string, l *logrus.Entry) (*Bitfield, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if l != nil {
		l = l.WithField("File", path)
	}
	return Verify(d, file, info.Size(), l)
}

// Verify reads size bytes of r piece by piece and marks every piece whose hash
// matches the descriptor. A mismatch only leaves the piece unset.
func Verify(d *torrentfile.Descriptor, r io.Reader, size int64, l *logrus.Entry) (*Bitfield, error) {
	l = util.Logger(l)

	n := d.NumPieces()
	bf := New(n)
	if n == 0 {
		return bf, nil
	}
	if d.PieceLength <= 0 {
		return nil, fmt.Errorf("invalid piece length %v", d.PieceLength)
	}

	// Every piece but the last has to be there in full
	if full := int64(n - 1); full > (size / d.PieceLength) {
		return nil, fmt.Errorf("%w: %v bytes, %v pieces of %v bytes", ErrFileShorter, size, n, d.PieceLength)
	}
	if size != d.Length {
		l.WithFields(logrus.Fields{
			"Size":   util.FormatBytes(int(size)),
			"Length": util.FormatBytes(int(d.Length)),
		}).Warnf("Local file size differs from descriptor length")
	}

	l.Debugf("Comparing piece hashes on record with the local file")
	// No window is larger than the file itself
	bufSize := d.PieceLength
	if size < bufSize {
		bufSize = size
	}
	buf := make([]byte, bufSize)
	for i := 0; i < n; i++ {
		length := pieceSize(d.PieceLength, n, size, i)
		if _, err := io.ReadFull(r, buf[:length]); err != nil {
			return nil, fmt.Errorf("reading piece %v: %w", i, err)
		}

		hash := sha1.Sum(buf[:length])
		want := d.PieceHash(i)
		ok := bytes.Equal(hash[:], want[:])
		if ok {
			bf.SetPiece(i)
		}
		l.WithFields(logrus.Fields{
			"Piece":    i,
			"Local":    torrentfile.Digest(hash).String(),
			"Recorded": want.String(),
			"Match":    ok,
		}).Debugf("Checked piece")
	}

	l.WithFields(logrus.Fields{
		"Have":         bf.Count(),
		"Total Pieces": n,
	}).Debugf("Bitfield %v", bf)
	return bf, nil
}

// pieceSize is the window of piece index in a file of size bytes. All pieces
// are full except the last, which gets what is left up to one piece.
func pieceSize(pieceLength int64, numPieces int, size int64, index int) int64 {
	if index < numPieces-1 {
		return pieceLength
	}
	rest := size - pieceLength*int64(index)
	if rest > pieceLength {
		rest = pieceLength
	}
	return rest
}
