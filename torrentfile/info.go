package torrentfile

import (
	"crypto/sha1"
	"fmt"
	"strings"

	"github.com/Squwid/squidcheck/util"
	"github.com/sirupsen/logrus"
)

// MaxNameLength bounds the name field
const MaxNameLength = 1024

// maxKeyLength bounds info keys that are kept for comparison and error
// messages. Longer keys cannot be one of the known ones.
const maxKeyLength = 256

const (
	keyLength      = "length"
	keyName        = "name"
	keyPieceLength = "piece length"
	keyPieces      = "pieces"
)

type infoFields uint8

const (
	hasLength infoFields = 1 << iota
	hasName
	hasPieceLength
	hasPieces
	hasAll = hasLength | hasName | hasPieceLength | hasPieces
)

// extractInfo decodes the info dictionary starting at the cursor. The raw bytes
// of the dictionary are hashed into the descriptor's info hash.
func (p *parser) extractInfo() (*Descriptor, error) {
	p.field = "info"
	defer func() { p.field = "" }()

	b, err := p.cur.Peek()
	if err != nil {
		return nil, p.fail(err)
	}
	if b != 'd' {
		return nil, p.errorf(ErrInfoNotADictionary, "got %q", b)
	}

	hash := sha1.New()
	p.cur.Tap(hash)
	defer p.cur.Tap(nil)
	if _, err := p.cur.Next(); err != nil {
		return nil, p.fail(err)
	}

	var d Descriptor
	var seen infoFields
	for {
		p.field = "info"
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

		key, err := p.readKey(b)
		if err != nil {
			return nil, err
		}
		p.field = key
		if err := p.expectValue(); err != nil {
			return nil, err
		}

		var field infoFields
		switch key {
		case keyLength:
			field = hasLength
			err = p.decodeLength(&d)
		case keyName:
			field = hasName
			err = p.decodeName(&d)
		case keyPieceLength:
			field = hasPieceLength
			err = p.decodePieceLength(&d)
		case keyPieces:
			field = hasPieces
			err = p.decodePieces(&d)
		default:
			if !p.lenient {
				return nil, p.errorf(ErrUnknownInfoKey, "")
			}
			p.l.WithField("Key", key).Debugf("Skipping unknown info key")
			err = p.skipValue()
		}
		if err != nil {
			return nil, err
		}

		if seen&field != 0 {
			p.l.WithField("Key", key).Warnf("Duplicate info key, keeping the last value")
		}
		seen |= field
	}

	if seen != hasAll {
		p.field = "info"
		return nil, p.errorf(ErrIncompleteDescriptor, "missing %s", strings.Join(missing(seen), ", "))
	}
	copy(d.InfoHash[:], hash.Sum(nil))

	if want := expectedPieces(d.Length, d.PieceLength); want != int64(len(d.PieceHashes)) {
		p.l.WithFields(logrus.Fields{
			"Pieces":   len(d.PieceHashes),
			"Expected": want,
		}).Warnf("Piece count does not match length")
	}
	return &d, nil
}

// readKey consumes a dictionary key whose first length digit is b.
func (p *parser) readKey(b byte) (string, error) {
	n, err := p.readLength(b)
	if err != nil {
		return "", err
	}
	if n > maxKeyLength {
		if err := p.cur.Skip(n); err != nil {
			return "", p.fail(err)
		}
		return fmt.Sprintf("<%d byte key>", n), nil
	}
	buf := make([]byte, n)
	if err := p.cur.ReadFull(buf); err != nil {
		return "", p.fail(err)
	}
	return string(buf), nil
}

func (p *parser) decodeLength(d *Descriptor) error {
	n, err := p.readInteger()
	if err != nil {
		return err
	}
	d.Length = n
	p.l.WithField("Length", util.FormatBytes(int(n))).Debugf("Size of file to be downloaded: %d bytes", n)
	return nil
}

func (p *parser) decodeName(d *Descriptor) error {
	n, err := p.readStringLength()
	if err != nil {
		return err
	}
	if n > MaxNameLength {
		return p.errorf(ErrNameTooLong, "%d bytes, limit is %d", n, MaxNameLength)
	}
	buf := make([]byte, n)
	if err := p.cur.ReadFull(buf); err != nil {
		return p.fail(err)
	}
	d.Name = string(buf)
	p.l.WithField("Name", d.Name).Debugf("Suggested file name")
	return nil
}

func (p *parser) decodePieceLength(d *Descriptor) error {
	n, err := p.readInteger()
	if err != nil {
		return err
	}
	if !isPowerOfTwo(n) {
		return p.errorf(ErrInvalidSegmentSize, "got %d", n)
	}
	d.PieceLength = n
	p.l.WithField("Piece Length", util.FormatBytes(int(n))).Debugf("Size of a piece: %d bytes", n)
	return nil
}

func (p *parser) decodePieces(d *Descriptor) error {
	n, err := p.readStringLength()
	if err != nil {
		return err
	}
	if n == 0 || n%DigestSize != 0 {
		return p.errorf(ErrBadDigestTableLength, "got %d bytes", n)
	}

	count := n / DigestSize
	p.l.WithField("Pieces", count).Debugf("Number of pieces the file is divided into")

	// Grow with the data actually read rather than trusting the declared size
	capacity := count
	if capacity > 4096 {
		capacity = 4096
	}
	hashes := make([]Digest, 0, capacity)
	for i := int64(0); i < count; i++ {
		var h Digest
		if err := p.cur.ReadFull(h[:]); err != nil {
			return p.fail(err)
		}
		hashes = append(hashes, h)
		p.l.WithFields(logrus.Fields{"Piece": i, "Hash": h.String()}).Debugf("Piece hash")
	}
	d.PieceHashes = hashes
	return nil
}

// isPowerOfTwo reports whether n is 1, 2, 4, 8...
func isPowerOfTwo(n int64) bool {
	return n > 0 && n&(n-1) == 0
}

func expectedPieces(length, pieceLength int64) int64 {
	if pieceLength <= 0 {
		return 0
	}
	n := length / pieceLength
	if length%pieceLength != 0 {
		n++
	}
	return n
}

func missing(seen infoFields) []string {
	var keys []string
	for _, f := range []struct {
		bit infoFields
		key string
	}{
		{hasLength, keyLength},
		{hasName, keyName},
		{hasPieceLength, keyPieceLength},
		{hasPieces, keyPieces},
	} {
		if seen&f.bit == 0 {
			keys = append(keys, f.key)
		}
	}
	return keys
}
