package torrentfile

import (
	"crypto/sha1"
	"encoding/hex"
	"path"
	"strings"
	"unicode"

	"github.com/zeebo/bencode"
)

// DigestSize is the size of one piece hash
const DigestSize = sha1.Size

// Digest is the SHA-1 of one piece
type Digest [DigestSize]byte

// String is the 40 character hex form used in logs
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Descriptor is what the info dictionary of a metainfo file says about the
// file being shared.
type Descriptor struct {
	Name        string
	PieceLength int64
	Length      int64
	PieceHashes []Digest

	// InfoHash is the SHA-1 of the info dictionary exactly as it was read
	InfoHash [20]byte
}

type bencodeInfo struct {
	Length      int64  `bencode:"length"`
	Name        string `bencode:"name"`
	PieceLength int64  `bencode:"piece length"`
	Pieces      string `bencode:"pieces"`
}

// NumPieces is the number of pieces, which follows the size of the hash table.
func (d *Descriptor) NumPieces() int { return len(d.PieceHashes) }

// PieceHash returns the declared hash of the piece at index
func (d *Descriptor) PieceHash(index int) Digest { return d.PieceHashes[index] }

// Path is the name made safe to use as a local file name.
func (d *Descriptor) Path() string {
	if d.Name == "" {
		return hex.EncodeToString(d.InfoHash[:])
	}
	return clean(d.Name)
}

func (d *Descriptor) bencodeInfo() bencodeInfo {
	pieces := make([]byte, 0, len(d.PieceHashes)*DigestSize)
	for _, h := range d.PieceHashes {
		pieces = append(pieces, h[:]...)
	}
	return bencodeInfo{
		Length:      d.Length,
		Name:        d.Name,
		PieceLength: d.PieceLength,
		Pieces:      string(pieces),
	}
}

// MarshalInfo encodes the four descriptor fields as an info dictionary.
func (d *Descriptor) MarshalInfo() ([]byte, error) {
	return bencode.EncodeBytes(d.bencodeInfo())
}

func (d *Descriptor) hash() ([20]byte, error) {
	bs, err := d.MarshalInfo()
	if err != nil {
		return [20]byte{}, err
	}
	return sha1.Sum(bs), nil
}

func clean(s string, max ...int) string {
	// Trim file name to corrent length while keeping the extension
	trim := func(s string, max int) string {
		if len(s) <= max {
			return s
		}

		ext := path.Ext(s)
		if len(ext) > max {
			return s[:max]
		}

		return s[:max-len(ext)] + ext
	}

	replaceSep := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == '/' || r == 0 {
				return '_'
			}
			return r
		}, s)
	}

	var maxLength = 255
	if len(max) > 0 {
		maxLength = max[0]
	}
	s = strings.ToValidUTF8(s, string(unicode.ReplacementChar))
	s = trim(s, maxLength)
	s = strings.ToValidUTF8(s, "")

	s = replaceSep(s)
	if s == "." || s == ".." {
		s = strings.Repeat("_", len(s))
	}
	return s
}
