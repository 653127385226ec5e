package torrentfile

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"io"

	"github.com/jackpal/bencode-go"
)

// CreatedBy is written into metainfo files made by Create
const CreatedBy = "squidcheck"

var errEmptyInput = errors.New("cannot create metainfo for an empty file")

type bencodeTorrent struct {
	Announce  string      `bencode:"announce"`
	CreatedBy string      `bencode:"created by"`
	Info      bencodeInfo `bencode:"info"`
}

// Create hashes r piece by piece and writes a single file metainfo document
// describing it to w.
func Create(w io.Writer, r io.Reader, name string, pieceLength int64, announce string) (*Descriptor, error) {
	if !isPowerOfTwo(pieceLength) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSegmentSize, pieceLength)
	}
	if len(name) > MaxNameLength {
		return nil, ErrNameTooLong
	}

	d := Descriptor{Name: name, PieceLength: pieceLength}
	for {
		h := sha1.New()
		n, err := io.CopyN(h, r, pieceLength)
		if n > 0 {
			var sum Digest
			copy(sum[:], h.Sum(nil))
			d.PieceHashes = append(d.PieceHashes, sum)
			d.Length += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if d.Length == 0 {
		return nil, errEmptyInput
	}

	hash, err := d.hash()
	if err != nil {
		return nil, err
	}
	d.InfoHash = hash

	bto := bencodeTorrent{
		Announce:  announce,
		CreatedBy: CreatedBy,
		Info:      d.bencodeInfo(),
	}
	if err := bencode.Marshal(w, bto); err != nil {
		return nil, err
	}
	return &d, nil
}
