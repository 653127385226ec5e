package bitfield

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Squwid/squidcheck/torrentfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitfield(t *testing.T) {
	bf := New(10)
	assert.Equal(t, 10, bf.Len())
	assert.Equal(t, "0000000000", bf.String())

	bf.SetPiece(0)
	bf.SetPiece(4)
	bf.SetPiece(9)
	bf.SetPiece(10)
	bf.SetPiece(-1)

	assert.True(t, bf.HasPiece(4))
	assert.False(t, bf.HasPiece(5))
	assert.False(t, bf.HasPiece(10))
	assert.False(t, bf.HasPiece(-1))
	assert.Equal(t, 3, bf.Count())
	assert.False(t, bf.Complete())
	assert.Equal(t, "1000100001", bf.String())
	assert.Equal(t, []byte{0x88, 0x40}, bf.Bytes())
}

func TestFromBytes(t *testing.T) {
	tests := map[string]struct {
		buf    []byte
		n      int
		output string
		fails  bool
	}{
		"exact byte":    {buf: []byte{0xff}, n: 8, output: "11111111"},
		"padded":        {buf: []byte{0x88, 0x40}, n: 10, output: "1000100001"},
		"empty":         {buf: []byte{}, n: 0, output: ""},
		"spare bit set": {buf: []byte{0x88, 0x41}, n: 10, fails: true},
		"too short":     {buf: []byte{0x88}, n: 10, fails: true},
		"too long":      {buf: []byte{0x88, 0x00, 0x00}, n: 10, fails: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			bf, err := FromBytes(test.buf, test.n)
			if test.fails {
				assert.NotNil(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.output, bf.String())
			assert.Equal(t, test.buf, bf.Bytes())
		})
	}
}

func descriptorFor(data []byte, pieceLength int64) *torrentfile.Descriptor {
	d := &torrentfile.Descriptor{
		Name:        "a.bin",
		PieceLength: pieceLength,
		Length:      int64(len(data)),
	}
	for begin := int64(0); begin < int64(len(data)); begin += pieceLength {
		end := begin + pieceLength
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		d.PieceHashes = append(d.PieceHashes, sha1.Sum(data[begin:end]))
	}
	return d
}

func verify(t *testing.T, d *torrentfile.Descriptor, data []byte) (*Bitfield, error) {
	t.Helper()
	return Verify(d, bytes.NewReader(data), int64(len(data)), nil)
}

func TestVerify(t *testing.T) {
	data := []byte("hello")
	d := descriptorFor(data, 2)

	bf, err := verify(t, d, data)
	require.NoError(t, err)
	assert.Equal(t, "111", bf.String())
	assert.True(t, bf.Complete())
}

func TestVerifyFlippedByte(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 64)
	d := descriptorFor(data, 64)
	require.Equal(t, 16, d.NumPieces())

	for k := 0; k < d.NumPieces(); k++ {
		corrupt := append([]byte(nil), data...)
		corrupt[k*64+7] ^= 0xff

		bf, err := verify(t, d, corrupt)
		require.NoError(t, err)

		want := []byte(strings.Repeat("1", d.NumPieces()))
		want[k] = '0'
		assert.Equal(t, string(want), bf.String(), "piece %d", k)
	}
}

func TestVerifyFileSizes(t *testing.T) {
	data := []byte("hello")
	d := descriptorFor(data, 2)

	tests := map[string]struct {
		local  []byte
		output string
		fails  bool
	}{
		"identical":          {local: data, output: "111"},
		"short last piece":   {local: []byte("hell"), output: "110"},
		"different last":     {local: []byte("hellx"), output: "110"},
		"longer than record": {local: []byte("hello world"), output: "110"},
		"missing a piece":    {local: []byte("hel"), fails: true},
		"empty":              {local: []byte{}, fails: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			bf, err := verify(t, d, test.local)
			if test.fails {
				assert.True(t, errors.Is(err, ErrFileShorter), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.output, bf.String())
		})
	}
}

func TestVerifyExactMultiple(t *testing.T) {
	data := []byte("abcdefgh")
	d := descriptorFor(data, 4)

	bf, err := verify(t, d, data)
	require.NoError(t, err)
	assert.Equal(t, "11", bf.String())
}

func TestVerifyHugePieceLength(t *testing.T) {
	data := []byte("hello")
	hash := sha1.Sum(data)
	meta := "d4:infod6:lengthi5e4:name5:a.bin12:piece lengthi1125899906842624e6:pieces20:" + string(hash[:]) + "ee"

	d, err := torrentfile.Decode(strings.NewReader(meta), torrentfile.Options{})
	require.NoError(t, err)
	require.Equal(t, int64(1)<<50, d.PieceLength)

	bf, err := verify(t, d, data)
	require.NoError(t, err)
	assert.Equal(t, "1", bf.String())

	bf, err = verify(t, d, []byte("hellx"))
	require.NoError(t, err)
	assert.Equal(t, "0", bf.String())
}

func TestVerifyFile(t *testing.T) {
	data := bytes.Repeat([]byte("squid"), 333)
	d := descriptorFor(data, 256)

	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))

	bf, err := VerifyFile(d, path, nil)
	require.NoError(t, err)
	assert.True(t, bf.Complete())
	assert.Equal(t, d.NumPieces(), bf.Len())

	_, err = VerifyFile(d, filepath.Join(t.TempDir(), "missing"), nil)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestVerifyCreated(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3}, 5000)

	var meta bytes.Buffer
	_, err := torrentfile.Create(&meta, bytes.NewReader(data), "data.bin", 1024, "")
	require.NoError(t, err)

	d, err := torrentfile.Decode(&meta, torrentfile.Options{})
	require.NoError(t, err)

	bf, err := verify(t, d, data)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("1", 15), bf.String())
}
