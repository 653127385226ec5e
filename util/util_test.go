package util

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := map[string]struct {
		bytes     int
		formatted string
	}{
		"size of debian": {
			bytes:     353370112,
			formatted: "353.4 MB",
		},
		"only bytes": {
			bytes:     124,
			formatted: "124 B",
		},
		"kilo": {
			bytes:     9284,
			formatted: "9.3 kB",
		},
		"gig": {
			bytes:     5235745682,
			formatted: "5.2 GB",
		},
	}

	for _, test := range tests {
		f := FormatBytes(test.bytes)
		assert.Equal(t, test.formatted, f)
	}
}

func TestIsURL(t *testing.T) {
	tests := map[string]struct {
		input string
		isURL bool
	}{
		"magnet":      {input: "magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056", isURL: true},
		"http":        {input: "http://example.com/debian.torrent", isURL: true},
		"upper https": {input: "HTTPS://example.com/debian.torrent", isURL: true},
		"udp tracker": {input: "udp://tracker.example.com:80", isURL: true},
		"relative":    {input: "debian.torrent"},
		"absolute":    {input: "/tmp/http.torrent"},
	}

	for name, test := range tests {
		assert.Equal(t, test.isURL, IsURL(test.input), name)
	}
}

func TestLogger(t *testing.T) {
	l := Logger(nil)
	assert.NotNil(t, l)
	l.Errorf("goes nowhere")

	given := logrus.NewEntry(logrus.New())
	assert.Same(t, given, Logger(given))
}
