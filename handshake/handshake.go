package handshake

import (
	"fmt"
	"io"
)

// Pstr is the protocol identifier every handshake starts with
const Pstr = "BitTorrent protocol"

// A Handshake is a special message that a peer uses to identify itself
type Handshake struct {
	Pstr     string
	Reserved [8]byte
	InfoHash [20]byte
	PeerID   [20]byte
}

// New creates a new handshake with the standard pstr
func New(infoHash, peerID [20]byte) *Handshake {
	return &Handshake{
		Pstr:     Pstr,
		InfoHash: infoHash,
		PeerID:   peerID,
	}
}

// Serialize lays the handshake out as <pstrlen><pstr><reserved><info hash><peer id>
func (hs Handshake) Serialize() []byte {
	buf := make([]byte, len(hs.Pstr)+49) // 1 + 19 + 8 + 20 + 20
	buf[0] = byte(len(hs.Pstr))          // Length of 'BitTorrent protocol' which is 19 so 0x13

	// i is current index
	i := 1
	i += copy(buf[i:], hs.Pstr)
	i += copy(buf[i:], hs.Reserved[:])
	i += copy(buf[i:], hs.InfoHash[:])
	copy(buf[i:], hs.PeerID[:])

	return buf
}

// Read parses an incoming handshake, rather than serializing one
func Read(r io.Reader) (*Handshake, error) {
	protocolLength := make([]byte, 1) // First byte is length of protocol
	if _, err := io.ReadFull(r, protocolLength); err != nil {
		return nil, err
	}

	pstrLen := int(protocolLength[0])
	if pstrLen == 0 {
		return nil, fmt.Errorf("pstrlen cannot be 0")
	}

	// Length of protocol + reserved (8) + Infohash(20) + PeerID(20)
	handshakeBuf := make([]byte, 48+pstrLen)
	if _, err := io.ReadFull(r, handshakeBuf); err != nil {
		return nil, err
	}

	hs := &Handshake{Pstr: string(handshakeBuf[0:pstrLen])}
	copy(hs.Reserved[:], handshakeBuf[pstrLen:pstrLen+8])
	copy(hs.InfoHash[:], handshakeBuf[pstrLen+8:pstrLen+8+20])
	copy(hs.PeerID[:], handshakeBuf[pstrLen+8+20:])
	return hs, nil
}
