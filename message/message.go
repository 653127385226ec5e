package message

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Squwid/squidcheck/bitfield"
)

// A message contains a 4 byte length, 1 byte id, and an optional payload

// The messageID describes what message that is being received
type messageID uint8

const (
	// MsgChoke chokes the receiver
	MsgChoke messageID = iota

	// MsgUnchoke unchokes the receiver
	MsgUnchoke

	// MsgInterested expresses interest in receiving data
	MsgInterested

	// MsgNotInterested expresses disinterest in receiving data
	MsgNotInterested

	// MsgHave alerts the receiver that the sender has a piece
	MsgHave

	// MsgBitfield encodes which pieces the sender has
	MsgBitfield

	// MsgRequest requests a block of data from the receiver
	MsgRequest

	// MsgPiece delivers a block of data to fulfill a request
	MsgPiece

	// MsgCancel cancels a request
	MsgCancel
)

// maxLength bounds the declared length of an incoming message
const maxLength = 1 << 20

// Message stores the ID and payload of a message
type Message struct {
	ID      messageID
	Payload []byte
}

// FormatBitfield creates a bitfield message
func FormatBitfield(bf *bitfield.Bitfield) *Message {
	return &Message{ID: MsgBitfield, Payload: bf.Bytes()}
}

// ParseBitfield reads the bitfield of a torrent with numPieces pieces
func (m Message) ParseBitfield(numPieces int) (*bitfield.Bitfield, error) {
	if m.ID != MsgBitfield {
		return nil, fmt.Errorf("expected MsgBitfield (%v), but got %v", MsgBitfield, m.ID)
	}
	return bitfield.FromBytes(m.Payload, numPieces)
}

// Serializes a message to a byte slice
// <length prefix><message ID><payload>
// Interprets `nil` as a keep-alive message
func (m *Message) Serialize() []byte {
	if m == nil {
		return make([]byte, 4)
	}
	length := uint32(len(m.Payload) + 1)         // +1 for id
	buf := make([]byte, 4+length)                // 4 for length, 1 for id, rest is payload
	binary.BigEndian.PutUint32(buf[0:4], length) // Put length in first 4 bytes
	buf[4] = byte(m.ID)
	copy(buf[5:], m.Payload)
	return buf
}

// Read parses a message, Returns nil on keep-alive messages
func Read(r io.Reader) (*Message, error) {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return nil, err
	}

	// If length is 0, its a keep alive
	length := binary.BigEndian.Uint32(lengthBuf)
	if length == 0 {
		return nil, nil
	}
	if length > maxLength {
		return nil, fmt.Errorf("message of %v bytes is too long", length)
	}

	msgBuf := make([]byte, length)
	if _, err := io.ReadFull(r, msgBuf); err != nil {
		return nil, err
	}

	return &Message{
		ID:      messageID(msgBuf[0]),
		Payload: msgBuf[1:],
	}, nil
}
