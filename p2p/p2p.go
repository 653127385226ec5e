package p2p

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/Squwid/squidcheck/bitfield"
	"github.com/Squwid/squidcheck/handshake"
	"github.com/Squwid/squidcheck/message"
	"github.com/Squwid/squidcheck/peers"
	"github.com/Squwid/squidcheck/util"
	"github.com/sirupsen/logrus"
)

const (
	dialTimeout     = 3 * time.Second
	exchangeTimeout = 5 * time.Second
)

// Session is one side of the handshake and bitfield exchange for a torrent
type Session struct {
	InfoHash [20]byte // File both sides need to agree on
	PeerID   [20]byte // This client identifier

	// Bitfield is what a seeder advertises. Leechers leave it nil.
	Bitfield *bitfield.Bitfield

	// NumPieces is the expected size of a remote bitfield
	NumPieces int
}

// Seed listens on addr and serves a single leecher
func (s *Session) Seed(addr string, l *logrus.Entry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	return s.SeedListener(ln, l)
}

// SeedListener accepts one connection from ln and serves it
func (s *Session) SeedListener(ln net.Listener, l *logrus.Entry) error {
	l = util.Logger(l).WithField("Addr", ln.Addr().String())
	if s.Bitfield == nil {
		return fmt.Errorf("seeder has no bitfield")
	}

	l.Infof("Waiting for a leecher")
	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	return s.Serve(conn, l)
}

// Serve answers a leecher's handshake on conn and sends it our bitfield
func (s *Session) Serve(conn net.Conn, l *logrus.Entry) error {
	l = util.Logger(l).WithField("Peer", conn.RemoteAddr().String())

	conn.SetDeadline(time.Now().Add(exchangeTimeout))
	defer conn.SetDeadline(time.Time{}) // Disable the deadline

	req, err := handshake.Read(conn)
	if err != nil {
		return fmt.Errorf("reading handshake: %w", err)
	}
	if err := s.check(req); err != nil {
		return err
	}
	l.WithField("Peer ID", fmt.Sprintf("%x", req.PeerID)).Debugf("Received handshake")

	if _, err := conn.Write(handshake.New(s.InfoHash, s.PeerID).Serialize()); err != nil {
		return err
	}
	if _, err := conn.Write(message.FormatBitfield(s.Bitfield).Serialize()); err != nil {
		return err
	}
	l.WithFields(logrus.Fields{
		"Have":         s.Bitfield.Count(),
		"Total Pieces": s.Bitfield.Len(),
	}).Infof("Sent bitfield %v", s.Bitfield)
	return nil
}

// Leech connects to a seeder and returns the bitfield it advertises
func (s *Session) Leech(peer peers.Peer, l *logrus.Entry) (*bitfield.Bitfield, error) {
	l = util.Logger(l).WithField("Peer", peer.String())

	conn, err := net.DialTimeout("tcp", peer.String(), dialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return s.Exchange(conn, peer, l)
}

// Exchange sends our handshake on conn, checks that the answer comes from peer
// and reads the bitfield that follows it
func (s *Session) Exchange(conn net.Conn, peer peers.Peer, l *logrus.Entry) (*bitfield.Bitfield, error) {
	l = util.Logger(l)

	conn.SetDeadline(time.Now().Add(exchangeTimeout))
	defer conn.SetDeadline(time.Time{}) // Disable the deadline

	if _, err := conn.Write(handshake.New(s.InfoHash, s.PeerID).Serialize()); err != nil {
		return nil, err
	}
	res, err := handshake.Read(conn)
	if err != nil {
		return nil, fmt.Errorf("reading handshake: %w", err)
	}
	if err := s.check(res); err != nil {
		return nil, err
	}
	if id := peer.ID(); !bytes.Equal(res.PeerID[:], id[:]) {
		return nil, fmt.Errorf("expected peer id %x but got %x", id, res.PeerID)
	}
	l.Debugf("Completed handshake")

	msg, err := readMessage(conn)
	if err != nil {
		return nil, err
	}
	bf, err := msg.ParseBitfield(s.NumPieces)
	if err != nil {
		return nil, err
	}
	l.WithFields(logrus.Fields{
		"Have":         bf.Count(),
		"Total Pieces": bf.Len(),
	}).Infof("Received bitfield %v", bf)
	return bf, nil
}

func (s *Session) check(hs *handshake.Handshake) error {
	if hs.Pstr != handshake.Pstr {
		return fmt.Errorf("unknown protocol %q", hs.Pstr)
	}
	if !bytes.Equal(hs.InfoHash[:], s.InfoHash[:]) {
		return fmt.Errorf("expected infohash %x but got %x", s.InfoHash, hs.InfoHash)
	}
	return nil
}

// readMessage skips keep-alives until the peer sends a real message
func readMessage(conn net.Conn) (*message.Message, error) {
	for {
		msg, err := message.Read(conn)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
}
