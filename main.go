package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Squwid/squidcheck/bitfield"
	"github.com/Squwid/squidcheck/p2p"
	"github.com/Squwid/squidcheck/peers"
	"github.com/Squwid/squidcheck/torrentfile"
	"github.com/Squwid/squidcheck/util"
	"github.com/sirupsen/logrus"
)

// maxPeers is the most -p flags that are accepted
const maxPeers = 5

// peerList collects repeated -p flags
type peerList []peers.Peer

func (pl *peerList) String() string {
	s := make([]string, len(*pl))
	for i, p := range *pl {
		s[i] = p.String()
	}
	return strings.Join(s, ",")
}

func (pl *peerList) Set(v string) error {
	if len(*pl) == maxPeers {
		return fmt.Errorf("at most %v peers are allowed", maxPeers)
	}
	p, err := peers.Parse(v)
	if err != nil {
		return err
	}
	*pl = append(*pl, p)
	return nil
}

type config struct {
	verbose     bool
	logFile     string
	saveFile    string
	bind        string
	peers       peerList
	id          string
	lenient     bool
	pieceLength int64
	announce    string
	torrent     string
}

func parseFlags(args []string) (*config, error) {
	c := &config{}
	fs := flag.NewFlagSet("squidcheck", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: squidcheck [OPTIONS] file.torrent\n")
		fs.PrintDefaults()
	}
	fs.BoolVar(&c.verbose, "v", false, "verbose, print additional verbose info")
	fs.StringVar(&c.logFile, "l", "bt_client.log", "save logs to `log_file`")
	fs.StringVar(&c.saveFile, "s", "", "local `save_file` to verify (dflt: name in the torrent)")
	fs.StringVar(&c.bind, "b", "", "seed: bind to this `ip:port` for incoming connections")
	fs.Var(&c.peers, "p", "leech: use this peer `ip:port` (repeat for more than one peer)")
	fs.StringVar(&c.id, "I", "", "set the node identifier to `id`, 40 hex characters (dflt: random)")
	fs.BoolVar(&c.lenient, "lenient", false, "skip unknown keys inside info instead of failing")
	fs.Int64Var(&c.pieceLength, "create", 0, "create file.torrent from -s using this `piece_length`")
	fs.StringVar(&c.announce, "announce", "", "announce `url` written by -create")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one torrent file, got %v", fs.NArg())
	}
	c.torrent = fs.Arg(0)
	if util.IsURL(c.torrent) {
		return nil, fmt.Errorf("%v is a url, only torrent files are supported", c.torrent)
	}
	if c.bind != "" && len(c.peers) > 0 {
		return nil, fmt.Errorf("-b and -p cannot be used together")
	}
	if c.pieceLength != 0 && c.saveFile == "" {
		return nil, fmt.Errorf("-create needs the file to describe in -s")
	}
	return c, nil
}

// peerID decodes an -I id or makes a random one
func (c *config) peerID() ([20]byte, error) {
	var id [20]byte
	if c.id == "" {
		_, err := rand.Read(id[:])
		return id, err
	}
	b, err := hex.DecodeString(c.id)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("id must be %v hex characters", 2*len(id))
	}
	copy(id[:], b)
	return id, nil
}

func main() {
	c, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, closeLog := newLogger(c, os.Stderr)
	err = run(c, logrus.NewEntry(logger))
	if err != nil {
		logger.WithError(err).Errorf("Exiting")
	}
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}

// newLogger logs to w and to the -l file. The returned func closes the file,
// if one could be opened.
func newLogger(c *config, w io.Writer) (*logrus.Logger, func()) {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if c.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	logFile, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.WithError(err).Warnf("Could not open log file, logging to stderr only")
		return logger, func() {}
	}
	logger.SetOutput(io.MultiWriter(w, logFile))
	return logger, func() { logFile.Close() }
}

func run(c *config, l *logrus.Entry) error {
	if c.pieceLength != 0 {
		return create(c, l)
	}

	l = l.WithField("Torrent", c.torrent)
	d, err := torrentfile.Open(c.torrent, torrentfile.Options{Logger: l, SkipUnknownKeys: c.lenient})
	if errors.Is(err, torrentfile.ErrInfoNotFound) {
		l.Warnf("Torrent file has no info section, nothing to verify")
		return nil
	}
	if err != nil {
		return err
	}
	l = l.WithField("Name", d.Name)
	l.WithFields(logrus.Fields{
		"Length":       util.FormatBytes(int(d.Length)),
		"Piece Length": util.FormatBytes(int(d.PieceLength)),
		"Total Pieces": d.NumPieces(),
		"Info Hash":    fmt.Sprintf("%x", d.InfoHash),
	}).Infof("Opened torrent file")

	save := c.saveFile
	if save == "" {
		save = d.Path()
	}

	switch {
	case c.bind != "":
		return seed(c, d, save, l)
	case len(c.peers) > 0:
		return leech(c, d, save, l)
	}

	bf, err := bitfield.VerifyFile(d, save, l)
	if err != nil {
		return err
	}
	fmt.Println(bf)
	return nil
}

func create(c *config, l *logrus.Entry) error {
	in, err := os.Open(c.saveFile)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(c.torrent)
	if err != nil {
		return err
	}
	defer out.Close()

	d, err := torrentfile.Create(out, in, filepath.Base(c.saveFile), c.pieceLength, c.announce)
	if err != nil {
		return err
	}
	l.WithFields(logrus.Fields{
		"Torrent":      c.torrent,
		"Name":         d.Name,
		"Length":       util.FormatBytes(int(d.Length)),
		"Total Pieces": d.NumPieces(),
		"Info Hash":    fmt.Sprintf("%x", d.InfoHash),
	}).Infof("Created torrent file")
	return out.Sync()
}

func seed(c *config, d *torrentfile.Descriptor, save string, l *logrus.Entry) error {
	// Leechers expect the seeder's id to be derived from where it listens
	self, err := peers.Parse(c.bind)
	if err != nil {
		return err
	}

	bf, err := bitfield.VerifyFile(d, save, l)
	if err != nil {
		return err
	}
	l.Infof("BITFIELD at seeder: %v", bf)

	s := &p2p.Session{
		InfoHash:  d.InfoHash,
		PeerID:    self.ID(),
		Bitfield:  bf,
		NumPieces: d.NumPieces(),
	}
	return s.Seed(c.bind, l)
}

func leech(c *config, d *torrentfile.Descriptor, save string, l *logrus.Entry) error {
	id, err := c.peerID()
	if err != nil {
		return err
	}

	local, err := bitfield.VerifyFile(d, save, l)
	if errors.Is(err, os.ErrNotExist) {
		local = bitfield.New(d.NumPieces())
	} else if err != nil {
		return err
	}
	l.Infof("BITFIELD at leecher: %v", local)

	s := &p2p.Session{InfoHash: d.InfoHash, PeerID: id, NumPieces: d.NumPieces()}
	failed := 0
	for _, peer := range c.peers {
		pl := l.WithField("Peer", peer.String())
		remote, err := s.Leech(peer, pl)
		if err != nil {
			pl.WithError(err).Errorf("Could not exchange bitfields with peer")
			failed++
			continue
		}

		wanted := 0
		for i := 0; i < remote.Len(); i++ {
			if remote.HasPiece(i) && !local.HasPiece(i) {
				wanted++
			}
		}
		pl.WithField("Wanted", wanted).Infof("BITFIELD at seeder: %v", remote)
	}
	if failed == len(c.peers) {
		return fmt.Errorf("no peer completed the exchange")
	}
	return nil
}
