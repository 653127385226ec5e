package peers

import (
	"crypto/sha1"
	"fmt"
	"net"
	"strconv"
)

// Peer is the information for a single peer connection
type Peer struct {
	IP   net.IP
	Port uint16
}

// Parse reads a peer given as ip:port. Host names are resolved to their first
// address.
func Parse(s string) (Peer, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Peer{}, fmt.Errorf("bad peer %q: %w", s, err)
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return Peer{}, fmt.Errorf("bad port in peer %q", s)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return Peer{}, fmt.Errorf("resolving peer %q: %w", s, err)
		}
		if len(ips) == 0 {
			return Peer{}, fmt.Errorf("no address for peer %q", s)
		}
		ip = ips[0]
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return Peer{IP: ip, Port: uint16(p)}, nil
}

// ID is the SHA-1 of the peer's address and port written back to back, e.g.
// "127.0.0.16881"
func (p Peer) ID() [20]byte {
	return sha1.Sum([]byte(p.IP.String() + strconv.Itoa(int(p.Port))))
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}
