package udp

import (
	"context"
	"fmt"
	"net"
	"time"
)

// udpConn is the subset of *net.UDPConn the broadcaster needs.
type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Broadcaster sends datagrams to a single destination, which may be a
// broadcast address.
type Broadcaster struct {
	dest string
	conn udpConn
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	return newBroadcaster(dest, net.ResolveUDPAddr, dialBroadcast)
}

func newBroadcaster(dest string, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Broadcaster{
		dest: dest,
		conn: conn,
	}, nil
}

// dialBroadcast connects a UDP socket with SO_BROADCAST set before connect,
// which Linux requires for limited and directed broadcast destinations.
func dialBroadcast(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
	d := net.Dialer{
		Timeout: 2 * time.Second,
		Control: enableBroadcast,
	}
	if laddr != nil {
		d.LocalAddr = laddr
	}
	c, err := d.DialContext(context.Background(), network, raddr.String())
	if err != nil {
		return nil, err
	}
	return c.(*net.UDPConn), nil
}

// Dest returns the configured destination.
func (b *Broadcaster) Dest() string {
	return b.dest
}

func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
