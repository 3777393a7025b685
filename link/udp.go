package link

import (
	"net"

	"github.com/zenohgo/zenoh08/core"
)

// datagram adapts a connected datagram socket — typically the result of
// net.DialUDP — into a DatagramLink: one Write is one packet, one Read
// yields one packet, truncated if the caller's buffer is smaller than what
// arrived.
type datagram struct {
	net.Conn
	mtu int
}

// NewDatagramLink wraps an already-connected datagram socket as a
// DatagramLink.
func NewDatagramLink(nc net.Conn, mtu int) DatagramLink {
	return &datagram{Conn: nc, mtu: mtu}
}

func (d *datagram) MTU() int { return d.mtu }

func (d *datagram) Split() (Tx, Rx) {
	return &datagramTx{d}, &datagramRx{d}
}

type datagramTx struct{ *datagram }

func (t *datagramTx) Write(p []byte) *core.Error {
	if len(p) > t.mtu {
		return core.NewError(core.CapacityExceeded, "link: datagram exceeds MTU")
	}
	_, err := t.Conn.Write(p)
	return classifyWriteErr(err)
}

// WriteAll is identical to Write: a datagram link has no partial-write
// concept, every packet either goes out whole or fails.
func (t *datagramTx) WriteAll(p []byte) *core.Error { return t.Write(p) }

func (t *datagramTx) Close() *core.Error {
	return classifyWriteErr(t.Conn.Close())
}

type datagramRx struct{ *datagram }

func (r *datagramRx) Read(p []byte) (int, *core.Error) {
	n, err := r.Conn.Read(p)
	if err != nil {
		return n, classifyReadErr(err)
	}
	return n, nil
}

// ReadExact has no meaning on a datagram link: a packet's size is whatever
// the sender wrote, not a size the reader can ask for.
func (r *datagramRx) ReadExact(p []byte) *core.Error {
	return core.NewError(core.InvalidArgument, "link: ReadExact not supported on a datagram link")
}
