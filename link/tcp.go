package link

import (
	"io"
	"net"

	"github.com/zenohgo/zenoh08/core"
)

// streamed adapts any net.Conn — TCP, TLS, a WebSocket's byte stream — into
// a StreamedLink. mtu is a write-batching hint only; the underlying stream
// has no message boundaries of its own.
type streamed struct {
	net.Conn
	mtu int
}

// NewStreamedLink wraps an already-established net.Conn as a StreamedLink.
func NewStreamedLink(nc net.Conn, mtu int) StreamedLink {
	return &streamed{Conn: nc, mtu: mtu}
}

func (s *streamed) MTU() int { return s.mtu }

func (s *streamed) Split() (Tx, Rx) {
	return &streamedTx{s}, &streamedRx{s}
}

type streamedTx struct{ *streamed }

func (t *streamedTx) Write(p []byte) *core.Error {
	_, err := t.Conn.Write(p)
	return classifyWriteErr(err)
}

func (t *streamedTx) WriteAll(p []byte) *core.Error {
	for len(p) > 0 {
		n, err := t.Conn.Write(p)
		if err != nil {
			return classifyWriteErr(err)
		}
		p = p[n:]
	}
	return nil
}

func (t *streamedTx) Close() *core.Error {
	return classifyWriteErr(t.Conn.Close())
}

type streamedRx struct{ *streamed }

func (r *streamedRx) Read(p []byte) (int, *core.Error) {
	n, err := r.Conn.Read(p)
	if err != nil && n == 0 {
		return n, classifyReadErr(err)
	}
	return n, nil
}

func (r *streamedRx) ReadExact(p []byte) *core.Error {
	_, err := io.ReadFull(r.Conn, p)
	return classifyReadErr(err)
}
