// Package link implements the transport-agnostic tx/rx surface the session
// consumes: a streamed half (TCP, TLS, a WebSocket byte stream) that
// preserves order but not message boundaries, and a datagram half (UDP)
// that preserves boundaries up to a fixed MTU. Concrete platform shims
// (actual sockets) are external collaborators; this package only adapts a
// net.Conn into the shape the batch and session layers expect.
package link

import (
	"io"
	"net"

	"github.com/zenohgo/zenoh08/core"
)

// Tx is the transmit half of a link. Once a link has been Split, the tx
// half is exclusively owned by whichever task drives writes.
type Tx interface {
	// Write sends p as a single underlying write. A short write without an
	// error never happens on a conforming net.Conn; callers that need every
	// byte flushed regardless should use WriteAll.
	Write(p []byte) *core.Error
	// WriteAll sends p in full, looping over partial writes.
	WriteAll(p []byte) *core.Error
	// Close tears down the underlying connection shared by both halves; the
	// rx half's next read then fails.
	Close() *core.Error
}

// Rx is the receive half of a link. Once a link has been Split, the rx half
// is exclusively owned by whichever task drives reads.
type Rx interface {
	// Read fills p with whatever is currently available, same contract as
	// io.Reader.Read minus the io.EOF sentinel — use the returned error's
	// Kind instead.
	Read(p []byte) (int, *core.Error)
	// ReadExact blocks until p is completely filled or the link fails.
	ReadExact(p []byte) *core.Error
}

// StreamedLink preserves order but not message boundaries. The batch layer
// prepends a 2-byte little-endian length to each batch sent over a
// StreamedLink so the reader can resynchronize.
type StreamedLink interface {
	MTU() int
	Split() (Tx, Rx)
}

// DatagramLink preserves message boundaries up to a fixed MTU; the batch
// layer omits the length prefix since one Write/Read is one batch.
type DatagramLink interface {
	MTU() int
	Split() (Tx, Rx)
}

func classifyReadErr(err error) *core.Error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return core.Wrap(core.ConnectionClosed, "link: peer closed", err)
	}
	if ne, ok := err.(net.Error); ok && !ne.Temporary() {
		return core.Wrap(core.ConnectionClosed, "link: read", err)
	}
	return core.Wrap(core.LinkRxFailed, "link: read", err)
}

func classifyWriteErr(err error) *core.Error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(net.Error); ok && !ne.Temporary() {
		return core.Wrap(core.ConnectionClosed, "link: write", err)
	}
	return core.Wrap(core.LinkTxFailed, "link: write", err)
}
