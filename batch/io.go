package batch

import (
	"encoding/binary"

	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/link"
	"github.com/zenohgo/zenoh08/vle"
	"github.com/zenohgo/zenoh08/wire"
)

// WriteTransportMessage appends a standalone transport message to the batch
// — used during the handshake, before any Frame exists to group messages
// under. Unlike WriteMessage it never opens a Frame header.
func (b *Writer) WriteTransportMessage(msg *wire.TransportMessage) *core.Error {
	mark := b.w.Mark()
	if err := msg.Encode(b.w); err != nil {
		b.w.Truncate(mark)
		return err
	}
	b.open = false
	return nil
}

// RawWriter exposes the underlying vle.Writer for callers that need to
// encode something the batch/Writer API doesn't wrap directly.
func (b *Writer) RawWriter() *vle.Writer { return b.w }

// SendBatch flushes w's accumulated batch to tx and resets w for the next
// one.
func SendBatch(tx link.Tx, w *Writer) *core.Error {
	if err := tx.WriteAll(w.Finalize()); err != nil {
		return err
	}
	w.Reset()
	return nil
}

// ReadBatch reads one batch from rx into buf and returns the slice holding
// it. For a streamed link this first reads the u16 little-endian length
// prefix and then exactly that many bytes; for a datagram link one Read
// call yields exactly one batch.
func ReadBatch(rx link.Rx, streamed bool, buf []byte) ([]byte, *core.Error) {
	if !streamed {
		n, err := rx.Read(buf)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}

	var lenBuf [LengthPrefixLen]byte
	if err := rx.ReadExact(lenBuf[:]); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(lenBuf[:]))
	if n > len(buf) {
		return nil, core.NewError(core.CapacityExceeded, "batch: received batch exceeds read buffer")
	}
	if err := rx.ReadExact(buf[:n]); err != nil {
		return nil, err
	}
	return buf[:n], nil
}
