// Package batch implements the frame/QoS discipline that groups network
// messages into the transport's wire batches: a Writer that opens a new
// Frame header only when (reliability, qos) changes from the previous
// message, and a Reader that walks a received batch back into transport
// messages, unpacking Frame payloads into their contained network messages.
package batch

import (
	"encoding/binary"

	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/vle"
	"github.com/zenohgo/zenoh08/wire"
)

// LengthPrefixLen is the size of the streamed-batch length prefix: a u16
// little-endian byte count of the batch that follows.
const LengthPrefixLen = 2

// Writer accumulates network messages into one batch. One Writer builds one
// batch at a time; call Reset to start the next over the same backing
// buffer.
type Writer struct {
	w        *vle.Writer
	streamed bool

	open   bool
	curRel wire.Reliability
	curQoS *uint8
}

// NewWriter wraps buf for building streamed or datagram batches. For a
// streamed link, buf must have room for LengthPrefixLen bytes of header in
// addition to the link's MTU; for a datagram link buf should be sized to
// the link's MTU exactly.
func NewWriter(buf []byte, streamed bool) *Writer {
	b := &Writer{w: vle.NewWriter(buf), streamed: streamed}
	b.reserveHeader()
	return b
}

func (b *Writer) reserveHeader() {
	if b.streamed {
		// Two placeholder bytes, patched by Finalize once the batch's final
		// size is known.
		b.w.WriteByte(0)
		b.w.WriteByte(0)
	}
}

// Reset starts a new, empty batch in the same backing buffer, forgetting any
// open frame so the next WriteMessage always opens a fresh one.
func (b *Writer) Reset() {
	b.w.Reset()
	b.open = false
	b.curQoS = nil
	b.reserveHeader()
}

// Len reports the number of bytes written to the batch so far, including the
// streamed length prefix if any.
func (b *Writer) Len() int { return b.w.Len() }

// Mark and Truncate expose the writer's backtrack points to a caller that
// needs to retry a message against a fresh batch after CapacityExceeded —
// WriteMessage already rolls back its own partial write, these are for a
// caller composing several WriteMessage calls atomically.
func (b *Writer) Mark() int      { return b.w.Mark() }
func (b *Writer) Truncate(m int) { b.w.Truncate(m) }

func qosEqual(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// WriteMessage appends msg to the batch under a Frame of the given
// reliability/qos, opening a new Frame header — stamped with sn — exactly
// when (reliability, qos) differs from the previous message written to this
// batch (or no frame is open yet). On CapacityExceeded the batch is rolled
// back to its state before the call; the caller should Finalize and send
// what's accumulated so far, Reset, and retry msg against the fresh batch.
func (b *Writer) WriteMessage(msg *wire.NetworkMessage, reliability wire.Reliability, qos *uint8, sn uint64) *core.Error {
	mark := b.w.Mark()

	needsFrame := !b.open || b.curRel != reliability || !qosEqual(b.curQoS, qos)
	if needsFrame {
		f := &wire.Frame{Reliability: reliability, SN: sn, QoS: qos}
		if err := f.EncodeHeader(b.w); err != nil {
			b.w.Truncate(mark)
			return err
		}
	}

	if err := msg.Encode(b.w); err != nil {
		b.w.Truncate(mark)
		return err
	}

	b.open = true
	b.curRel = reliability
	b.curQoS = qos
	return nil
}

// Finalize patches in the streamed length prefix, if any, and returns the
// completed batch bytes ready to hand to a link's Tx. The returned slice
// aliases the backing buffer.
func (b *Writer) Finalize() []byte {
	buf := b.w.Bytes()
	if b.streamed {
		binary.LittleEndian.PutUint16(buf[:LengthPrefixLen], uint16(len(buf)-LengthPrefixLen))
	}
	return buf
}

// Item is one decoded unit from a Reader: either a standalone transport
// message (Transport set, Frame/Network nil), or a network message that
// arrived inside a Frame (Network and Frame set, Transport nil).
type Item struct {
	Transport *wire.TransportMessage
	Frame     *wire.Frame
	Network   *wire.NetworkMessage
}

// Reader walks one received batch — already stripped of its streamed length
// prefix by the caller — into a sequence of Items.
type Reader struct {
	r     *vle.Reader
	frame *wire.Frame
}

// NewReader wraps batch (the bytes after any streamed length prefix has
// been consumed) for reading.
func NewReader(batch []byte) *Reader {
	return &Reader{r: vle.NewReader(batch)}
}

// Len returns the number of unread bytes remaining in the batch.
func (b *Reader) Len() int { return b.r.Len() }

// Next returns the next Item, or a zero Item with a nil error once the batch
// is exhausted. A network message that fails to decode inside an open
// Frame's payload causes the reader to backtrack to the byte before that
// message and resume treating what follows as the start of the next
// transport message, per the batch wire format's recovery rule; a failure
// decoding a transport message itself (including a Frame header) is
// returned as an error, since there is no further fallback to backtrack to.
func (b *Reader) Next() (Item, *core.Error) {
	for {
		if b.frame != nil {
			if b.r.Len() == 0 {
				b.frame = nil
				return Item{}, nil
			}
			mark := b.r.Mark()
			msg, err := wire.DecodeNetworkMessage(b.r)
			if err != nil {
				b.r.Reset(mark)
				b.frame = nil
				continue
			}
			return Item{Frame: b.frame, Network: msg}, nil
		}

		if b.r.Len() == 0 {
			return Item{}, nil
		}

		header, err := b.r.ReadByte()
		if err != nil {
			return Item{}, err
		}

		if wire.IsFrame(header) {
			f, err := wire.DecodeFrameHeader(b.r, header)
			if err != nil {
				return Item{}, err
			}
			b.frame = f
			continue
		}

		tm, err := wire.DecodeTransportMessage(b.r, header)
		if err != nil {
			return Item{}, err
		}
		return Item{Transport: tm}, nil
	}
}
