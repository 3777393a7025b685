// Package vle implements the Zenoh 0x08 variable-length integer encoding
// plus the bounded byte/string primitives built on top of it, and the
// caller-owned Writer/Reader buffers the rest of the codec composes with.
//
// Unsigned integers up to 64 bits are encoded little-endian, seven payload
// bits per byte, with a continuation bit at 0x80. The maximum encoded length
// is 9 bytes. Decoding accepts any valid (not necessarily minimal) encoding;
// producers in this package always emit the minimal form.
package vle

import (
	"unicode/utf8"
	"unsafe"

	"github.com/zenohgo/zenoh08/core"
)

// MaxLen is the largest number of bytes a 64-bit VLE value ever encodes to.
const MaxLen = 9

// EncodedLenU64 returns the smallest k such that x < 2^(7k), clamped to
// MaxLen — the exact byte count WriteUint64 writes for x.
func EncodedLenU64(x uint64) int {
	n := 1
	for x >= 1<<7 && n < MaxLen {
		x >>= 7
		n++
	}
	return n
}

// Writer is an append-only, bounds-checked encode buffer over a caller-owned
// slice. It never allocates: Write* calls fail with CapacityExceeded once
// the backing array is full.
type Writer struct {
	buf []byte
	n   int
}

// NewWriter wraps buf for writing from its start.
func NewWriter(buf []byte) *Writer { return &Writer{buf: buf} }

// Reset rewinds the writer to the beginning of its backing array.
func (w *Writer) Reset() { w.n = 0 }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.n }

// Cap returns the backing array's total capacity.
func (w *Writer) Cap() int { return len(w.buf) }

// Bytes returns the bytes written so far. The slice aliases the backing
// array and is invalidated by the next Write* call that grows past it.
func (w *Writer) Bytes() []byte { return w.buf[:w.n] }

// Mark returns a cursor that Truncate can later roll back to, used by the
// batch writer's overflow-then-backtrack discipline.
func (w *Writer) Mark() int { return w.n }

// Truncate rewinds the writer to a previously taken Mark.
func (w *Writer) Truncate(mark int) { w.n = mark }

// WriteByte appends a single raw byte.
func (w *Writer) WriteByte(b byte) *core.Error {
	if w.n >= len(w.buf) {
		return core.NewError(core.CapacityExceeded, "vle: writer buffer full")
	}
	w.buf[w.n] = b
	w.n++
	return nil
}

// Write appends p verbatim.
func (w *Writer) Write(p []byte) *core.Error {
	if len(w.buf)-w.n < len(p) {
		return core.NewError(core.CapacityExceeded, "vle: writer buffer full")
	}
	n := copy(w.buf[w.n:], p)
	w.n += n
	return nil
}

// WriteUint64 appends x as a VLE.
func (w *Writer) WriteUint64(x uint64) *core.Error {
	// At most MaxLen-1 continuation bytes; the MaxLen-th byte carries the
	// final 8 bits raw.
	for n := 1; x >= 1<<7 && n < MaxLen; n++ {
		if err := w.WriteByte(byte(x) | 0x80); err != nil {
			return err
		}
		x >>= 7
	}
	return w.WriteByte(byte(x))
}

// WriteUint8 appends x as a single raw byte (its VLE is always 1 byte, so no
// continuation bit is ever needed).
func (w *Writer) WriteUint8(x uint8) *core.Error { return w.WriteByte(x) }

// WriteUint16 widens x to uint64 and appends it as a VLE.
func (w *Writer) WriteUint16(x uint16) *core.Error { return w.WriteUint64(uint64(x)) }

// WriteUint32 widens x to uint64 and appends it as a VLE.
func (w *Writer) WriteUint32(x uint32) *core.Error { return w.WriteUint64(uint64(x)) }

// WriteLen appends a container length (Go int, always non-negative here) as
// a VLE.
func (w *Writer) WriteLen(n int) *core.Error { return w.WriteUint64(uint64(n)) }

// WriteBoundedBytes appends vle(len(p)) || p, failing with CapacityExceeded
// if p exceeds maxLen — the bounded-slice codec from the VLE section.
func (w *Writer) WriteBoundedBytes(p []byte, maxLen int) *core.Error {
	if len(p) > maxLen {
		return core.NewError(core.CapacityExceeded, "vle: bounded byte slice exceeds declared bound")
	}
	if err := w.WriteLen(len(p)); err != nil {
		return err
	}
	return w.Write(p)
}

// WriteBytes appends vle(len(p)) || p with no declared bound.
func (w *Writer) WriteBytes(p []byte) *core.Error {
	if err := w.WriteLen(len(p)); err != nil {
		return err
	}
	return w.Write(p)
}

// WriteString appends vle(len(s)) || s.
func (w *Writer) WriteString(s string) *core.Error {
	return w.WriteBytes(unsafe.Slice(unsafe.StringData(s), len(s)))
}

// Reader is a cursor over a caller-owned input buffer. Borrowed results
// (ReadBytes, ReadString) alias the input and are valid only for the
// lifetime of that buffer — the zero-copy contract from the design notes.
type Reader struct {
	buf []byte
	i   int
}

// NewReader wraps buf for reading from its start.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining returns the unread tail of the input buffer.
func (r *Reader) Remaining() []byte { return r.buf[r.i:] }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.i }

// Mark returns a cursor Reset can later roll back to — used by the batch
// reader to backtrack on a short/invalid message and stop cleanly.
func (r *Reader) Mark() int { return r.i }

// Reset rewinds the reader to a previously taken Mark.
func (r *Reader) Reset(mark int) { r.i = mark }

// PeekByte returns the next byte without consuming it.
func (r *Reader) PeekByte() (byte, *core.Error) {
	if r.i >= len(r.buf) {
		return 0, core.NewError(core.CouldNotParse, "vle: unexpected end of input")
	}
	return r.buf[r.i], nil
}

// ReadByte consumes and returns the next byte.
func (r *Reader) ReadByte() (byte, *core.Error) {
	b, err := r.PeekByte()
	if err != nil {
		return 0, err
	}
	r.i++
	return b, nil
}

// ReadUint64 consumes a VLE and returns its value. It accepts any valid
// encoding, minimal or not, per the VLE decode policy.
func (r *Reader) ReadUint64() (uint64, *core.Error) {
	var v uint64
	var shift uint
	for n := 0; ; n++ {
		if n == MaxLen {
			return 0, core.NewError(core.CouldNotParse, "vle: integer longer than 9 bytes")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if n == MaxLen-1 {
			// 9th byte carries the final 8 bits with no continuation.
			v |= uint64(b) << shift
			return v, nil
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}

// ReadUint8 consumes a single raw byte.
func (r *Reader) ReadUint8() (uint8, *core.Error) {
	b, err := r.ReadByte()
	return b, err
}

// ReadUint16 consumes a VLE and narrows it to uint16.
func (r *Reader) ReadUint16() (uint16, *core.Error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// ReadUint32 consumes a VLE and narrows it to uint32.
func (r *Reader) ReadUint32() (uint32, *core.Error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadLen consumes a VLE-encoded container length.
func (r *Reader) ReadLen() (int, *core.Error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	if v > uint64(len(r.buf)-r.i) {
		return 0, core.NewError(core.CouldNotParse, "vle: declared length exceeds remaining input")
	}
	return int(v), nil
}

// ReadBytes consumes and returns n raw bytes, borrowed from the input.
func (r *Reader) ReadBytes(n int) ([]byte, *core.Error) {
	if n < 0 || n > len(r.buf)-r.i {
		return nil, core.NewError(core.CouldNotParse, "vle: unexpected end of input")
	}
	b := r.buf[r.i : r.i+n : r.i+n]
	r.i += n
	return b, nil
}

// ReadBoundedBytes consumes vle(len) || bytes, rejecting a length beyond
// maxLen with CapacityExceeded.
func (r *Reader) ReadBoundedBytes(maxLen int) ([]byte, *core.Error) {
	n, err := r.ReadLen()
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, core.NewError(core.CapacityExceeded, "vle: bounded byte slice exceeds declared bound")
	}
	return r.ReadBytes(n)
}

// ReadString consumes vle(len) || bytes and returns it as a string that
// aliases the input buffer without copying. The result is valid only for as
// long as the backing buffer is not reused; call CopyString to obtain an
// owned copy. The bytes must be valid UTF-8; anything else is CouldNotParse.
func (r *Reader) ReadString() (string, *core.Error) {
	n, err := r.ReadLen()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", nil
	}
	if !utf8.Valid(b) {
		return "", core.NewError(core.CouldNotParse, "vle: string field is not valid UTF-8")
	}
	return unsafe.String(&b[0], len(b)), nil
}

// CopyString returns an owned copy of a borrowed string, safe to retain
// past the lifetime of the buffer it was decoded from.
func CopyString(s string) string {
	b := make([]byte, len(s))
	copy(b, s)
	return unsafe.String(&b[0], len(b))
}

// CopyBytes returns an owned copy of a borrowed byte slice.
func CopyBytes(p []byte) []byte {
	if p == nil {
		return nil
	}
	b := make([]byte, len(p))
	copy(b, p)
	return b
}
