package wire

import (
	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/ext"
	"github.com/zenohgo/zenoh08/vle"
)

// InitSyn/InitAck negotiate protocol version, peer identity and resolution
// before a session exists. Both share idInit, distinguished by flagA.
type InitSyn struct {
	Version    uint8
	ZID        core.ID
	Resolution core.Resolution
	Extensions []ext.Extension
}

type InitAck struct {
	Version    uint8
	ZID        core.ID
	Resolution core.Resolution
	Cookie     []byte
	Extensions []ext.Extension
}

// zidLenShift packs the ZenohId's byte length minus one (0..15 for 1..16
// bytes) into the high nibble of a dedicated flags byte, avoiding a separate
// VLE for it — the size-in-header mechanism.
const zidLenShift = 4

func encodeInitHeader(w *vle.Writer, ack bool, version uint8, zid core.ID, res core.Resolution, hasCookie bool, nExts int) *core.Error {
	header := byte(idInit)
	if ack {
		header |= flagA
	}
	if nExts > 0 {
		header |= flagZ
	}
	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := w.WriteByte(version); err != nil {
		return err
	}
	if err := w.WriteByte(byte(res)); err != nil {
		return err
	}
	flags := byte((zid.Len()-1)&0xf) << zidLenShift
	if hasCookie {
		flags |= 0x1
	}
	if err := w.WriteByte(flags); err != nil {
		return err
	}
	return w.Write(zid.Bytes())
}

func decodeInitHeader(r *vle.Reader) (version uint8, zid core.ID, res core.Resolution, hasCookie, hasExt bool, zerr *core.Error) {
	version, err := r.ReadUint8()
	if err != nil {
		return 0, core.ID{}, 0, false, false, err
	}
	resByte, err := r.ReadUint8()
	if err != nil {
		return 0, core.ID{}, 0, false, false, err
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return 0, core.ID{}, 0, false, false, err
	}
	zidLen := int(flags>>zidLenShift)&0xf + 1
	zidBytes, err := r.ReadBytes(zidLen)
	if err != nil {
		return 0, core.ID{}, 0, false, false, err
	}
	id, zerr := core.IDFromBytes(zidBytes)
	if zerr != nil {
		return 0, core.ID{}, 0, false, false, zerr
	}
	return version, id, core.Resolution(resByte), flags&0x1 != 0, false, nil
}

// Encode writes an InitSyn transport message.
func (s *InitSyn) Encode(w *vle.Writer) *core.Error {
	if err := encodeInitHeader(w, false, s.Version, s.ZID, s.Resolution, false, len(s.Extensions)); err != nil {
		return err
	}
	_, err := writeExtBlock(w, s.Extensions)
	return err
}

// DecodeInitSyn reads an InitSyn transport message, having already consumed
// header.
func DecodeInitSyn(r *vle.Reader, header byte) (*InitSyn, *core.Error) {
	if mid(header) != idInit || hasFlag(header, flagA) {
		return nil, core.NewError(core.CouldNotParse, "wire: expected InitSyn")
	}
	version, zid, res, _, _, err := decodeInitHeader(r)
	if err != nil {
		return nil, err
	}
	s := &InitSyn{Version: version, ZID: zid, Resolution: res}
	if hasFlag(header, flagZ) {
		exts, err := ext.DecodeAll(r)
		if err != nil {
			return nil, err
		}
		s.Extensions = exts
	}
	return s, nil
}

// Encode writes an InitAck transport message.
func (a *InitAck) Encode(w *vle.Writer) *core.Error {
	if err := encodeInitHeader(w, true, a.Version, a.ZID, a.Resolution, len(a.Cookie) > 0, len(a.Extensions)); err != nil {
		return err
	}
	if len(a.Cookie) > 0 {
		if err := w.WriteBytes(a.Cookie); err != nil {
			return err
		}
	}
	_, err := writeExtBlock(w, a.Extensions)
	return err
}

// DecodeInitAck reads an InitAck transport message, having already consumed
// header.
func DecodeInitAck(r *vle.Reader, header byte) (*InitAck, *core.Error) {
	if mid(header) != idInit || !hasFlag(header, flagA) {
		return nil, core.NewError(core.CouldNotParse, "wire: expected InitAck")
	}
	version, zid, res, hasCookie, _, err := decodeInitHeader(r)
	if err != nil {
		return nil, err
	}
	a := &InitAck{Version: version, ZID: zid, Resolution: res}
	if hasCookie {
		cookie, err := r.ReadBoundedBytes(r.Len())
		if err != nil {
			return nil, err
		}
		a.Cookie = cookie
	}
	if hasFlag(header, flagZ) {
		exts, err := ext.DecodeAll(r)
		if err != nil {
			return nil, err
		}
		a.Extensions = exts
	}
	return a, nil
}

// OpenSyn/OpenAck complete the handshake: lease and initial sequence number.
// Both share idOpen, distinguished by flagA.
type OpenSyn struct {
	Lease      uint32 // milliseconds
	InitialSN  uint64
	Cookie     []byte
	Extensions []ext.Extension
}

type OpenAck struct {
	Lease      uint32
	InitialSN  uint64
	Extensions []ext.Extension
}

func encodeOpenHeader(w *vle.Writer, ack bool, lease uint32, sn uint64, nExts int) *core.Error {
	header := byte(idOpen)
	if ack {
		header |= flagA
	}
	if nExts > 0 {
		header |= flagZ
	}
	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := w.WriteUint32(lease); err != nil {
		return err
	}
	return w.WriteUint64(sn)
}

// Encode writes an OpenSyn transport message.
func (s *OpenSyn) Encode(w *vle.Writer) *core.Error {
	if err := encodeOpenHeader(w, false, s.Lease, s.InitialSN, len(s.Extensions)); err != nil {
		return err
	}
	if err := w.WriteBytes(s.Cookie); err != nil {
		return err
	}
	_, err := writeExtBlock(w, s.Extensions)
	return err
}

// DecodeOpenSyn reads an OpenSyn transport message, having already consumed
// header.
func DecodeOpenSyn(r *vle.Reader, header byte) (*OpenSyn, *core.Error) {
	if mid(header) != idOpen || hasFlag(header, flagA) {
		return nil, core.NewError(core.CouldNotParse, "wire: expected OpenSyn")
	}
	lease, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	sn, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	cookie, err := r.ReadBoundedBytes(r.Len())
	if err != nil {
		return nil, err
	}
	s := &OpenSyn{Lease: lease, InitialSN: sn, Cookie: cookie}
	if hasFlag(header, flagZ) {
		exts, err := ext.DecodeAll(r)
		if err != nil {
			return nil, err
		}
		s.Extensions = exts
	}
	return s, nil
}

// Encode writes an OpenAck transport message.
func (a *OpenAck) Encode(w *vle.Writer) *core.Error {
	if err := encodeOpenHeader(w, true, a.Lease, a.InitialSN, len(a.Extensions)); err != nil {
		return err
	}
	_, err := writeExtBlock(w, a.Extensions)
	return err
}

// DecodeOpenAck reads an OpenAck transport message, having already consumed
// header.
func DecodeOpenAck(r *vle.Reader, header byte) (*OpenAck, *core.Error) {
	if mid(header) != idOpen || !hasFlag(header, flagA) {
		return nil, core.NewError(core.CouldNotParse, "wire: expected OpenAck")
	}
	lease, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	sn, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	a := &OpenAck{Lease: lease, InitialSN: sn}
	if hasFlag(header, flagZ) {
		exts, err := ext.DecodeAll(r)
		if err != nil {
			return nil, err
		}
		a.Extensions = exts
	}
	return a, nil
}

// KeepAlive carries no payload; its receipt alone counts as traffic for
// lease tracking.
type KeepAlive struct{}

// Encode writes a KeepAlive transport message.
func (KeepAlive) Encode(w *vle.Writer) *core.Error {
	return w.WriteByte(idKeepAlive)
}

// DecodeKeepAlive reads a KeepAlive transport message, having already
// consumed header.
func DecodeKeepAlive(r *vle.Reader, header byte) (*KeepAlive, *core.Error) {
	if mid(header) != idKeepAlive {
		return nil, core.NewError(core.CouldNotParse, "wire: expected KeepAlive")
	}
	if hasFlag(header, flagZ) {
		if _, err := ext.DecodeAll(r); err != nil {
			return nil, err
		}
	}
	return &KeepAlive{}, nil
}

// CloseBehaviour selects whether a Close tears down just the link or the
// whole session.
type CloseBehaviour uint8

const (
	CloseLink CloseBehaviour = iota
	CloseSession
)

const flagCloseS = 1 << 5

// Close ends a session or link, carrying a reason byte the peer need not
// interpret beyond logging it.
type Close struct {
	Reason    uint8
	Behaviour CloseBehaviour
}

// Encode writes a Close transport message.
func (c *Close) Encode(w *vle.Writer) *core.Error {
	header := byte(idClose)
	if c.Behaviour == CloseSession {
		header |= flagCloseS
	}
	if err := w.WriteByte(header); err != nil {
		return err
	}
	return w.WriteByte(c.Reason)
}

// DecodeClose reads a Close transport message, having already consumed
// header.
func DecodeClose(r *vle.Reader, header byte) (*Close, *core.Error) {
	if mid(header) != idClose {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Close")
	}
	reason, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	behaviour := CloseLink
	if hasFlag(header, flagCloseS) {
		behaviour = CloseSession
	}
	return &Close{Reason: reason, Behaviour: behaviour}, nil
}

// Reliability selects a Frame's delivery class; sequence numbers are
// tracked independently per class.
type Reliability uint8

const (
	BestEffort Reliability = iota
	Reliable
)

// Frame groups the Reliability/QoS/SN a run of network messages share.
type Frame struct {
	Reliability Reliability
	SN          uint64
	QoS         *uint8
}

const extFrameQoS = 0x1

// EncodeHeader writes a Frame's header byte, sequence number, and optional
// QoS extension — everything but the network-message payload that follows.
func (f *Frame) EncodeHeader(w *vle.Writer) *core.Error {
	header := byte(idFrame)
	if f.Reliability == Reliable {
		header |= flagR
	}
	if f.QoS != nil {
		header |= flagZ
	}
	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := w.WriteUint64(f.SN); err != nil {
		return err
	}
	if f.QoS != nil {
		return ext.Encode(w, []ext.Extension{{ID: extFrameQoS, Kind: ext.U64, Value: uint64(*f.QoS)}})
	}
	return nil
}

// DecodeFrameHeader reads a Frame's header byte, sequence number, and
// extension block, having already consumed the leading header byte.
func DecodeFrameHeader(r *vle.Reader, header byte) (*Frame, *core.Error) {
	if mid(header) != idFrame {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Frame")
	}
	f := &Frame{Reliability: BestEffort}
	if hasFlag(header, flagR) {
		f.Reliability = Reliable
	}
	sn, err := r.ReadUint64()
	if err != nil {
		return nil, err
	}
	f.SN = sn
	if hasFlag(header, flagZ) {
		if err := ext.Decode(r, func(id uint8, kind ext.Kind, mandatory bool, r *vle.Reader) (bool, *core.Error) {
			if id == extFrameQoS {
				v, err := r.ReadUint64()
				if err != nil {
					return false, err
				}
				q := uint8(v)
				f.QoS = &q
				return true, nil
			}
			return false, nil
		}); err != nil {
			return nil, err
		}
	}
	return f, nil
}
