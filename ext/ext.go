// Package ext implements the Zenoh 0x08 extension framework: the
// self-describing optional fields every message may carry after its base
// fields, with skip-unknown semantics for forward compatibility.
//
// Extension header byte layout: [more:1][kind:2][mandatory:1][id:4].
package ext

import (
	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/vle"
)

// Kind selects how an extension's body is encoded.
type Kind uint8

const (
	// Unit extensions carry no body at all.
	Unit Kind = 0x00
	// U64 extensions carry a single VLE integer.
	U64 Kind = 0x20
	// ZBuf extensions carry a length-prefixed byte blob.
	ZBuf Kind = 0x40
)

const (
	flagMore      = 1 << 7
	kindMask      = 0x60
	flagMandatory = 1 << 4
	idMask        = 0x0f
)

func (k Kind) valid() bool { return k == Unit || k == U64 || k == ZBuf }

// Extension is a single decoded or to-be-encoded extension entry. Which of
// Value/Body is meaningful depends on Kind.
type Extension struct {
	ID        uint8
	Mandatory bool
	Kind      Kind
	Value     uint64 // meaningful iff Kind == U64
	Body      []byte // meaningful iff Kind == ZBuf; borrowed on decode
}

// header builds the header byte for e, with the more bit set as instructed
// by the caller (messages precount their extensions so more is known ahead
// of the single forward encode pass).
func header(e Extension, more bool) byte {
	h := e.ID & idMask
	h |= byte(e.Kind)
	if e.Mandatory {
		h |= flagMandatory
	}
	if more {
		h |= flagMore
	}
	return h
}

// Encode writes exts as a complete extension block: one header+body per
// entry, the more bit cleared on the last one.
func Encode(w *vle.Writer, exts []Extension) *core.Error {
	for i, e := range exts {
		if !e.Kind.valid() {
			return core.NewError(core.InvalidArgument, "ext: unknown kind")
		}
		more := i < len(exts)-1
		if err := w.WriteByte(header(e, more)); err != nil {
			return err
		}
		switch e.Kind {
		case Unit:
		case U64:
			if err := w.WriteUint64(e.Value); err != nil {
				return err
			}
		case ZBuf:
			if err := w.WriteBytes(e.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the encoded byte length of exts, for size-discipline callers
// that need to know the extension block's footprint before writing it.
func Len(exts []Extension) int {
	n := 0
	for _, e := range exts {
		n++ // header byte
		switch e.Kind {
		case Unit:
		case U64:
			n += vle.EncodedLenU64(e.Value)
		case ZBuf:
			n += vle.EncodedLenU64(uint64(len(e.Body))) + len(e.Body)
		}
	}
	return n
}

// Handler reacts to one decoded extension header. It must return handled
// true and fully consume the body from r itself (per Kind), or return
// handled false and leave r untouched — Decode then skips the body using
// the generic per-Kind skip rule.
type Handler func(id uint8, kind Kind, mandatory bool, r *vle.Reader) (handled bool, zerr *core.Error)

// decodeHeader consumes one header byte.
func decodeHeader(r *vle.Reader) (id uint8, kind Kind, mandatory, more bool, zerr *core.Error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, false, false, err
	}
	k := Kind(b & kindMask)
	if !k.valid() {
		return 0, 0, false, false, core.NewError(core.CouldNotParse, "ext: invalid kind bits")
	}
	return b & idMask, k, b&flagMandatory != 0, b&flagMore != 0, nil
}

// skipBody discards an unhandled extension's body according to its kind.
func skipBody(r *vle.Reader, kind Kind) *core.Error {
	switch kind {
	case Unit:
		return nil
	case U64:
		_, err := r.ReadUint64()
		return err
	case ZBuf:
		_, err := r.ReadBoundedBytes(r.Len())
		return err
	default:
		return core.NewError(core.CouldNotParse, "ext: invalid kind bits")
	}
}

// Decode consumes a full extension block, one header+body at a time, until
// an entry with more==false is read. Known ids are dispatched to handle;
// unknown non-mandatory ids are skipped per their kind; an unknown mandatory
// id fails decode with MandatoryExtensionUnsupported, aborting the message.
func Decode(r *vle.Reader, handle Handler) *core.Error {
	for {
		id, kind, mandatory, more, err := decodeHeader(r)
		if err != nil {
			return err
		}

		handled, err := handle(id, kind, mandatory, r)
		if err != nil {
			return err
		}
		if !handled {
			if mandatory {
				return core.NewError(core.MandatoryExtensionUnsupported, "ext: unknown mandatory extension")
			}
			if err := skipBody(r, kind); err != nil {
				return err
			}
		}

		if !more {
			return nil
		}
	}
}

// DecodeAll collects every extension in the block into a slice, without any
// known-id dispatch — useful for tests and for generic passthrough/routing
// code that need not interpret extension contents.
func DecodeAll(r *vle.Reader) ([]Extension, *core.Error) {
	var out []Extension
	err := Decode(r, func(id uint8, kind Kind, mandatory bool, r *vle.Reader) (bool, *core.Error) {
		e := Extension{ID: id, Mandatory: mandatory, Kind: kind}
		switch kind {
		case Unit:
		case U64:
			v, err := r.ReadUint64()
			if err != nil {
				return false, err
			}
			e.Value = v
		case ZBuf:
			b, err := r.ReadBoundedBytes(r.Len())
			if err != nil {
				return false, err
			}
			e.Body = b
		}
		out = append(out, e)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
