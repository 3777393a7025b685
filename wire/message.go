package wire

import (
	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/vle"
)

// TransportMessage is the decoded union of every standalone transport
// message — everything except Frame, which the batch reader handles
// specially since its payload is itself a run of network messages.
type TransportMessage struct {
	InitSyn   *InitSyn
	InitAck   *InitAck
	OpenSyn   *OpenSyn
	OpenAck   *OpenAck
	KeepAlive *KeepAlive
	Close     *Close
}

// Encode writes whichever single variant of m is set.
func (m *TransportMessage) Encode(w *vle.Writer) *core.Error {
	switch {
	case m.InitSyn != nil:
		return m.InitSyn.Encode(w)
	case m.InitAck != nil:
		return m.InitAck.Encode(w)
	case m.OpenSyn != nil:
		return m.OpenSyn.Encode(w)
	case m.OpenAck != nil:
		return m.OpenAck.Encode(w)
	case m.KeepAlive != nil:
		return m.KeepAlive.Encode(w)
	case m.Close != nil:
		return m.Close.Encode(w)
	default:
		return core.NewError(core.InvalidArgument, "wire: empty TransportMessage")
	}
}

// DecodeTransportMessage reads one non-Frame transport message and
// dispatches on its header id (and, for Init/Open, the A flag).
func DecodeTransportMessage(r *vle.Reader, header byte) (*TransportMessage, *core.Error) {
	switch mid(header) {
	case idInit:
		if !hasFlag(header, flagA) {
			s, err := DecodeInitSyn(r, header)
			if err != nil {
				return nil, err
			}
			return &TransportMessage{InitSyn: s}, nil
		}
		a, err := DecodeInitAck(r, header)
		if err != nil {
			return nil, err
		}
		return &TransportMessage{InitAck: a}, nil
	case idOpen:
		if !hasFlag(header, flagA) {
			s, err := DecodeOpenSyn(r, header)
			if err != nil {
				return nil, err
			}
			return &TransportMessage{OpenSyn: s}, nil
		}
		a, err := DecodeOpenAck(r, header)
		if err != nil {
			return nil, err
		}
		return &TransportMessage{OpenAck: a}, nil
	case idKeepAlive:
		ka, err := DecodeKeepAlive(r, header)
		if err != nil {
			return nil, err
		}
		return &TransportMessage{KeepAlive: ka}, nil
	case idClose:
		c, err := DecodeClose(r, header)
		if err != nil {
			return nil, err
		}
		return &TransportMessage{Close: c}, nil
	default:
		return nil, core.NewError(core.CouldNotParse, "wire: unknown or unexpected transport message id")
	}
}
