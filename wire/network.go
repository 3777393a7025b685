package wire

import (
	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/ext"
	"github.com/zenohgo/zenoh08/vle"
)

// encodeWireExpr writes a WireExpr's scope, and its suffix iff hasSuffix.
func encodeWireExpr(w *vle.Writer, we core.WireExpr, hasSuffix bool) *core.Error {
	if err := w.WriteUint16(we.Scope); err != nil {
		return err
	}
	if hasSuffix {
		return w.WriteString(we.Suffix)
	}
	return nil
}

// decodeWireExpr reads a WireExpr's scope and, iff hasSuffix, its suffix.
// mapping is supplied by the caller: Push derives it from its M flag; the
// other network messages carry no M flag and always pass MappingReceiver.
func decodeWireExpr(r *vle.Reader, hasSuffix bool, mapping core.Mapping) (core.WireExpr, *core.Error) {
	scope, err := r.ReadUint16()
	if err != nil {
		return core.WireExpr{}, err
	}
	we := core.WireExpr{Scope: scope, Mapping: mapping}
	if hasSuffix {
		suffix, err := r.ReadString()
		if err != nil {
			return core.WireExpr{}, err
		}
		we.Suffix = suffix
	}
	return we, nil
}

func mappingFlag(m core.Mapping) byte {
	if m == core.MappingSender {
		return flagPushM
	}
	return 0
}

// Push carries a PushBody to every subscriber intersecting its WireExpr; it
// has no reply path (fire-and-forget, matching a Zenoh put/delete).
type Push struct {
	WireExpr core.WireExpr
	Payload  PushBody
	QoS      *uint8 // nil iff default QoS
	Tstamp   *core.Timestamp
	NodeID   *uint64
}

const (
	flagPushZ = flagZ
	flagPushM = 1 << 6
	flagPushN = 1 << 5
)

const (
	extQoS    = 0x1
	extTstamp = 0x2
	extNodeID = 0x3
)

// Encode writes a Push network message.
func (p *Push) Encode(w *vle.Writer) *core.Error {
	var exts []ext.Extension
	if p.QoS != nil {
		exts = append(exts, ext.Extension{ID: extQoS, Kind: ext.U64, Value: uint64(*p.QoS)})
	}
	if p.Tstamp != nil {
		var tsBuf [core.MaxIDLen + 2*vle.MaxLen]byte
		tw := vle.NewWriter(tsBuf[:])
		if err := encodeTimestamp(tw, *p.Tstamp); err != nil {
			return err
		}
		exts = append(exts, ext.Extension{ID: extTstamp, Kind: ext.ZBuf, Body: tw.Bytes()})
	}
	if p.NodeID != nil {
		exts = append(exts, ext.Extension{ID: extNodeID, Kind: ext.U64, Value: *p.NodeID})
	}

	header := byte(idPush) | mappingFlag(p.WireExpr.Mapping)
	if p.WireExpr.Suffix != "" {
		header |= flagPushN
	}
	if len(exts) > 0 {
		header |= flagPushZ
	}

	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := encodeWireExpr(w, p.WireExpr, header&flagPushN != 0); err != nil {
		return err
	}
	if _, err := writeExtBlock(w, exts); err != nil {
		return err
	}
	return encodePut(w, &p.Payload.Put)
}

// DecodePush reads a Push network message, having already consumed header.
func DecodePush(r *vle.Reader, header byte) (*Push, *core.Error) {
	if mid(header) != idPush {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Push id")
	}
	mapping := core.MappingReceiver
	if hasFlag(header, flagPushM) {
		mapping = core.MappingSender
	}
	we, err := decodeWireExpr(r, hasFlag(header, flagPushN), mapping)
	if err != nil {
		return nil, err
	}
	p := &Push{WireExpr: we}
	if hasFlag(header, flagPushZ) {
		if err := ext.Decode(r, func(id uint8, kind ext.Kind, mandatory bool, r *vle.Reader) (bool, *core.Error) {
			switch id {
			case extQoS:
				v, err := r.ReadUint64()
				if err != nil {
					return false, err
				}
				q := uint8(v)
				p.QoS = &q
				return true, nil
			case extTstamp:
				b, err := r.ReadBoundedBytes(r.Len())
				if err != nil {
					return false, err
				}
				tr := vle.NewReader(b)
				ts, terr := decodeTimestamp(tr)
				if terr != nil {
					return false, terr
				}
				p.Tstamp = &ts
				return true, nil
			case extNodeID:
				v, err := r.ReadUint64()
				if err != nil {
					return false, err
				}
				p.NodeID = &v
				return true, nil
			default:
				return false, nil
			}
		}); err != nil {
			return nil, err
		}
	}
	innerHeader, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	put, err := decodePut(r, innerHeader)
	if err != nil {
		return nil, err
	}
	p.Payload = PushBody{Put: *put}
	return p, nil
}

// Request carries a RequestBody (a Query) toward one or more queryables
// matching its WireExpr, identified by ID for correlating Response(Final)s.
type Request struct {
	ID       uint32
	WireExpr core.WireExpr
	Target   uint8
	Budget   *uint32
	Timeout  *uint32
	Payload  RequestBody
}

const (
	flagRequestN = 1 << 5
)

// Encode writes a Request network message.
func (req *Request) Encode(w *vle.Writer) *core.Error {
	var exts []ext.Extension
	if req.Budget != nil {
		exts = append(exts, ext.Extension{ID: 0x1, Kind: ext.U64, Value: uint64(*req.Budget)})
	}
	if req.Timeout != nil {
		exts = append(exts, ext.Extension{ID: 0x2, Kind: ext.U64, Value: uint64(*req.Timeout)})
	}

	header := byte(idRequest)
	if req.WireExpr.Suffix != "" {
		header |= flagRequestN
	}
	if len(exts) > 0 {
		header |= flagZ
	}

	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := w.WriteUint32(req.ID); err != nil {
		return err
	}
	if err := encodeWireExpr(w, req.WireExpr, header&flagRequestN != 0); err != nil {
		return err
	}
	if err := w.WriteByte(req.Target); err != nil {
		return err
	}
	if _, err := writeExtBlock(w, exts); err != nil {
		return err
	}
	return encodeQuery(w, &req.Payload.Query)
}

// DecodeRequest reads a Request network message, having already consumed
// header.
func DecodeRequest(r *vle.Reader, header byte) (*Request, *core.Error) {
	if mid(header) != idRequest {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Request id")
	}
	id, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	we, err := decodeWireExpr(r, hasFlag(header, flagRequestN), core.MappingReceiver)
	if err != nil {
		return nil, err
	}
	target, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	req := &Request{ID: id, WireExpr: we, Target: target}
	if hasFlag(header, flagZ) {
		if err := ext.Decode(r, func(extID uint8, kind ext.Kind, mandatory bool, r *vle.Reader) (bool, *core.Error) {
			switch extID {
			case 0x1:
				v, err := r.ReadUint64()
				if err != nil {
					return false, err
				}
				b := uint32(v)
				req.Budget = &b
				return true, nil
			case 0x2:
				v, err := r.ReadUint64()
				if err != nil {
					return false, err
				}
				t := uint32(v)
				req.Timeout = &t
				return true, nil
			default:
				return false, nil
			}
		}); err != nil {
			return nil, err
		}
	}
	innerHeader, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	query, err := decodeQuery(r, innerHeader)
	if err != nil {
		return nil, err
	}
	req.Payload = RequestBody{Query: *query}
	return req, nil
}

// Response carries one ResponseBody reply in answer to a Request, correlated
// by RID; a querier may receive many Responses before a ResponseFinal.
type Response struct {
	RID      uint32
	WireExpr core.WireExpr
	Payload  ResponseBody
}

const flagResponseN = 1 << 5

// Encode writes a Response network message.
func (resp *Response) Encode(w *vle.Writer) *core.Error {
	header := byte(idResponse)
	if resp.WireExpr.Suffix != "" {
		header |= flagResponseN
	}
	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := w.WriteUint32(resp.RID); err != nil {
		return err
	}
	if err := encodeWireExpr(w, resp.WireExpr, header&flagResponseN != 0); err != nil {
		return err
	}
	if resp.Payload.Reply != nil {
		return encodeReply(w, resp.Payload.Reply)
	}
	return encodeErr(w, resp.Payload.Err)
}

// DecodeResponse reads a Response network message, having already consumed
// header.
func DecodeResponse(r *vle.Reader, header byte) (*Response, *core.Error) {
	if mid(header) != idResponse {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Response id")
	}
	rid, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	we, err := decodeWireExpr(r, hasFlag(header, flagResponseN), core.MappingReceiver)
	if err != nil {
		return nil, err
	}
	innerHeader, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	body := ResponseBody{}
	switch mid(innerHeader) {
	case idReply:
		reply, err := decodeReply(r, innerHeader)
		if err != nil {
			return nil, err
		}
		body.Reply = reply
	case idErr:
		e, err := decodeErr(r, innerHeader)
		if err != nil {
			return nil, err
		}
		body.Err = e
	default:
		return nil, core.NewError(core.CouldNotParse, "wire: expected Reply or Err id")
	}
	return &Response{RID: rid, WireExpr: we, Payload: body}, nil
}

// ResponseFinal closes out a Request's reply stream: no more Responses for
// RID will follow.
type ResponseFinal struct {
	RID uint32
}

// Encode writes a ResponseFinal network message.
func (rf *ResponseFinal) Encode(w *vle.Writer) *core.Error {
	if err := w.WriteByte(idResponseFinal); err != nil {
		return err
	}
	return w.WriteUint32(rf.RID)
}

// DecodeResponseFinal reads a ResponseFinal network message, having already
// consumed header.
func DecodeResponseFinal(r *vle.Reader, header byte) (*ResponseFinal, *core.Error) {
	if mid(header) != idResponseFinal {
		return nil, core.NewError(core.CouldNotParse, "wire: expected ResponseFinal id")
	}
	rid, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &ResponseFinal{RID: rid}, nil
}

// InterestMode selects what an Interest declaration is requesting: current
// state, future declarations, or both.
type InterestMode uint8

const (
	InterestCurrent InterestMode = 1 << iota
	InterestFuture
)

// Interest asks the peer to (re)declare matching resources, the mechanism a
// late-joining subscriber uses to learn already-declared publishers.
type Interest struct {
	ID       uint32
	Mode     InterestMode
	WireExpr *core.WireExpr
}

const flagInterestN = 1 << 5

// Encode writes an Interest network message.
func (it *Interest) Encode(w *vle.Writer) *core.Error {
	header := byte(idInterest)
	if it.WireExpr != nil && it.WireExpr.Suffix != "" {
		header |= flagInterestN
	}
	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := w.WriteUint32(it.ID); err != nil {
		return err
	}
	if err := w.WriteByte(byte(it.Mode)); err != nil {
		return err
	}
	if it.WireExpr != nil {
		return encodeWireExpr(w, *it.WireExpr, header&flagInterestN != 0)
	}
	return nil
}

// DecodeInterest reads an Interest network message, having already consumed
// header.
func DecodeInterest(r *vle.Reader, header byte) (*Interest, *core.Error) {
	if mid(header) != idInterest {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Interest id")
	}
	id, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	mode, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	it := &Interest{ID: id, Mode: InterestMode(mode)}
	if r.Len() > 0 {
		we, err := decodeWireExpr(r, hasFlag(header, flagInterestN), core.MappingReceiver)
		if err != nil {
			return nil, err
		}
		it.WireExpr = &we
	}
	return it, nil
}

// DeclareKind distinguishes what resource a Declare is registering.
type DeclareKind uint8

const (
	DeclareSubscriber DeclareKind = iota
	DeclareQueryable
	DeclareKeyExpr
)

// Declare registers (or, via Undeclare semantics carried in Kind by
// convention of the caller, unregisters) a subscriber, queryable, or bound
// key-expression alias on the peer.
type Declare struct {
	ID       uint32
	Kind     DeclareKind
	WireExpr core.WireExpr
}

const flagDeclareN = 1 << 5

// Encode writes a Declare network message.
func (d *Declare) Encode(w *vle.Writer) *core.Error {
	header := byte(idDeclare)
	if d.WireExpr.Suffix != "" {
		header |= flagDeclareN
	}
	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := w.WriteUint32(d.ID); err != nil {
		return err
	}
	if err := w.WriteByte(byte(d.Kind)); err != nil {
		return err
	}
	return encodeWireExpr(w, d.WireExpr, header&flagDeclareN != 0)
}

// DecodeDeclare reads a Declare network message, having already consumed
// header.
func DecodeDeclare(r *vle.Reader, header byte) (*Declare, *core.Error) {
	if mid(header) != idDeclare {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Declare id")
	}
	id, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	kind, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	we, err := decodeWireExpr(r, hasFlag(header, flagDeclareN), core.MappingReceiver)
	if err != nil {
		return nil, err
	}
	return &Declare{ID: id, Kind: DeclareKind(kind), WireExpr: we}, nil
}

// NetworkMessage is the decoded union of every network-layer message a Frame
// may carry.
type NetworkMessage struct {
	Push          *Push
	Request       *Request
	Response      *Response
	ResponseFinal *ResponseFinal
	Interest      *Interest
	Declare       *Declare
}

// Encode writes whichever single variant of m is set.
func (m *NetworkMessage) Encode(w *vle.Writer) *core.Error {
	switch {
	case m.Push != nil:
		return m.Push.Encode(w)
	case m.Request != nil:
		return m.Request.Encode(w)
	case m.Response != nil:
		return m.Response.Encode(w)
	case m.ResponseFinal != nil:
		return m.ResponseFinal.Encode(w)
	case m.Interest != nil:
		return m.Interest.Encode(w)
	case m.Declare != nil:
		return m.Declare.Encode(w)
	default:
		return core.NewError(core.InvalidArgument, "wire: empty NetworkMessage")
	}
}

// DecodeNetworkMessage reads one network message and dispatches on its
// header id.
func DecodeNetworkMessage(r *vle.Reader) (*NetworkMessage, *core.Error) {
	header, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch mid(header) {
	case idPush:
		p, err := DecodePush(r, header)
		if err != nil {
			return nil, err
		}
		return &NetworkMessage{Push: p}, nil
	case idRequest:
		req, err := DecodeRequest(r, header)
		if err != nil {
			return nil, err
		}
		return &NetworkMessage{Request: req}, nil
	case idResponse:
		resp, err := DecodeResponse(r, header)
		if err != nil {
			return nil, err
		}
		return &NetworkMessage{Response: resp}, nil
	case idResponseFinal:
		rf, err := DecodeResponseFinal(r, header)
		if err != nil {
			return nil, err
		}
		return &NetworkMessage{ResponseFinal: rf}, nil
	case idInterest:
		it, err := DecodeInterest(r, header)
		if err != nil {
			return nil, err
		}
		return &NetworkMessage{Interest: it}, nil
	case idDeclare:
		d, err := DecodeDeclare(r, header)
		if err != nil {
			return nil, err
		}
		return &NetworkMessage{Declare: d}, nil
	default:
		return nil, core.NewError(core.CouldNotParse, "wire: unknown network message id")
	}
}
