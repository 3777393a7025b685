package wire

import (
	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/ext"
	"github.com/zenohgo/zenoh08/vle"
)

// Extension ids shared by the zenoh-layer bodies.
const (
	extSourceInfo = 0x1
	extAttachment = 0x3
)

// SourceInfo is the sequence-number-tagged origin of a Put/Reply/Err,
// carried as an extension rather than a base field.
type SourceInfo struct {
	SN uint32
}

// Attachment is an opaque application-supplied byte blob riding alongside a
// message, carried as an extension.
type Attachment struct {
	Buffer []byte
}

// Consolidation is left as an opaque wire token: its tie-break semantics for
// Auto are application-defined, so this codec neither interprets nor
// validates the value, it only round-trips it.
type Consolidation uint8

// Put is the body of a publication: a timestamped, encoded payload.
type Put struct {
	Timestamp  *core.Timestamp
	Encoding   core.Encoding
	SInfo      *SourceInfo
	Attachment *Attachment
	Payload    []byte
}

const (
	flagPutT = 1 << 6 // timestamp present
	flagPutE = 1 << 5 // encoding present (non-empty)
)

func encodePut(w *vle.Writer, p *Put) *core.Error {
	var exts []ext.Extension
	if p.SInfo != nil {
		exts = append(exts, ext.Extension{ID: extSourceInfo, Kind: ext.U64, Value: uint64(p.SInfo.SN)})
	}
	if p.Attachment != nil {
		exts = append(exts, ext.Extension{ID: extAttachment, Kind: ext.ZBuf, Body: p.Attachment.Buffer})
	}

	header := byte(idPut)
	if p.Timestamp != nil {
		header |= flagPutT
	}
	if p.Encoding.HasSchema() || p.Encoding.ID != 0 {
		header |= flagPutE
	}
	zFlag, zerr := peekExtFlag(exts)
	if zerr != nil {
		return zerr
	}
	header |= zFlag

	if err := w.WriteByte(header); err != nil {
		return err
	}
	if p.Timestamp != nil {
		if err := encodeTimestamp(w, *p.Timestamp); err != nil {
			return err
		}
	}
	if header&flagPutE != 0 {
		if err := encodeEncoding(w, p.Encoding); err != nil {
			return err
		}
	}
	if _, err := writeExtBlock(w, exts); err != nil {
		return err
	}
	return w.WriteBytes(p.Payload)
}

func decodePut(r *vle.Reader, header byte) (*Put, *core.Error) {
	if mid(header) != idPut {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Put id")
	}
	p := &Put{}
	if hasFlag(header, flagPutT) {
		ts, err := decodeTimestamp(r)
		if err != nil {
			return nil, err
		}
		p.Timestamp = &ts
	}
	if hasFlag(header, flagPutE) {
		enc, err := decodeEncoding(r)
		if err != nil {
			return nil, err
		}
		p.Encoding = enc
	}
	if hasFlag(header, flagZ) {
		if err := ext.Decode(r, putExtHandler(p)); err != nil {
			return nil, err
		}
	}
	payload, err := r.ReadBoundedBytes(r.Len())
	if err != nil {
		return nil, err
	}
	p.Payload = payload
	return p, nil
}

func putExtHandler(p *Put) ext.Handler {
	return func(id uint8, kind ext.Kind, mandatory bool, r *vle.Reader) (bool, *core.Error) {
		switch id {
		case extSourceInfo:
			v, err := r.ReadUint64()
			if err != nil {
				return false, err
			}
			p.SInfo = &SourceInfo{SN: uint32(v)}
			return true, nil
		case extAttachment:
			b, err := r.ReadBoundedBytes(r.Len())
			if err != nil {
				return false, err
			}
			p.Attachment = &Attachment{Buffer: b}
			return true, nil
		default:
			return false, nil
		}
	}
}

// Query is the body of a request: a parameter string plus an optional value.
type Query struct {
	Consolidation Consolidation
	Parameters    string
	SInfo         *SourceInfo
	Body          *Put
	Attachment    *Attachment
}

const flagQueryB = 1 << 5 // value body present

func encodeQuery(w *vle.Writer, q *Query) *core.Error {
	var exts []ext.Extension
	if q.SInfo != nil {
		exts = append(exts, ext.Extension{ID: extSourceInfo, Kind: ext.U64, Value: uint64(q.SInfo.SN)})
	}
	if q.Attachment != nil {
		exts = append(exts, ext.Extension{ID: extAttachment, Kind: ext.ZBuf, Body: q.Attachment.Buffer})
	}

	header := byte(idQuery)
	if q.Body != nil {
		header |= flagQueryB
	}
	zFlag, zerr := peekExtFlag(exts)
	if zerr != nil {
		return zerr
	}
	header |= zFlag

	if err := w.WriteByte(header); err != nil {
		return err
	}
	if err := w.WriteByte(byte(q.Consolidation)); err != nil {
		return err
	}
	if err := w.WriteString(q.Parameters); err != nil {
		return err
	}
	if _, err := writeExtBlock(w, exts); err != nil {
		return err
	}
	if q.Body != nil {
		return encodeValueBody(w, q.Body)
	}
	return nil
}

// encodeValueBody writes just the encoding+payload pair a Query body
// carries, without Put's own header/timestamp/extension envelope.
func encodeValueBody(w *vle.Writer, p *Put) *core.Error {
	if err := encodeEncoding(w, p.Encoding); err != nil {
		return err
	}
	return w.WriteBytes(p.Payload)
}

func decodeValueBody(r *vle.Reader) (*Put, *core.Error) {
	enc, err := decodeEncoding(r)
	if err != nil {
		return nil, err
	}
	payload, err := r.ReadBoundedBytes(r.Len())
	if err != nil {
		return nil, err
	}
	return &Put{Encoding: enc, Payload: payload}, nil
}

func decodeQuery(r *vle.Reader, header byte) (*Query, *core.Error) {
	if mid(header) != idQuery {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Query id")
	}
	q := &Query{}
	c, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	q.Consolidation = Consolidation(c)
	params, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	q.Parameters = params
	if hasFlag(header, flagZ) {
		if err := ext.Decode(r, queryExtHandler(q)); err != nil {
			return nil, err
		}
	}
	if hasFlag(header, flagQueryB) {
		body, err := decodeValueBody(r)
		if err != nil {
			return nil, err
		}
		q.Body = body
	}
	return q, nil
}

func queryExtHandler(q *Query) ext.Handler {
	return func(id uint8, kind ext.Kind, mandatory bool, r *vle.Reader) (bool, *core.Error) {
		switch id {
		case extSourceInfo:
			v, err := r.ReadUint64()
			if err != nil {
				return false, err
			}
			q.SInfo = &SourceInfo{SN: uint32(v)}
			return true, nil
		case extAttachment:
			b, err := r.ReadBoundedBytes(r.Len())
			if err != nil {
				return false, err
			}
			q.Attachment = &Attachment{Buffer: b}
			return true, nil
		default:
			return false, nil
		}
	}
}

// Reply is the successful body of a Response: a consolidation token plus the
// pushed value (always a Put on this wire, per PushBody's single variant).
type Reply struct {
	Consolidation Consolidation
	Payload       Put
}

func encodeReply(w *vle.Writer, rep *Reply) *core.Error {
	if err := w.WriteByte(idReply); err != nil {
		return err
	}
	if err := w.WriteByte(byte(rep.Consolidation)); err != nil {
		return err
	}
	return encodePut(w, &rep.Payload)
}

func decodeReply(r *vle.Reader, header byte) (*Reply, *core.Error) {
	if mid(header) != idReply {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Reply id")
	}
	c, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	innerHeader, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	put, err := decodePut(r, innerHeader)
	if err != nil {
		return nil, err
	}
	return &Reply{Consolidation: Consolidation(c), Payload: *put}, nil
}

// Err is the failure body of a Response.
type Err struct {
	Encoding core.Encoding
	SInfo    *SourceInfo
	Payload  []byte
}

const flagErrE = 1 << 5

func encodeErr(w *vle.Writer, e *Err) *core.Error {
	var exts []ext.Extension
	if e.SInfo != nil {
		exts = append(exts, ext.Extension{ID: extSourceInfo, Kind: ext.U64, Value: uint64(e.SInfo.SN)})
	}
	header := byte(idErr)
	if e.Encoding.HasSchema() || e.Encoding.ID != 0 {
		header |= flagErrE
	}
	zFlag, zerr := peekExtFlag(exts)
	if zerr != nil {
		return zerr
	}
	header |= zFlag

	if err := w.WriteByte(header); err != nil {
		return err
	}
	if header&flagErrE != 0 {
		if err := encodeEncoding(w, e.Encoding); err != nil {
			return err
		}
	}
	if _, err := writeExtBlock(w, exts); err != nil {
		return err
	}
	return w.WriteBytes(e.Payload)
}

func decodeErr(r *vle.Reader, header byte) (*Err, *core.Error) {
	if mid(header) != idErr {
		return nil, core.NewError(core.CouldNotParse, "wire: expected Err id")
	}
	e := &Err{}
	if hasFlag(header, flagErrE) {
		enc, err := decodeEncoding(r)
		if err != nil {
			return nil, err
		}
		e.Encoding = enc
	}
	if hasFlag(header, flagZ) {
		zerr := ext.Decode(r, func(id uint8, kind ext.Kind, mandatory bool, r *vle.Reader) (bool, *core.Error) {
			if id == extSourceInfo {
				v, err := r.ReadUint64()
				if err != nil {
					return false, err
				}
				e.SInfo = &SourceInfo{SN: uint32(v)}
				return true, nil
			}
			return false, nil
		})
		if zerr != nil {
			return nil, zerr
		}
	}
	payload, err := r.ReadBoundedBytes(r.Len())
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return e, nil
}

// PushBody is the tagged union carried by a Push network message. Today it
// has a single variant, matching the source's PushBody enum.
type PushBody struct {
	Put Put
}

// RequestBody is the tagged union carried by a Request network message.
type RequestBody struct {
	Query Query
}

// ResponseBody is the tagged union carried by a Response network message:
// exactly one of Reply or Err is set.
type ResponseBody struct {
	Reply *Reply
	Err   *Err
}

func peekExtFlag(exts []ext.Extension) (byte, *core.Error) {
	if len(exts) == 0 {
		return 0, nil
	}
	return flagZ, nil
}

func encodeTimestamp(w *vle.Writer, ts core.Timestamp) *core.Error {
	if err := w.WriteUint64(uint64(ts.Time)); err != nil {
		return err
	}
	return w.WriteBoundedBytes(ts.ID.Bytes(), core.MaxIDLen)
}

func decodeTimestamp(r *vle.Reader) (core.Timestamp, *core.Error) {
	t, err := r.ReadUint64()
	if err != nil {
		return core.Timestamp{}, err
	}
	idBytes, err := r.ReadBoundedBytes(core.MaxIDLen)
	if err != nil {
		return core.Timestamp{}, err
	}
	id, zerr := core.IDFromBytes(idBytes)
	if zerr != nil {
		return core.Timestamp{}, zerr
	}
	return core.Timestamp{Time: core.NTP64(t), ID: id}, nil
}

func encodeEncoding(w *vle.Writer, enc core.Encoding) *core.Error {
	var sFlag uint64
	if enc.HasSchema() {
		sFlag = 1
	}
	if err := w.WriteUint64(uint64(enc.ID)<<1 | sFlag); err != nil {
		return err
	}
	if enc.HasSchema() {
		return w.WriteBytes(enc.Schema)
	}
	return nil
}

func decodeEncoding(r *vle.Reader) (core.Encoding, *core.Error) {
	v, err := r.ReadUint64()
	if err != nil {
		return core.Encoding{}, err
	}
	enc := core.Encoding{ID: uint16(v >> 1)}
	if v&1 == 1 {
		schema, err := r.ReadBoundedBytes(r.Len())
		if err != nil {
			return core.Encoding{}, err
		}
		enc.Schema = schema
	}
	return enc, nil
}
