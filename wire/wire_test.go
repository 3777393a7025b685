package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/ext"
	"github.com/zenohgo/zenoh08/vle"
	"github.com/zenohgo/zenoh08/wire"
)

func TestEncodingRoundTrip(t *testing.T) {
	var buf [32]byte
	w := vle.NewWriter(buf[:])
	p := &wire.Push{
		WireExpr: core.WireExpr{Suffix: "demo/example"},
		Payload:  wire.PushBody{Put: wire.Put{Encoding: core.Encoding{ID: 42}, Payload: []byte("x")}},
	}
	require.Nil(t, p.Encode(w))

	r := vle.NewReader(w.Bytes())
	header, zerr := r.ReadByte()
	require.Nil(t, zerr)
	got, zerr := wire.DecodePush(r, header)
	require.Nil(t, zerr)
	assert.EqualValues(t, 42, got.Payload.Put.Encoding.ID)
	assert.False(t, got.Payload.Put.Encoding.HasSchema())
}

func TestPutRoundTrip(t *testing.T) {
	var buf [128]byte
	w := vle.NewWriter(buf[:])
	push := &wire.Push{
		WireExpr: core.WireExpr{Suffix: "demo/example"},
		Payload: wire.PushBody{Put: wire.Put{
			Payload: []byte("Hello"),
		}},
	}
	require.Nil(t, push.Encode(w))

	r := vle.NewReader(w.Bytes())
	msg, zerr := wire.DecodeNetworkMessage(r)
	require.Nil(t, zerr)
	require.NotNil(t, msg.Push)
	assert.Equal(t, "demo/example", msg.Push.WireExpr.Suffix)
	assert.Equal(t, []byte("Hello"), msg.Push.Payload.Put.Payload)
}

func TestPutWithTimestampAndAttachment(t *testing.T) {
	var buf [256]byte
	w := vle.NewWriter(buf[:])

	id, zerr := core.IDFromBytes([]byte{1, 2, 3})
	require.Nil(t, zerr)
	ts := core.Timestamp{Time: 123456789, ID: id}

	p := &wire.Put{
		Timestamp:  &ts,
		Encoding:   core.Encoding{ID: 7, Schema: []byte("json")},
		SInfo:      &wire.SourceInfo{SN: 9},
		Attachment: &wire.Attachment{Buffer: []byte("meta")},
		Payload:    []byte("payload"),
	}
	push := &wire.Push{WireExpr: core.WireExpr{Suffix: "a/b"}, Payload: wire.PushBody{Put: *p}}
	require.Nil(t, push.Encode(w))

	r := vle.NewReader(w.Bytes())
	msg, zerr := wire.DecodeNetworkMessage(r)
	require.Nil(t, zerr)
	got := msg.Push.Payload.Put
	require.NotNil(t, got.Timestamp)
	assert.EqualValues(t, 123456789, got.Timestamp.Time)
	assert.True(t, got.Timestamp.ID.Equal(id))
	assert.EqualValues(t, 7, got.Encoding.ID)
	assert.Equal(t, []byte("json"), got.Encoding.Schema)
	require.NotNil(t, got.SInfo)
	assert.EqualValues(t, 9, got.SInfo.SN)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, []byte("meta"), got.Attachment.Buffer)
	assert.Equal(t, []byte("payload"), got.Payload)
}

func TestRequestResponseResponseFinalRoundTrip(t *testing.T) {
	var wbuf [256]byte
	w := vle.NewWriter(wbuf[:])
	req := &wire.Request{
		ID:       7,
		WireExpr: core.WireExpr{Suffix: "demo/query"},
		Target:   1,
		Payload:  wire.RequestBody{Query: wire.Query{Parameters: "k=v"}},
	}
	require.Nil(t, req.Encode(w))

	r := vle.NewReader(w.Bytes())
	msg, zerr := wire.DecodeNetworkMessage(r)
	require.Nil(t, zerr)
	require.NotNil(t, msg.Request)
	assert.EqualValues(t, 7, msg.Request.ID)
	assert.Equal(t, "k=v", msg.Request.Payload.Query.Parameters)

	var rbuf [256]byte
	rw := vle.NewWriter(rbuf[:])
	resp := &wire.Response{
		RID:      7,
		WireExpr: core.WireExpr{Suffix: "demo/query"},
		Payload:  wire.ResponseBody{Reply: &wire.Reply{Payload: wire.Put{Payload: []byte("answer")}}},
	}
	require.Nil(t, resp.Encode(rw))
	rr := vle.NewReader(rw.Bytes())
	rmsg, zerr := wire.DecodeNetworkMessage(rr)
	require.Nil(t, zerr)
	require.NotNil(t, rmsg.Response)
	require.NotNil(t, rmsg.Response.Payload.Reply)
	assert.Equal(t, []byte("answer"), rmsg.Response.Payload.Reply.Payload.Payload)

	var fbuf [16]byte
	fw := vle.NewWriter(fbuf[:])
	rf := &wire.ResponseFinal{RID: 7}
	require.Nil(t, rf.Encode(fw))
	fr := vle.NewReader(fw.Bytes())
	fmsg, zerr := wire.DecodeNetworkMessage(fr)
	require.Nil(t, zerr)
	require.NotNil(t, fmsg.ResponseFinal)
	assert.EqualValues(t, 7, fmsg.ResponseFinal.RID)
}

func TestErrResponseRoundTrip(t *testing.T) {
	var buf [64]byte
	w := vle.NewWriter(buf[:])
	resp := &wire.Response{
		RID:      3,
		WireExpr: core.WireExpr{Suffix: "demo/query"},
		Payload:  wire.ResponseBody{Err: &wire.Err{Encoding: core.Encoding{ID: 1}, Payload: []byte("boom")}},
	}
	require.Nil(t, resp.Encode(w))
	r := vle.NewReader(w.Bytes())
	msg, zerr := wire.DecodeNetworkMessage(r)
	require.Nil(t, zerr)
	require.NotNil(t, msg.Response.Payload.Err)
	assert.Equal(t, []byte("boom"), msg.Response.Payload.Err.Payload)
}

func TestInterestAndDeclareRoundTrip(t *testing.T) {
	var buf [64]byte
	w := vle.NewWriter(buf[:])
	we := core.WireExpr{Suffix: "demo/**"}
	it := &wire.Interest{ID: 1, Mode: wire.InterestCurrent | wire.InterestFuture, WireExpr: &we}
	require.Nil(t, it.Encode(w))
	r := vle.NewReader(w.Bytes())
	msg, zerr := wire.DecodeNetworkMessage(r)
	require.Nil(t, zerr)
	require.NotNil(t, msg.Interest)
	assert.Equal(t, "demo/**", msg.Interest.WireExpr.Suffix)

	var dbuf [64]byte
	dw := vle.NewWriter(dbuf[:])
	d := &wire.Declare{ID: 2, Kind: wire.DeclareSubscriber, WireExpr: core.WireExpr{Suffix: "demo/topic"}}
	require.Nil(t, d.Encode(dw))
	dr := vle.NewReader(dw.Bytes())
	dmsg, zerr := wire.DecodeNetworkMessage(dr)
	require.Nil(t, zerr)
	require.NotNil(t, dmsg.Declare)
	assert.Equal(t, wire.DeclareSubscriber, dmsg.Declare.Kind)
}

func TestHandshakeMessagesRoundTrip(t *testing.T) {
	zidA, _ := core.IDFromBytes([]byte{0xAA, 0xBB})
	zidB, _ := core.IDFromBytes([]byte{0xCC})
	res := core.NewResolution(core.Bits32, core.Bits16)

	var buf [64]byte
	w := vle.NewWriter(buf[:])
	syn := &wire.InitSyn{Version: 8, ZID: zidA, Resolution: res}
	require.Nil(t, syn.Encode(w))
	r := vle.NewReader(w.Bytes())
	header, zerr := r.ReadByte()
	require.Nil(t, zerr)
	gotSyn, zerr := wire.DecodeInitSyn(r, header)
	require.Nil(t, zerr)
	assert.True(t, gotSyn.ZID.Equal(zidA))
	assert.Equal(t, res, gotSyn.Resolution)

	var abuf [64]byte
	aw := vle.NewWriter(abuf[:])
	ack := &wire.InitAck{Version: 8, ZID: zidB, Resolution: res, Cookie: []byte("cookie")}
	require.Nil(t, ack.Encode(aw))
	ar := vle.NewReader(aw.Bytes())
	aheader, zerr := ar.ReadByte()
	require.Nil(t, zerr)
	gotAck, zerr := wire.DecodeInitAck(ar, aheader)
	require.Nil(t, zerr)
	assert.True(t, gotAck.ZID.Equal(zidB))
	assert.Equal(t, []byte("cookie"), gotAck.Cookie)

	var obuf [64]byte
	ow := vle.NewWriter(obuf[:])
	osyn := &wire.OpenSyn{Lease: 20000, InitialSN: 5, Cookie: []byte("cookie")}
	require.Nil(t, osyn.Encode(ow))
	or := vle.NewReader(ow.Bytes())
	oheader, zerr := or.ReadByte()
	require.Nil(t, zerr)
	gotOSyn, zerr := wire.DecodeOpenSyn(or, oheader)
	require.Nil(t, zerr)
	assert.EqualValues(t, 20000, gotOSyn.Lease)
	assert.EqualValues(t, 5, gotOSyn.InitialSN)

	var oabuf [64]byte
	oaw := vle.NewWriter(oabuf[:])
	oack := &wire.OpenAck{Lease: 20000, InitialSN: 5}
	require.Nil(t, oack.Encode(oaw))
	oar := vle.NewReader(oaw.Bytes())
	oaheader, zerr := oar.ReadByte()
	require.Nil(t, zerr)
	gotOAck, zerr := wire.DecodeOpenAck(oar, oaheader)
	require.Nil(t, zerr)
	assert.EqualValues(t, 5, gotOAck.InitialSN)
}

func TestKeepAliveAndCloseRoundTrip(t *testing.T) {
	var buf [8]byte
	w := vle.NewWriter(buf[:])
	require.Nil(t, (&wire.KeepAlive{}).Encode(w))
	r := vle.NewReader(w.Bytes())
	header, zerr := r.ReadByte()
	require.Nil(t, zerr)
	_, zerr = wire.DecodeKeepAlive(r, header)
	require.Nil(t, zerr)

	var cbuf [8]byte
	cw := vle.NewWriter(cbuf[:])
	require.Nil(t, (&wire.Close{Reason: 3, Behaviour: wire.CloseSession}).Encode(cw))
	cr := vle.NewReader(cw.Bytes())
	cheader, zerr := cr.ReadByte()
	require.Nil(t, zerr)
	c, zerr := wire.DecodeClose(cr, cheader)
	require.Nil(t, zerr)
	assert.EqualValues(t, 3, c.Reason)
	assert.Equal(t, wire.CloseSession, c.Behaviour)
}

func TestFrameHeaderRoundTrip(t *testing.T) {
	var buf [16]byte
	w := vle.NewWriter(buf[:])
	qos := uint8(5)
	f := &wire.Frame{Reliability: wire.Reliable, SN: 42, QoS: &qos}
	require.Nil(t, f.EncodeHeader(w))

	r := vle.NewReader(w.Bytes())
	header, zerr := r.ReadByte()
	require.Nil(t, zerr)
	got, zerr := wire.DecodeFrameHeader(r, header)
	require.Nil(t, zerr)
	assert.Equal(t, wire.Reliable, got.Reliability)
	assert.EqualValues(t, 42, got.SN)
	require.NotNil(t, got.QoS)
	assert.EqualValues(t, 5, *got.QoS)
}

// TestUnknownExtensionSkippedInPush hand-crafts a Push extension block with
// an unknown non-mandatory extension between two known ones, checking the
// known extensions still decode — the codec-wide extension-skipping
// property from the testable-properties list.
func TestUnknownExtensionSkippedInPush(t *testing.T) {
	var buf [128]byte
	w := vle.NewWriter(buf[:])

	require.Nil(t, w.WriteByte(byte(0x01)|1<<6|1<<7|1<<5)) // idPush, M, Z, N
	require.Nil(t, w.WriteUint16(0))
	require.Nil(t, w.WriteString("demo/ext"))

	exts := []ext.Extension{
		{ID: 1, Kind: ext.U64, Value: 5},             // QoS, known
		{ID: 9, Kind: ext.ZBuf, Body: []byte("new")}, // unknown to this codec version
		{ID: 3, Kind: ext.U64, Value: 77},             // NodeID, known
	}
	require.Nil(t, ext.Encode(w, exts))
	require.Nil(t, w.WriteByte(0x01)) // bare Put header, no T/E/Z flags
	require.Nil(t, w.WriteBytes([]byte("payload")))

	r := vle.NewReader(w.Bytes())
	msg, zerr := wire.DecodeNetworkMessage(r)
	require.Nil(t, zerr)
	require.NotNil(t, msg.Push)
	require.NotNil(t, msg.Push.QoS)
	assert.EqualValues(t, 5, *msg.Push.QoS)
	require.NotNil(t, msg.Push.NodeID)
	assert.EqualValues(t, 77, *msg.Push.NodeID)
	assert.Equal(t, []byte("payload"), msg.Push.Payload.Put.Payload)
}
