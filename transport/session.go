// Package transport implements the session state machine: handshake
// negotiation, per-reliability sequence-number tracking, keep-alive
// scheduling, and the per-session Router, all driven over a link.Tx/Rx pair
// via the batch package's framing.
package transport

import (
	"bytes"
	"time"

	"github.com/pion/logging"

	"github.com/zenohgo/zenoh08/batch"
	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/link"
	"github.com/zenohgo/zenoh08/wire"
)

// Session is one negotiated peer connection: its identity pair, negotiated
// resolution, per-reliability sequence counters, keep-alive schedule, and
// the Router that delivers inbound traffic to local subscribers and request
// sinks.
type Session struct {
	cfg Config
	log logging.LeveledLogger

	tx       link.Tx
	rx       link.Rx
	streamed bool

	writeBuf []byte
	readBuf  []byte
	writer   *batch.Writer

	state      State
	connecting *connectingState

	LocalZID   core.ID
	PeerZID    core.ID
	Resolution core.Resolution

	reliableSN   *snCounter
	bestEffortSN *snCounter

	keepAlive *keepAliveScheduler

	Router *Router

	// OnRequest and OnInterest are invoked inline from RecvOnce for network
	// messages the Router does not interpret itself — Request/Interest
	// handling is application policy, not session-layer routing.
	OnRequest  func(*wire.Request)
	OnInterest func(*wire.Interest)
}

// connectingState materializes spec's Connecting{negotiated, mine,
// other_zid} variant: resolution has been negotiated and both zids are
// known, but the sequence-number counters and keep-alive schedule — which
// depend on initialSN and the peer's lease, only available once OpenAck (or
// OpenSyn, for the accepting side) arrives — are not yet set up.
type connectingState struct {
	resolution core.Resolution
	mine       core.ID
	otherZID   core.ID
}

// newConnectingSession builds a Session in the Connecting state, right after
// resolution negotiation completes and before the handshake's final message
// (OpenAck) is sent or received.
func newConnectingSession(cfg Config, mine, otherZID core.ID, resolution core.Resolution, tx link.Tx, rx link.Rx, streamed bool, writeBuf, readBuf []byte, log logging.LeveledLogger) *Session {
	return &Session{
		cfg:        cfg,
		log:        log,
		tx:         tx,
		rx:         rx,
		streamed:   streamed,
		writeBuf:   writeBuf,
		readBuf:    readBuf,
		writer:     batch.NewWriter(writeBuf, streamed),
		state:      Connecting,
		connecting: &connectingState{resolution: resolution, mine: mine, otherZID: otherZID},
		LocalZID:   mine,
		PeerZID:    otherZID,
		Resolution: resolution,
		Router:     NewRouter(cfg.MaxTableEntries),
	}
}

// completeOpen finishes the handshake: it builds the per-reliability
// sequence counters and the keep-alive schedule from the peer's lease and
// the derived initial sequence number, and transitions the session from
// Connecting to Connected.
func (s *Session) completeOpen(peerLease time.Duration, initialSN uint64, now time.Time) {
	mask := s.connecting.resolution.FrameSN().Mask()
	s.reliableSN = newSNCounter(mask, initialSN)
	s.bestEffortSN = newSNCounter(mask, initialSN)
	s.keepAlive = newKeepAliveScheduler(peerLease, now)
	// Send KeepAlives against this side's own announced lease, the one the
	// peer expires this side on.
	s.keepAlive.interval = s.cfg.Lease / keepAliveDivisor
	s.connecting = nil
	s.state = Connected
}

// State reports the session's current lifecycle position: Disconnected,
// Connecting (resolution negotiated, zids known, handshake not yet
// complete), or Connected.
func (s *Session) State() State { return s.state }

func firstTransportMessage(raw []byte) (*wire.TransportMessage, *core.Error) {
	r := batch.NewReader(raw)
	item, err := r.Next()
	if err != nil {
		return nil, err
	}
	if item.Transport == nil {
		return nil, core.NewError(core.CouldNotParse, "transport: expected a standalone transport message")
	}
	return item.Transport, nil
}

func leaseMillis(d time.Duration) uint32 { return uint32(d / time.Millisecond) }

// Open drives the client side of the handshake — InitSyn, then InitAck,
// then OpenSyn, then OpenAck — over an already-established link, and
// returns a Connected Session.
func Open(cfg Config, tx link.Tx, rx link.Rx, streamed bool, now time.Time) (*Session, *core.Error) {
	cfg = cfg.withDefaults()
	zid, genErr := cfg.ZIDGenerator.NewID()
	if genErr != nil {
		return nil, core.Wrap(core.InvalidArgument, "transport: generate local zid", genErr)
	}
	log := cfg.LoggerFactory.NewLogger("transport")

	writeBuf := make([]byte, cfg.BatchSize+batch.LengthPrefixLen)
	readBuf := make([]byte, cfg.BatchSize+batch.LengthPrefixLen)
	w := batch.NewWriter(writeBuf, streamed)

	if err := w.WriteTransportMessage(&wire.TransportMessage{InitSyn: &wire.InitSyn{
		Version:    ProtocolVersion,
		ZID:        zid,
		Resolution: cfg.Resolution,
	}}); err != nil {
		return nil, err
	}
	if err := batch.SendBatch(tx, w); err != nil {
		return nil, err
	}

	raw, err := batch.ReadBatch(rx, streamed, readBuf)
	if err != nil {
		return nil, err
	}
	tm, err := firstTransportMessage(raw)
	if err != nil {
		return nil, err
	}
	if tm.InitAck == nil {
		return nil, core.NewError(core.CouldNotParse, "transport: expected InitAck")
	}
	ack := tm.InitAck

	resolution, err := negotiateResolution(cfg.Resolution, ack.Resolution)
	if err != nil {
		return nil, err
	}
	initialSN := InitialSN(zid, ack.ZID, resolution.FrameSN())

	// Resolution is negotiated and both zids are known: the session enters
	// Connecting here, before OpenAck has even been sent.
	s := newConnectingSession(cfg, zid, ack.ZID, resolution, tx, rx, streamed, writeBuf, readBuf, log)

	if err := s.writer.WriteTransportMessage(&wire.TransportMessage{OpenSyn: &wire.OpenSyn{
		Lease:     leaseMillis(cfg.Lease),
		InitialSN: initialSN,
		Cookie:    ack.Cookie,
	}}); err != nil {
		return nil, err
	}
	if err := batch.SendBatch(s.tx, s.writer); err != nil {
		return nil, err
	}

	raw, err = batch.ReadBatch(s.rx, s.streamed, s.readBuf)
	if err != nil {
		return nil, err
	}
	tm, err = firstTransportMessage(raw)
	if err != nil {
		return nil, err
	}
	if tm.OpenAck == nil {
		return nil, core.NewError(core.CouldNotParse, "transport: expected OpenAck")
	}

	peerLease := time.Duration(tm.OpenAck.Lease) * time.Millisecond
	s.completeOpen(peerLease, initialSN, now)
	log.Infof("session opened with peer %x, resolution %08b, lease %s", ack.ZID.Bytes(), resolution, peerLease)
	return s, nil
}

// Accept drives the server side of the handshake, replying to an inbound
// InitSyn/OpenSyn pair with InitAck/OpenAck. cookie is an opaque value this
// side chose (e.g. a signed local secret) that must come back unchanged in
// the peer's OpenSyn.
func Accept(cfg Config, tx link.Tx, rx link.Rx, streamed bool, cookie []byte, now time.Time) (*Session, *core.Error) {
	cfg = cfg.withDefaults()
	zid, genErr := cfg.ZIDGenerator.NewID()
	if genErr != nil {
		return nil, core.Wrap(core.InvalidArgument, "transport: generate local zid", genErr)
	}
	log := cfg.LoggerFactory.NewLogger("transport")

	writeBuf := make([]byte, cfg.BatchSize+batch.LengthPrefixLen)
	readBuf := make([]byte, cfg.BatchSize+batch.LengthPrefixLen)

	raw, err := batch.ReadBatch(rx, streamed, readBuf)
	if err != nil {
		return nil, err
	}
	tm, err := firstTransportMessage(raw)
	if err != nil {
		return nil, err
	}
	if tm.InitSyn == nil {
		return nil, core.NewError(core.CouldNotParse, "transport: expected InitSyn")
	}
	syn := tm.InitSyn

	resolution, err := negotiateResolution(cfg.Resolution, syn.Resolution)
	if err != nil {
		return nil, err
	}

	// Resolution is negotiated and both zids are known: the session enters
	// Connecting here, before InitAck has even been sent.
	s := newConnectingSession(cfg, zid, syn.ZID, resolution, tx, rx, streamed, writeBuf, readBuf, log)

	if err := s.writer.WriteTransportMessage(&wire.TransportMessage{InitAck: &wire.InitAck{
		Version:    ProtocolVersion,
		ZID:        zid,
		Resolution: resolution,
		Cookie:     cookie,
	}}); err != nil {
		return nil, err
	}
	if err := batch.SendBatch(s.tx, s.writer); err != nil {
		return nil, err
	}

	raw, err = batch.ReadBatch(s.rx, s.streamed, s.readBuf)
	if err != nil {
		return nil, err
	}
	tm, err = firstTransportMessage(raw)
	if err != nil {
		return nil, err
	}
	if tm.OpenSyn == nil {
		return nil, core.NewError(core.CouldNotParse, "transport: expected OpenSyn")
	}
	openSyn := tm.OpenSyn
	if !bytes.Equal(openSyn.Cookie, cookie) {
		return nil, core.NewError(core.InvalidArgument, "transport: OpenSyn cookie mismatch")
	}

	initialSN := InitialSN(zid, syn.ZID, resolution.FrameSN())

	if err := s.writer.WriteTransportMessage(&wire.TransportMessage{OpenAck: &wire.OpenAck{
		Lease:     leaseMillis(cfg.Lease),
		InitialSN: initialSN,
	}}); err != nil {
		return nil, err
	}
	if err := batch.SendBatch(s.tx, s.writer); err != nil {
		return nil, err
	}

	peerLease := time.Duration(openSyn.Lease) * time.Millisecond
	s.completeOpen(peerLease, initialSN, now)
	log.Infof("session accepted from peer %x, resolution %08b, lease %s", syn.ZID.Bytes(), resolution, peerLease)
	return s, nil
}

// snFor returns the counter for a reliability class.
func (s *Session) snFor(r wire.Reliability) *snCounter {
	if r == wire.Reliable {
		return s.reliableSN
	}
	return s.bestEffortSN
}

// send frames msg alone in a fresh batch and flushes it immediately — this
// session never coalesces multiple application messages into one batch, a
// deliberate simplification the batch package's own Writer does not
// require of its callers.
func (s *Session) send(msg *wire.NetworkMessage, reliability wire.Reliability, qos *uint8, now time.Time) *core.Error {
	if s.state != Connected {
		return core.NewError(core.ConnectionClosed, "transport: session not connected")
	}
	s.writer.Reset()
	sn := s.snFor(reliability).Next()
	if err := s.writer.WriteMessage(msg, reliability, qos, sn); err != nil {
		return err
	}
	if err := batch.SendBatch(s.tx, s.writer); err != nil {
		return err
	}
	s.keepAlive.OnSend(now)
	return nil
}

// SendPush publishes a Put under wireExpr.
func (s *Session) SendPush(wireExpr core.WireExpr, put wire.Put, reliability wire.Reliability, qos *uint8, now time.Time) *core.Error {
	return s.send(&wire.NetworkMessage{Push: &wire.Push{WireExpr: wireExpr, Payload: wire.PushBody{Put: put}}}, reliability, qos, now)
}

// SendRequest issues a Query, returning the rid the caller should register a
// reply sink under via s.Router.NewRequestSink.
func (s *Session) SendRequest(rid uint32, wireExpr core.WireExpr, query wire.Query, reliability wire.Reliability, qos *uint8, now time.Time) *core.Error {
	return s.send(&wire.NetworkMessage{Request: &wire.Request{ID: rid, WireExpr: wireExpr, Payload: wire.RequestBody{Query: query}}}, reliability, qos, now)
}

// SendDeclare registers or unregisters a resource with the peer. A
// DeclareKeyExpr is also recorded in the Router's local alias table, so a
// later inbound wire expression referencing this id under MappingReceiver
// resolves correctly.
func (s *Session) SendDeclare(d wire.Declare, reliability wire.Reliability, qos *uint8, now time.Time) *core.Error {
	if d.Kind == wire.DeclareKeyExpr {
		if err := s.Router.DeclareLocalKeyExpr(uint16(d.ID), d.WireExpr.Suffix); err != nil {
			return err
		}
	}
	return s.send(&wire.NetworkMessage{Declare: &d}, reliability, qos, now)
}

// Close sends a Close transport message and transitions to Disconnected.
// Further Send/Recv calls return ConnectionClosed.
func (s *Session) Close(reason uint8, behaviour wire.CloseBehaviour) *core.Error {
	s.writer.Reset()
	if err := s.writer.WriteTransportMessage(&wire.TransportMessage{Close: &wire.Close{Reason: reason, Behaviour: behaviour}}); err == nil {
		batch.SendBatch(s.tx, s.writer)
	}
	s.state = Disconnected
	return s.tx.Close()
}

// RecvOnce reads and dispatches exactly one batch: Push/Response/
// ResponseFinal/Declare are routed through s.Router, Request/Interest go to
// the matching OnRequest/OnInterest hook if set, KeepAlive only resets the
// lease clock, and Close transitions the session to Disconnected.
func (s *Session) RecvOnce(now time.Time) *core.Error {
	if s.state != Connected {
		return core.NewError(core.ConnectionClosed, "transport: session not connected")
	}

	raw, err := batch.ReadBatch(s.rx, s.streamed, s.readBuf)
	if err != nil {
		s.state = Disconnected
		return err
	}
	s.keepAlive.OnRecv(now)

	r := batch.NewReader(raw)
	for {
		item, err := r.Next()
		if err != nil {
			return err
		}
		if item.Transport == nil && item.Network == nil {
			return nil
		}

		switch {
		case item.Transport != nil:
			if item.Transport.Close != nil {
				s.state = Disconnected
				return nil
			}
			// KeepAlive needs no further action beyond the OnRecv already
			// recorded above.
		case item.Network.Push != nil:
			if err := s.Router.HandlePush(item.Network.Push); err != nil {
				s.log.Warnf("dropping push: %v", err)
			}
		case item.Network.Response != nil:
			resp := item.Network.Response
			s.Router.HandleResponse(resp.RID, resp.Payload.Reply, resp.Payload.Err)
		case item.Network.ResponseFinal != nil:
			s.Router.HandleResponseFinal(item.Network.ResponseFinal.RID)
		case item.Network.Declare != nil:
			if err := s.Router.HandleDeclare(item.Network.Declare); err != nil {
				s.log.Warnf("dropping declare: %v", err)
			}
		case item.Network.Request != nil && s.OnRequest != nil:
			s.OnRequest(item.Network.Request)
		case item.Network.Interest != nil && s.OnInterest != nil:
			s.OnInterest(item.Network.Interest)
		}
	}
}

// Tick evaluates the keep-alive schedule and the request-sink expirations.
// It should be called periodically (e.g. on a timer shorter than
// lease/keepAliveDivisor) from the same task that owns s.tx.
func (s *Session) Tick(now time.Time) *core.Error {
	if s.state != Connected {
		return nil
	}
	s.Router.ExpireRequests(now)

	sendKeepAlive, disconnect := s.keepAlive.Tick(now)
	if disconnect {
		s.state = Disconnected
		return core.NewError(core.Timeout, "transport: peer lease expired")
	}
	if sendKeepAlive {
		s.writer.Reset()
		if err := s.writer.WriteTransportMessage(&wire.TransportMessage{KeepAlive: &wire.KeepAlive{}}); err != nil {
			return err
		}
		if err := batch.SendBatch(s.tx, s.writer); err != nil {
			return err
		}
		s.keepAlive.OnSend(now)
	}
	return nil
}
