package transport

import (
	"sync"
	"time"

	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/keyexpr"
	"github.com/zenohgo/zenoh08/wire"
)

// Sample is the application-facing shape of a delivered Put: a resolved key
// expression plus the payload fields a Push carried.
type Sample struct {
	KeyExpr    string
	Payload    []byte
	Encoding   core.Encoding
	Timestamp  *core.Timestamp
	Attachment []byte
}

// SubscriberCallback receives every Sample whose key expression intersects
// the subscription's. Per the concurrency model, this runs inline on the
// read loop; a callback that blocks stalls further frame decoding.
type SubscriberCallback func(Sample)

// ReplyCallback receives one Response's worth of Reply or Err for an
// outstanding request. Exactly one of reply/errReply is non-nil.
type ReplyCallback func(reply *wire.Reply, errReply *wire.Err)

type subscription struct {
	keyExpr  string
	callback SubscriberCallback
}

type requestSink struct {
	callback ReplyCallback
	onExpire func()
	deadline time.Time
}

// Router tracks a session's local subscriber/queryable declarations, the
// peer's declared key-expression aliases, and outstanding request sinks.
// Every table has a fixed capacity; overflow returns CapacityExceeded
// instead of growing, per the no-heap-growth design.
type Router struct {
	mu sync.Mutex

	maxEntries int
	nextID     uint32

	// remoteKeyExprs holds aliases the peer declared — indexed by
	// core.MappingSender wire expressions, which reference the sender's
	// (the peer's) own resolution table.
	remoteKeyExprs map[uint16]string
	// localKeyExprs holds aliases this side declared — indexed by
	// core.MappingReceiver wire expressions, which reference the
	// receiver's (this side's) own resolution table.
	localKeyExprs map[uint16]string
	subscribers   map[uint32]subscription
	queryables    map[uint32]subscription
	requests      map[uint32]requestSink
}

// NewRouter builds a Router whose subscriber, queryable, key-expression, and
// request tables each hold at most maxEntries.
func NewRouter(maxEntries int) *Router {
	return &Router{
		maxEntries:     maxEntries,
		remoteKeyExprs: make(map[uint16]string),
		localKeyExprs:  make(map[uint16]string),
		subscribers:    make(map[uint32]subscription),
		queryables:     make(map[uint32]subscription),
		requests:       make(map[uint32]requestSink),
	}
}

func (r *Router) allocID(table map[uint32]subscription) (uint32, *core.Error) {
	if len(table) >= r.maxEntries {
		return 0, core.NewError(core.CapacityExceeded, "transport: declaration table full")
	}
	id := r.nextID
	r.nextID++
	return id, nil
}

// Subscribe registers a local subscription, returning the id a matching
// Declare{Subscriber} message should carry to the peer.
func (r *Router) Subscribe(ke string, cb SubscriberCallback) (uint32, *core.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.allocID(r.subscribers)
	if err != nil {
		return 0, err
	}
	r.subscribers[id] = subscription{keyExpr: ke, callback: cb}
	return id, nil
}

// Unsubscribe removes a local subscription.
func (r *Router) Unsubscribe(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, id)
}

// RegisterQueryable registers a local queryable, mirroring Subscribe.
func (r *Router) RegisterQueryable(ke string, cb SubscriberCallback) (uint32, *core.Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.allocID(r.queryables)
	if err != nil {
		return 0, err
	}
	r.queryables[id] = subscription{keyExpr: ke, callback: cb}
	return id, nil
}

// UnregisterQueryable removes a local queryable.
func (r *Router) UnregisterQueryable(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queryables, id)
}

// NewRequestSink registers a reply sink for an outstanding query, expiring
// at now+timeout. onExpire, if non-nil, runs once when ExpireRequests later
// reaps this sink without having seen a ResponseFinal.
func (r *Router) NewRequestSink(rid uint32, now time.Time, timeout time.Duration, cb ReplyCallback, onExpire func()) *core.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[rid]; !exists && len(r.requests) >= r.maxEntries {
		return core.NewError(core.CapacityExceeded, "transport: request table full")
	}
	r.requests[rid] = requestSink{callback: cb, onExpire: onExpire, deadline: now.Add(timeout)}
	return nil
}

// resolve turns a wire expression into a full key-expression string. A
// non-literal scope is looked up in the peer's alias table under
// MappingSender, or this side's own alias table under MappingReceiver — the
// two directions index distinct tables, per core.WireExpr's Mapping field.
func (r *Router) resolve(we core.WireExpr) (string, *core.Error) {
	if we.Scope == 0 {
		return we.Suffix, nil
	}
	table := r.remoteKeyExprs
	if we.Mapping == core.MappingReceiver {
		table = r.localKeyExprs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix, ok := table[we.Scope]
	if !ok {
		return "", core.NewError(core.InvalidArgument, "transport: unresolved wire expression scope")
	}
	return prefix + we.Suffix, nil
}

// HandleDeclare applies an inbound Declare from the peer: only
// DeclareKeyExpr mutates local state, binding a scope id the peer will
// reference (under MappingSender) in later wire expressions.
func (r *Router) HandleDeclare(d *wire.Declare) *core.Error {
	if d.Kind != wire.DeclareKeyExpr {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uint16(d.ID)
	if _, exists := r.remoteKeyExprs[id]; !exists && len(r.remoteKeyExprs) >= r.maxEntries {
		return core.NewError(core.CapacityExceeded, "transport: key-expression alias table full")
	}
	r.remoteKeyExprs[id] = d.WireExpr.Suffix
	return nil
}

// DeclareLocalKeyExpr records an alias this side is declaring to the peer,
// binding id under MappingReceiver — the table an inbound wire expression
// referencing our own alias (rather than one the peer declared) resolves
// against. Called when sending a Declare{Kind: DeclareKeyExpr}.
func (r *Router) DeclareLocalKeyExpr(id uint16, suffix string) *core.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.localKeyExprs[id]; !exists && len(r.localKeyExprs) >= r.maxEntries {
		return core.NewError(core.CapacityExceeded, "transport: local key-expression alias table full")
	}
	r.localKeyExprs[id] = suffix
	return nil
}

// HandlePush resolves p's wire expression into a Sample and delivers it to
// every local subscriber whose key expression intersects it.
func (r *Router) HandlePush(p *wire.Push) *core.Error {
	ke, err := r.resolve(p.WireExpr)
	if err != nil {
		return err
	}
	sample := Sample{
		KeyExpr:   ke,
		Payload:   p.Payload.Put.Payload,
		Encoding:  p.Payload.Put.Encoding,
		Timestamp: p.Payload.Put.Timestamp,
	}
	if p.Payload.Put.Attachment != nil {
		sample.Attachment = p.Payload.Put.Attachment.Buffer
	}

	r.mu.Lock()
	matches := make([]subscription, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		if keyexpr.Intersect(sub.keyExpr, ke) {
			matches = append(matches, sub)
		}
	}
	r.mu.Unlock()

	for _, sub := range matches {
		sub.callback(sample)
	}
	return nil
}

// HandleResponse delivers a Response to its request sink, if still present;
// an absent rid is silently dropped, per the routing rule.
func (r *Router) HandleResponse(rid uint32, reply *wire.Reply, errReply *wire.Err) {
	r.mu.Lock()
	sink, ok := r.requests[rid]
	r.mu.Unlock()
	if !ok {
		return
	}
	sink.callback(reply, errReply)
}

// HandleResponseFinal removes the request sink for rid; future responses for
// it are dropped.
func (r *Router) HandleResponseFinal(rid uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, rid)
}

// ExpireRequests removes every request sink whose deadline is at or before
// now, running its onExpire callback. Called periodically by the session's
// timer loop.
func (r *Router) ExpireRequests(now time.Time) {
	r.mu.Lock()
	var expired []requestSink
	for rid, sink := range r.requests {
		if !sink.deadline.After(now) {
			expired = append(expired, sink)
			delete(r.requests, rid)
		}
	}
	r.mu.Unlock()

	for _, sink := range expired {
		if sink.onExpire != nil {
			sink.onExpire()
		}
	}
}
