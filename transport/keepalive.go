package transport

import "time"

// keepAliveDivisor is the "lease/4" schedule from the handshake design: a
// KeepAlive (or any other outbound traffic) must go out at least this often
// relative to the lease, giving the peer three missed intervals of slack
// before it declares the session disconnected.
const keepAliveDivisor = 4

// keepAliveScheduler tracks the two timers the session's read loop races
// against: a lease-expiry deadline keyed off the last byte received from
// the peer, and a send deadline keyed off the last byte sent to it.
type keepAliveScheduler struct {
	lease    time.Duration
	interval time.Duration
	lastRecv time.Time
	lastSend time.Time
}

func newKeepAliveScheduler(lease time.Duration, now time.Time) *keepAliveScheduler {
	return &keepAliveScheduler{
		lease:    lease,
		interval: lease / keepAliveDivisor,
		lastRecv: now,
		lastSend: now,
	}
}

// OnRecv records that bytes just arrived from the peer, resetting the lease
// clock.
func (k *keepAliveScheduler) OnRecv(now time.Time) { k.lastRecv = now }

// OnSend records that bytes just went out, resetting the keep-alive send
// clock — any outbound traffic counts, not just an explicit KeepAlive.
func (k *keepAliveScheduler) OnSend(now time.Time) { k.lastSend = now }

// NextSendDeadline is when the next KeepAlive must be sent absent other
// traffic.
func (k *keepAliveScheduler) NextSendDeadline() time.Time { return k.lastSend.Add(k.interval) }

// LeaseExpired reports whether the peer has gone silent longer than the
// negotiated lease.
func (k *keepAliveScheduler) LeaseExpired(now time.Time) bool {
	return now.Sub(k.lastRecv) >= k.lease
}

// Tick evaluates both timers and reports what the session should do:
// sendKeepAlive when the send deadline has passed and the session is still
// within lease, or disconnect when the lease itself has expired.
func (k *keepAliveScheduler) Tick(now time.Time) (sendKeepAlive, disconnect bool) {
	if k.LeaseExpired(now) {
		return false, true
	}
	if !now.Before(k.NextSendDeadline()) {
		return true, false
	}
	return false, false
}
