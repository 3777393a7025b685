package transport

import (
	"time"

	"github.com/pion/logging"

	"github.com/zenohgo/zenoh08/core"
)

// ProtocolVersion is the single byte InitSyn/InitAck exchange; there is only
// one version, 0x08, per this module's scope.
const ProtocolVersion = 0x08

// Defaults applied by Config.withDefaults for any zero field.
const (
	DefaultBatchSize       = 65535
	DefaultMaxTableEntries = 1024
	DefaultLease           = 10 * time.Second
)

// Config carries everything a Session needs to construct itself; nothing is
// read from global state or the environment.
type Config struct {
	// ZIDGenerator sources this side's ZenohId. Defaults to
	// core.UUIDGenerator{} when nil.
	ZIDGenerator core.IDGenerator
	// Resolution is the widest frame-SN/request-id field width this side is
	// willing to negotiate. Defaults to Bits32/Bits32 when zero.
	Resolution core.Resolution
	// Lease is the lease this side announces to the peer in OpenSyn/OpenAck:
	// the peer declares the session Disconnected after this long without
	// traffic from this side, and this side sends a KeepAlive every
	// Lease/4 absent other traffic. Silence from the peer is measured
	// against the lease the peer announced.
	Lease time.Duration
	// BatchSize bounds the batch buffers allocated for this session.
	BatchSize int
	// MaxTableEntries bounds each of the Router's fixed-capacity tables.
	MaxTableEntries int
	// LoggerFactory builds this session's logger. Defaults to
	// logging.NewDefaultLoggerFactory() when nil.
	LoggerFactory logging.LoggerFactory
}

func (c Config) withDefaults() Config {
	if c.ZIDGenerator == nil {
		c.ZIDGenerator = core.UUIDGenerator{}
	}
	if c.Resolution == 0 {
		c.Resolution = core.NewResolution(core.Bits32, core.Bits32)
	}
	if c.Lease == 0 {
		c.Lease = DefaultLease
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxTableEntries == 0 {
		c.MaxTableEntries = DefaultMaxTableEntries
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	return c
}
