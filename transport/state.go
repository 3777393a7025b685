package transport

// State is a Session's position in the connection lifecycle.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// snCounter tracks one reliability class's sequence number, wrapping at the
// negotiated resolution's mask.
type snCounter struct {
	mask uint64
	next uint64
}

func newSNCounter(mask, initial uint64) *snCounter {
	return &snCounter{mask: mask, next: initial & mask}
}

// Next returns the sequence number to stamp on the next frame of this
// class, advancing the counter for the one after.
func (c *snCounter) Next() uint64 {
	v := c.next
	c.next = (c.next + 1) & c.mask
	return v
}

// Peek returns the sequence number Next would return, without advancing.
func (c *snCounter) Peek() uint64 { return c.next }
