package core

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// MaxIDLen is the largest byte size a ZenohId may carry on the wire.
const MaxIDLen = 16

// ID is an opaque peer identifier of 1 to 16 little-endian bytes. Its size
// is intrinsic: trailing zero bytes are elided on encode and restored as
// zero on decode, so two ids compare equal iff their significant bytes and
// length-after-trimming match.
type ID struct {
	bytes [MaxIDLen]byte
	size  uint8 // number of significant (encoded) bytes, 0..16
}

// ZenohID is the canonical name used throughout the wire format tables.
type ZenohID = ID

// IDFromBytes builds an Id from up to MaxIDLen little-endian bytes. Trailing
// zero bytes are trimmed, matching the wire's size-is-intrinsic rule; an all
// zero input still yields a one byte id, since the wire format never encodes
// a zero length id.
func IDFromBytes(b []byte) (ID, *Error) {
	if len(b) > MaxIDLen {
		return ID{}, NewError(CapacityExceeded, "zenoh id longer than 16 bytes")
	}
	n := len(b)
	for n > 1 && b[n-1] == 0 {
		n--
	}
	var id ID
	copy(id.bytes[:], b[:n])
	id.size = uint8(n)
	return id, nil
}

// Bytes returns the significant little-endian bytes of the id, i.e. its wire
// representation without any length prefix.
func (id ID) Bytes() []byte { return id.bytes[:id.size] }

// Len reports how many significant bytes the id carries.
func (id ID) Len() int { return int(id.size) }

// Equal compares two ids by their full byte value.
func (id ID) Equal(other ID) bool {
	return id.size == other.size && id.bytes == other.bytes
}

// IsZero reports whether id was never assigned a value.
func (id ID) IsZero() bool { return id.size == 0 }

// IDGenerator sources fresh ZenohId values. Random-number sourcing for
// identifiers is an external collaborator per the module's scope; this
// interface is the contract a caller supplies an implementation for.
type IDGenerator interface {
	NewID() (ID, error)
}

// UUIDGenerator is a default IDGenerator backed by google/uuid, truncated to
// a 16 byte ZenohId. It is a convenience default, not a mandated source: any
// IDGenerator implementation may be supplied to a session constructor.
type UUIDGenerator struct{}

// NewID returns a random v4 UUID's 16 bytes as a ZenohId.
func (UUIDGenerator) NewID() (ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return ID{}, err
	}
	b := u[:]
	id, zerr := IDFromBytes(b)
	if zerr != nil {
		return ID{}, zerr
	}
	return id, nil
}

// CryptoRandGenerator is an IDGenerator backed directly by crypto/rand, for
// callers that want a full 16 byte random id without pulling in google/uuid's
// version/variant bit twiddling.
type CryptoRandGenerator struct{}

// NewID returns 16 random bytes as a ZenohId.
func (CryptoRandGenerator) NewID() (ID, error) {
	var b [MaxIDLen]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ID{}, err
	}
	id, zerr := IDFromBytes(b[:])
	if zerr != nil {
		return ID{}, zerr
	}
	return id, nil
}
