package transport

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/zenohgo/zenoh08/core"
)

// InitialSN derives the deterministic starting sequence number for a
// reliability class from both peers' identities: SHAKE128(mine.zid ||
// other.zid), truncated to a uint64 and masked to the negotiated
// frame-sequence-number width. Each side calls it with its own zid first, so
// the two sides of a session generally derive different values; each sends
// its own value to the peer in OpenSyn/OpenAck.
func InitialSN(mine, other core.ID, frameSN core.Bits) uint64 {
	h := sha3.NewShake128()
	h.Write(mine.Bytes())
	h.Write(other.Bytes())
	var out [8]byte
	if _, err := h.Read(out[:]); err != nil {
		// SHAKE128's Read never fails; this path exists only to satisfy the
		// io.Reader contract without a silent short read.
		panic("transport: SHAKE128 read failed: " + err.Error())
	}
	return binary.LittleEndian.Uint64(out[:]) & frameSN.Mask()
}

// negotiateResolution applies the handshake's field-wise minimum rule and
// rejects a peer asking for a resolution wider than this side allows.
func negotiateResolution(mine, theirs core.Resolution) (core.Resolution, *core.Error) {
	if mine.ExceedsAny(theirs) {
		return 0, core.NewError(core.InvalidArgument, "transport: peer resolution exceeds local maximum")
	}
	return mine.Min(theirs), nil
}
