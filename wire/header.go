// Package wire implements the Zenoh 0x08 message family: the zenoh-layer
// bodies (Put/Query/Reply/Err), the network messages that carry them
// (Push/Request/Response/ResponseFinal/Interest/Declare), and the transport
// messages that frame a session (InitSyn/InitAck/OpenSyn/OpenAck/KeepAlive/
// Close/Frame).
//
// Every message type follows the same header discipline: a single header
// byte with the low 5 bits selecting the message id and the high 3 bits
// carrying type-specific flags, one of which is always "extensions follow".
package wire

import (
	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/ext"
	"github.com/zenohgo/zenoh08/vle"
)

const idMask = 0x1f

// mid extracts the message id (bits 0..4) from a header byte.
func mid(header byte) byte { return header & idMask }

// hasFlag reports whether the given flag bit is set in header. Flags occupy
// bits 5..7 and are defined per message type below.
func hasFlag(header, flag byte) bool { return header&flag != 0 }

// Zenoh-layer body ids, shared by PushBody/RequestBody/ResponseBody.
const (
	idOAM   = 0x00
	idPut   = 0x01
	idDel   = 0x02
	idQuery = 0x03
	idReply = 0x04
	idErr   = 0x05
)

// Network message ids.
const (
	idPush          = 0x01
	idRequest       = 0x02
	idResponse      = 0x03
	idResponseFinal = 0x04
	idInterest      = 0x05
	idDeclare       = 0x06
)

// Transport message ids. InitSyn/InitAck share idInit, distinguished by
// flagA; OpenSyn/OpenAck share idOpen the same way.
const (
	idInit      = 0x03
	idOpen      = 0x04
	idClose     = 0x05
	idKeepAlive = 0x06
	idFrame     = 0x07
)

const (
	flagZ = 1 << 7 // extensions follow
	flagX = 1 << 6
	flagA = 1 << 6 // Init/Open: Syn (0) vs Ack (1)
	flagR = 1 << 5 // Frame: reliable channel
)

// IsFrame reports whether header belongs to a Frame, the one transport
// message the batch reader handles specially since its payload is itself a
// run of network messages rather than a fixed set of fields.
func IsFrame(header byte) bool { return mid(header) == idFrame }

// writeExtBlock writes exts as a trailing extension block iff non-empty, and
// reports the Z flag bit the caller must OR into its header.
func writeExtBlock(w *vle.Writer, exts []ext.Extension) (zFlag byte, zerr *core.Error) {
	if len(exts) == 0 {
		return 0, nil
	}
	if err := ext.Encode(w, exts); err != nil {
		return 0, err
	}
	return flagZ, nil
}
