package core

// NTP64 is a 64-bit NTP-era time value: the high 32 bits are seconds since
// the NTP epoch, the low 32 bits are a binary fraction of a second.
type NTP64 uint64

// Timestamp pairs an NTP64 time with the ZenohId of the peer that stamped
// it, so Timestamps from different peers remain totally ordered by
// (time, id) even on a clock tie.
type Timestamp struct {
	Time NTP64
	ID   ID
}

// Before reports whether t happened strictly before other, breaking time
// ties by comparing id bytes.
func (t Timestamp) Before(other Timestamp) bool {
	if t.Time != other.Time {
		return t.Time < other.Time
	}
	if t.ID.size != other.ID.size {
		return t.ID.size < other.ID.size
	}
	return string(t.ID.Bytes()) < string(other.ID.Bytes())
}
