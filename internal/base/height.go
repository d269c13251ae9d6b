package base

import (
	"strconv"
	"time"
)

// BlockHeight is the position of a block in its chain.
type BlockHeight uint64

// String returns the decimal form.
func (h BlockHeight) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// Timestamp is a block time in microseconds since the Unix epoch.
type Timestamp uint64

// TimestampFromMicros wraps a microsecond count.
func TimestampFromMicros(micros uint64) Timestamp {
	return Timestamp(micros)
}

// Micros returns the microsecond count.
func (t Timestamp) Micros() uint64 {
	return uint64(t)
}

// Time converts the timestamp to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// String returns the RFC 3339 form with microsecond precision.
func (t Timestamp) String() string {
	return t.Time().Format("2006-01-02T15:04:05.000000Z07:00")
}
