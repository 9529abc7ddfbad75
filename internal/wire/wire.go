// Package wire frames L2 entries written by the store.
//
// Entry layout:
//
//	magic(4) | ver(1) | gen(u64 be) | storedAt(i64 be, unix nanos) | vlen(u32 be) | payload(vlen)
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("replaycache: corrupt entry")
	magic4     = [...]byte{'R', 'P', 'L', 'C'}
)

// Entry is a decoded frame. Payload aliases the input buffer.
type Entry struct {
	Gen      uint64
	StoredAt time.Time
	Payload  []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func Encode(gen uint64, storedAt time.Time, payload []byte) []byte {
	buf := make([]byte, hdrLen+len(payload))
	copy(buf, magic4[:])
	buf[4] = version
	binary.BigEndian.PutUint64(buf[5:13], gen)
	binary.BigEndian.PutUint64(buf[13:21], uint64(storedAt.UnixNano()))
	binary.BigEndian.PutUint32(buf[21:25], uint32(len(payload)))
	copy(buf[hdrLen:], payload)
	return buf
}

func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	gen := binary.BigEndian.Uint64(b[5:13])
	at := int64(binary.BigEndian.Uint64(b[13:21]))
	vlen := int(binary.BigEndian.Uint32(b[21:25]))
	// exact length: no trailing bytes, no short payload
	if vlen < 0 || vlen != len(b)-hdrLen {
		return Entry{}, ErrCorrupt
	}
	return Entry{
		Gen:      gen,
		StoredAt: time.Unix(0, at),
		Payload:  b[hdrLen:],
	}, nil
}
