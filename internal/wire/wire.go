// Package wire frames snapshot payloads written to a provider.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version      byte = 1
	kindSnapshot byte = 1

	headerLen = 4 + 1 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("swrcache: corrupt snapshot")
	magic4     = [...]byte{'S', 'W', 'R', 'C'}
)

// Snapshot is one framed cache value.
type Snapshot struct {
	Gen       uint64
	FetchedAt time.Time
	Payload   []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode: magic(4) | ver(1) | kind(1) | gen(u64 be) | fetchedAt(i64 unix nano be) | vlen(u32 be) | payload(vlen)
func Encode(s Snapshot) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(s.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindSnapshot)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], s.Gen)
	buf.Write(u8[:])

	var ts int64
	if !s.FetchedAt.IsZero() {
		ts = s.FetchedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(ts))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(s.Payload)))
	buf.Write(u4[:])

	buf.Write(s.Payload)
	return buf.Bytes()
}

// Decode parses a frame produced by Encode. Trailing bytes are rejected.
// The returned payload aliases b.
func Decode(b []byte) (Snapshot, error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindSnapshot {
		return Snapshot{}, ErrCorrupt
	}
	off := 6

	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	ts := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return Snapshot{}, ErrCorrupt
	}

	s := Snapshot{Gen: gen, Payload: b[off : off+vlen]}
	if ts != 0 {
		s.FetchedAt = time.Unix(0, ts)
	}
	return s, nil
}
