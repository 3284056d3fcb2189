package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestRoundTripKeepsGenAndTime(t *testing.T) {
	at := time.Unix(1700000000, 123)
	b := Encode(Snapshot{Gen: 42, FetchedAt: at, Payload: []byte(`{"x":1}`)})

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Gen != 42 || !got.FetchedAt.Equal(at) || !bytes.Equal(got.Payload, []byte(`{"x":1}`)) {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestZeroTimeStaysZero(t *testing.T) {
	got, err := Decode(Encode(Snapshot{Gen: 1}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.FetchedAt.IsZero() || len(got.Payload) != 0 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestDecodeRejectsTrailing(t *testing.T) {
	b := Encode(Snapshot{Gen: 7, Payload: []byte("x")})
	b = append(b, 0xDE, 0xAD)
	if _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("want ErrCorrupt, got %v", err)
	}
}

func TestDecodeRejectsTruncatedAndForeign(t *testing.T) {
	b := Encode(Snapshot{Gen: 7, Payload: []byte("hello")})
	if _, err := Decode(b[:len(b)-1]); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("truncated: want ErrCorrupt, got %v", err)
	}
	if _, err := Decode([]byte("not-a-frame-at-all-but-long-enough")); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("foreign: want ErrCorrupt, got %v", err)
	}
	bad := append([]byte(nil), b...)
	bad[4] = 9 // unknown version
	if _, err := Decode(bad); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("version: want ErrCorrupt, got %v", err)
	}
}
