package kv

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestTTLRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	plain, wrapped, err := encodeWithTTL([]byte("v"), 0, now)
	if err != nil {
		t.Fatalf("encode without ttl: %v", err)
	}

	if wrapped || !bytes.Equal(plain, []byte("v")) {
		t.Fatalf("zero ttl should store raw value, got wrapped=%v %q", wrapped, plain)
	}

	enc, wrapped, err := encodeWithTTL([]byte("v"), time.Minute, now)
	if err != nil {
		t.Fatalf("encode with ttl: %v", err)
	}

	if !wrapped {
		t.Fatal("ttl value not wrapped")
	}

	val, expired, _, err := decodeWithTTL(enc, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if expired || !bytes.Equal(val, []byte("v")) {
		t.Errorf("before deadline: expired=%v val=%q", expired, val)
	}

	_, expired, _, err = decodeWithTTL(enc, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("decode at deadline: %v", err)
	}

	if !expired {
		t.Error("value not expired at deadline")
	}
}

func TestMemoryKVExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1_700_000_000, 0)
	m := &MemoryKV{now: func() time.Time { return clock }}

	if err := m.Set(ctx, "list", []byte("[]"), 5*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := m.Get(ctx, "list")
	if err != nil || !bytes.Equal(got, []byte("[]")) {
		t.Fatalf("get before expiry: %q %v", got, err)
	}

	clock = clock.Add(6 * time.Second)

	if _, err := m.Get(ctx, "list"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after expiry, got %v", err)
	}

	keys, err := m.Keys(ctx, "")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}

	if len(keys) != 0 {
		t.Errorf("expired keys still listed: %v", keys)
	}
}
