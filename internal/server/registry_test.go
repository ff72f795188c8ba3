package server

import (
	"fmt"
	"testing"
	"time"
)

func TestRegistryPutGet(t *testing.T) {
	r := newAudioRegistry()
	id := r.Put([]byte("audio"))
	data, ok := r.Get(id)
	if !ok || string(data) != "audio" {
		t.Fatalf("expected stored audio, got %q ok=%v", data, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("unknown id must not resolve")
	}
}

func TestRegistryExpiresEntries(t *testing.T) {
	r := newAudioRegistry()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.clock = func() time.Time { return now }

	id := r.Put([]byte("audio"))

	now = now.Add(audioTTL + time.Minute)
	if _, ok := r.Get(id); ok {
		t.Fatal("entry must expire after ttl")
	}
}

func TestRegistryEvictsOldestBeyondCap(t *testing.T) {
	r := newAudioRegistry()
	first := r.Put([]byte("first"))
	for i := 0; i < maxAudioFiles; i++ {
		r.Put([]byte(fmt.Sprintf("audio-%d", i)))
	}
	if _, ok := r.Get(first); ok {
		t.Fatal("oldest entry must be evicted once the cap is reached")
	}
	if r.Len() > maxAudioFiles {
		t.Fatalf("registry exceeded cap: %d", r.Len())
	}
}
