package server

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	audioTTL      = time.Hour
	maxAudioFiles = 100
)

type audioEntry struct {
	id      string
	data    []byte
	addedAt time.Time
}

// audioRegistry holds generated audio in memory under short-lived ids so a
// player can fetch it over HTTP. Entries expire after an hour and the
// registry caps at 100 entries, evicting oldest first.
type audioRegistry struct {
	mu    sync.Mutex
	byID  map[string]*list.Element
	order *list.List // front = oldest
	clock func() time.Time
}

func newAudioRegistry() *audioRegistry {
	return &audioRegistry{
		byID:  make(map[string]*list.Element),
		order: list.New(),
		clock: time.Now,
	}
}

// Put stores audio and returns its id.
func (r *audioRegistry) Put(data []byte) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupLocked()

	id := uuid.NewString()
	elem := r.order.PushBack(&audioEntry{id: id, data: data, addedAt: r.clock()})
	r.byID[id] = elem
	return id
}

// Get returns the audio for id when present and not expired.
func (r *audioRegistry) Get(id string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupLocked()

	elem, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return elem.Value.(*audioEntry).data, true
}

func (r *audioRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *audioRegistry) cleanupLocked() {
	now := r.clock()
	for {
		front := r.order.Front()
		if front == nil {
			break
		}
		entry := front.Value.(*audioEntry)
		if now.Sub(entry.addedAt) <= audioTTL && r.order.Len() < maxAudioFiles {
			break
		}
		r.order.Remove(front)
		delete(r.byID, entry.id)
	}
}
