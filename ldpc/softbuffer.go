package ldpc

import (
	"sort"
	"sync"
)

// SoftBufferKey identifies one HARQ soft buffer: a segment of a HARQ process
// of a UE.
type SoftBufferKey struct {
	RNTI    uint16
	HarqPID uint8
	Segment int
}

// SoftBufferStore hands out HARQ soft buffers. Callers serialize use of a
// single key; distinct keys may be used concurrently.
type SoftBufferStore interface {
	// Buffer returns the buffer for key, at least size entries long.
	// Existing contents are preserved when the buffer grows.
	Buffer(key SoftBufferKey, size int) []int16
	// Release drops the buffer for key.
	Release(key SoftBufferKey)
}

// MemoryStore is an in-memory SoftBufferStore.
type MemoryStore struct {
	mu   sync.Mutex
	bufs map[SoftBufferKey][]int16
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bufs: make(map[SoftBufferKey][]int16)}
}

func (s *MemoryStore) Buffer(key SoftBufferKey, size int) []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bufs[key]
	if len(b) < size {
		nb := make([]int16, size)
		copy(nb, b)
		b = nb
		s.bufs[key] = b
	}
	return b
}

func (s *MemoryStore) Release(key SoftBufferKey) {
	s.mu.Lock()
	delete(s.bufs, key)
	s.mu.Unlock()
}

// ReleaseProcess drops every segment buffer of a HARQ process.
func (s *MemoryStore) ReleaseProcess(rnti uint16, pid uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.bufs {
		if k.RNTI == rnti && k.HarqPID == pid {
			delete(s.bufs, k)
		}
	}
}

// Put installs buf as the buffer for key, replacing any previous one.
func (s *MemoryStore) Put(key SoftBufferKey, buf []int16) {
	s.mu.Lock()
	s.bufs[key] = buf
	s.mu.Unlock()
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bufs)
}

// Range calls fn for every buffer in key order until fn returns false.
// fn must not call back into the store.
func (s *MemoryStore) Range(fn func(key SoftBufferKey, buf []int16) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]SoftBufferKey, 0, len(s.bufs))
	for k := range s.bufs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.RNTI != b.RNTI {
			return a.RNTI < b.RNTI
		}
		if a.HarqPID != b.HarqPID {
			return a.HarqPID < b.HarqPID
		}
		return a.Segment < b.Segment
	})
	for _, k := range keys {
		if !fn(k, s.bufs[k]) {
			return
		}
	}
}
