package identity

import (
	"hash/fnv"
	"sync"
)

// Cache is the in-process store consulted before the directory. Entries are
// never evicted for the lifetime of the process.
type Cache interface {
	Get(phone string) (PatientRecord, bool)
	Put(rec PatientRecord)
}

const cacheShards = 16

type cacheShard struct {
	mu      sync.RWMutex
	records map[string]PatientRecord
}

// MemoryCache is a sharded map keyed by normalized phone.
type MemoryCache struct {
	shards [cacheShards]*cacheShard
}

func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{}
	for i := range c.shards {
		c.shards[i] = &cacheShard{records: make(map[string]PatientRecord)}
	}
	return c
}

func (c *MemoryCache) shard(phone string) *cacheShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(phone))
	return c.shards[h.Sum32()%cacheShards]
}

func (c *MemoryCache) Get(phone string) (PatientRecord, bool) {
	s := c.shard(phone)
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[phone]
	return rec, ok
}

func (c *MemoryCache) Put(rec PatientRecord) {
	s := c.shard(rec.Phone)
	s.mu.Lock()
	s.records[rec.Phone] = rec
	s.mu.Unlock()
}

func (c *MemoryCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.records)
		s.mu.RUnlock()
	}
	return n
}
