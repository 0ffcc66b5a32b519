package lockout

import (
	"hash/fnv"
	"sync"
)

// keyedMutex is a fixed-size pool of mutexes keyed by account. Memory stays
// bounded no matter how many accounts are seen; accounts that hash to the same
// shard occasionally contend with each other, which is harmless here.
type keyedMutex struct {
	shards [256]sync.Mutex
}

// lock acquires the mutex for the key and returns its unlock function.
func (k *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &k.shards[h.Sum32()%256]
	mu.Lock()
	return mu.Unlock
}
