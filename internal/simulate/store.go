package simulate

import (
	"sync"
	"time"

	"github.com/gocollective/ncclpg/ncclerr"
)

// Store is an in-memory store.Store fake, for unit tests that don't want
// a real etcd dependency. Grounded the same way as store/etcdstore: Set
// publishes a key, Wait blocks (via sync.Cond) until every requested key
// has been published or the timeout elapses.
type Store struct {
	mu     sync.Mutex
	cond   *sync.Cond
	values map[string][]byte
}

// NewStore constructs an empty fake store.
func NewStore() *Store {
	s := &Store{values: make(map[string][]byte)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Store) Set(key string, value []byte) error {
	s.mu.Lock()
	s.values[key] = append([]byte{}, value...)
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}

func (s *Store) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ncclerr.New(ncclerr.InvalidState, "store key %q not found", key)
	}
	return v, nil
}

// Wait blocks until every key in keys has been Set, or timeout elapses.
func (s *Store) Wait(keys []string, timeout time.Duration) error {
	expired := false
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		expired = true
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		missing := 0
		for _, k := range keys {
			if _, ok := s.values[k]; !ok {
				missing++
			}
		}
		if missing == 0 {
			return nil
		}
		if expired {
			return ncclerr.New(ncclerr.TimedOut, "store wait timed out after %s waiting for keys %v", timeout, keys)
		}
		s.cond.Wait()
	}
}
