// Package etcdstore implements store.Store over go.etcd.io/etcd/client/v3:
// Set/Get are Put/Get, and Wait fans out a Watch per pending key bounded
// by the caller's timeout.
package etcdstore

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocollective/ncclpg/ncclerr"
)

const defaultRequestTimeout = 5 * time.Second

// Store adapts an etcd client to store.Store, namespacing every key under
// prefix so multiple process groups can share one etcd cluster.
type Store struct {
	client *clientv3.Client
	prefix string
}

// New wraps client, prefixing every key with prefix (e.g. the process
// group's own rendezvous namespace).
func New(client *clientv3.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) namespaced(key string) string { return s.prefix + key }

// Set publishes value under key.
func (s *Store) Set(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()
	if _, err := s.client.Put(ctx, s.namespaced(key), string(value)); err != nil {
		return ncclerr.Wrap(ncclerr.InvalidState, err, "store set %q", key)
	}
	return nil
}

// Get retrieves the value published under key.
func (s *Store) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()
	resp, err := s.client.Get(ctx, s.namespaced(key))
	if err != nil {
		return nil, ncclerr.Wrap(ncclerr.InvalidState, err, "store get %q", key)
	}
	if len(resp.Kvs) == 0 {
		return nil, ncclerr.New(ncclerr.InvalidState, "store key %q not found", key)
	}
	return resp.Kvs[0].Value, nil
}

// Wait blocks until every key in keys has been Set, or timeout elapses.
func (s *Store) Wait(keys []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pending := make(map[string]bool, len(keys))
	for _, k := range keys {
		resp, err := s.client.Get(ctx, s.namespaced(k))
		if err != nil {
			return ncclerr.Wrap(ncclerr.InvalidState, err, "store wait: get %q", k)
		}
		if len(resp.Kvs) == 0 {
			pending[k] = true
		}
	}
	if len(pending) == 0 {
		return nil
	}

	satisfied := make(chan string, len(pending))
	for k := range pending {
		k := k
		go func() {
			wc := s.client.Watch(ctx, s.namespaced(k))
			for resp := range wc {
				for _, ev := range resp.Events {
					if ev.Type == clientv3.EventTypePut {
						satisfied <- k
						return
					}
				}
			}
		}()
	}

	remaining := len(pending)
	for remaining > 0 {
		select {
		case <-satisfied:
			remaining--
		case <-ctx.Done():
			return ncclerr.New(ncclerr.TimedOut, "store wait timed out after %s waiting for keys %v", timeout, keys)
		}
	}
	return nil
}
