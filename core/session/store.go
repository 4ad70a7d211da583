package session

import (
	"sync"

	"github.com/sekolahmbg/mbg-client/core"
	"github.com/sekolahmbg/mbg-client/storage/kv"
)

// Store owns the current session: an in-memory cache written through to the
// key-value store. The cache is updated before the persist happens, so
// same-process readers see a Set immediately even if the disk write is
// still pending (or fails).
type Store struct {
	mu     sync.Mutex
	store  kv.Store
	key    string
	logger core.Logger

	cur    *Session
	loaded bool

	subs   map[int]func(*Session)
	subSeq int
	// subscriber call order follows registration order
	subOrder []int
}

func NewStore(store kv.Store, key string, logger core.Logger) *Store {
	return &Store{
		store:  store,
		key:    key,
		logger: core.OrNopLogger(logger),
		subs:   make(map[int]func(*Session)),
	}
}

// Get returns the current session, nil when unauthenticated. The first call
// reads the persisted blob; later calls are served from the cache unless
// force is true.
func (s *Store) Get(force ...bool) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded && !(len(force) > 0 && force[0]) {
		return s.cur
	}
	var sess Session
	if kv.GetJSON(s.store, s.key, &sess) {
		s.cur = &sess
	} else {
		s.cur = nil
	}
	s.loaded = true
	return s.cur
}

// Set replaces the session (nil clears it), notifies subscribers and writes
// through to the store. The cache is current by the time Set returns,
// regardless of how the persist went.
func (s *Store) Set(sess *Session) {
	s.mu.Lock()
	s.cur = sess
	s.loaded = true
	subs := make([]func(*Session), 0, len(s.subOrder))
	for _, id := range s.subOrder {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		notify(fn, sess, s.logger)
	}

	if sess == nil {
		s.store.Remove(s.key)
		return
	}
	kv.SetJSON(s.store, s.key, sess)
}

// Clear drops the session; shorthand for Set(nil).
func (s *Store) Clear() { s.Set(nil) }

// Subscribe registers a listener invoked on every session change. The
// returned func unregisters it.
func (s *Store) Subscribe(fn func(*Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	s.subOrder = append(s.subOrder, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		for i, sid := range s.subOrder {
			if sid == id {
				s.subOrder = append(s.subOrder[:i], s.subOrder[i+1:]...)
				break
			}
		}
	}
}

// notify isolates a listener: one panicking listener must not starve the
// rest.
func notify(fn func(*Session), sess *Session, logger core.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("session: subscriber panicked", map[string]interface{}{"panic": r})
		}
	}()
	fn(sess)
}
