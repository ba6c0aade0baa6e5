package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/userprofile/internal/domain"
	"github.com/Strob0t/userprofile/internal/domain/photo"
	"github.com/Strob0t/userprofile/internal/domain/profile"
	"github.com/Strob0t/userprofile/internal/port/cache"
	"github.com/Strob0t/userprofile/internal/port/database"
	"github.com/Strob0t/userprofile/internal/port/messagequeue"
)

// mockStore is an in-memory database.Store with error hooks.
type mockStore struct {
	mu       sync.Mutex
	profiles map[int64]profile.Profile
	photos   map[int64]photo.Photo

	getErr    error
	listErr   error
	existsErr error
	createErr func(p *profile.Profile) error

	getCalls    atomic.Int64
	existsCalls atomic.Int64
}

var _ database.Store = (*mockStore)(nil)

func newMockStore(ps ...profile.Profile) *mockStore {
	s := &mockStore{profiles: map[int64]profile.Profile{}, photos: map[int64]photo.Photo{}}
	for _, p := range ps {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *mockStore) Ping(context.Context) error { return nil }

func (s *mockStore) GetProfile(_ context.Context, bankID, userID int64) (*profile.Profile, error) {
	s.getCalls.Add(1)
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok || p.BankID != bankID {
		return nil, fmt.Errorf("profile %d:%d: %w", bankID, userID, domain.ErrNotFound)
	}
	return &p, nil
}

func (s *mockStore) ListProfilesByBank(_ context.Context, bankID int64) ([]profile.Profile, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []profile.Profile{}
	for _, p := range s.profiles {
		if p.BankID == bankID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockStore) CreateProfile(_ context.Context, p *profile.Profile) error {
	if s.createErr != nil {
		if err := s.createErr(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return database.ErrIDTaken
	}
	stored := *p
	stored.HasProfilePhoto = ""
	s.profiles[p.ID] = stored
	return nil
}

func (s *mockStore) UpdateProfile(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[p.ID]
	if !ok || cur.BankID != p.BankID {
		return fmt.Errorf("profile %d:%d: %w", p.BankID, p.ID, domain.ErrNotFound)
	}
	stored := *p
	stored.HasProfilePhoto = ""
	s.profiles[p.ID] = stored
	return nil
}

func (s *mockStore) DeleteProfile(_ context.Context, bankID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.profiles[userID]
	if !ok || cur.BankID != bankID {
		return fmt.Errorf("profile %d:%d: %w", bankID, userID, domain.ErrNotFound)
	}
	delete(s.profiles, userID)
	return nil
}

func (s *mockStore) ProfileExists(_ context.Context, id int64) (bool, error) {
	s.existsCalls.Add(1)
	if s.existsErr != nil {
		return false, s.existsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.profiles[id]
	return ok, nil
}

func (s *mockStore) GetPhoto(_ context.Context, userID int64) (*photo.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[userID]
	if !ok {
		return nil, fmt.Errorf("photo for user %d: %w", userID, domain.ErrNotFound)
	}
	return &p, nil
}

func (s *mockStore) CreatePhoto(_ context.Context, p *photo.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[p.UserID]; ok {
		return fmt.Errorf("photo for user %d: %w", p.UserID, domain.ErrConflict)
	}
	p.ID = int64(len(s.photos) + 1)
	s.photos[p.UserID] = *p
	return nil
}

func (s *mockStore) UpdatePhoto(_ context.Context, p *photo.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.photos[p.UserID]
	if !ok {
		return fmt.Errorf("photo for user %d: %w", p.UserID, domain.ErrNotFound)
	}
	p.ID = cur.ID
	s.photos[p.UserID] = *p
	return nil
}

func (s *mockStore) DeletePhoto(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[userID]; !ok {
		return fmt.Errorf("photo for user %d: %w", userID, domain.ErrNotFound)
	}
	delete(s.photos, userID)
	return nil
}

// memCache is a cache.Cache that records every call.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	sets    int
	deletes []string

	getErr    error
	setErr    error
	deleteErr error
}

var _ cache.Cache = (*memCache)(nil)

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = val
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, key)
	if c.deleteErr != nil {
		return c.deleteErr
	}
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *memCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func (c *memCache) deleteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deletes)
}

// fakeProber answers from a map and can be slowed down per user.
type fakeProber struct {
	present map[int64]bool
	delay   map[int64]time.Duration
	calls   atomic.Int64

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (f *fakeProber) HasPhoto(ctx context.Context, _, userID int64) photo.Status {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if d := f.delay[userID]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return photo.Absent
		}
	}
	if f.present[userID] {
		return photo.Present
	}
	return photo.Absent
}

// fakeQueue records published messages and dispatches them to subscribers.
type fakeQueue struct {
	mu         sync.Mutex
	published  []publishedMsg
	handlers   map[string]messagequeue.Handler
	publishErr error
}

type publishedMsg struct {
	subject string
	data    []byte
}

var _ messagequeue.Queue = (*fakeQueue)(nil)

func newFakeQueue() *fakeQueue {
	return &fakeQueue{handlers: map[string]messagequeue.Handler{}}
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	if q.publishErr != nil {
		return q.publishErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.handlers[subject]; ok {
		return nil, errors.New("already subscribed")
	}
	q.handlers[subject] = h
	return func() {
		q.mu.Lock()
		delete(q.handlers, subject)
		q.mu.Unlock()
	}, nil
}

func (q *fakeQueue) deliver(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	h := q.handlers[subject]
	q.mu.Unlock()
	if h == nil {
		return fmt.Errorf("no handler for %s", subject)
	}
	return h(ctx, subject, data)
}

func (q *fakeQueue) messages() []publishedMsg {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]publishedMsg(nil), q.published...)
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

func (c *memCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.data)
	clear(c.ttls)
}
