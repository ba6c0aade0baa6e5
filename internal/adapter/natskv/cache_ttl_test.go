package natskv

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

type fakeEntry struct {
	jetstream.KeyValueEntry
	value   []byte
	created time.Time
}

func (e fakeEntry) Value() []byte      { return e.value }
func (e fakeEntry) Created() time.Time { return e.created }

type fakeKV struct {
	jetstream.KeyValue
	entries map[string]fakeEntry
}

func (f *fakeKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	e, ok := f.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return e, nil
}

func TestGetWithTTLFromCreationTime(t *testing.T) {
	now := time.Now()
	kv := &fakeKV{entries: map[string]fakeEntry{
		"userProfiles.7.10001": {value: []byte("v"), created: now.Add(-590 * time.Second)},
	}}
	c := New(kv, 600*time.Second)
	c.now = func() time.Time { return now }

	val, remaining, found, err := c.GetWithTTL(context.Background(), "userProfiles:7:10001")
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if string(val) != "v" {
		t.Fatalf("unexpected value %q", val)
	}
	if remaining != 10*time.Second {
		t.Fatalf("remaining = %v, want 10s", remaining)
	}
}

func TestGetPastBucketTTLIsMiss(t *testing.T) {
	now := time.Now()
	kv := &fakeKV{entries: map[string]fakeEntry{
		"userProfiles.7.10001": {value: []byte("v"), created: now.Add(-601 * time.Second)},
	}}
	c := New(kv, 600*time.Second)
	c.now = func() time.Time { return now }

	if _, found, err := c.Get(context.Background(), "userProfiles:7:10001"); err != nil || found {
		t.Fatalf("entry older than the bucket TTL must miss, found=%v err=%v", found, err)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := New(&fakeKV{entries: map[string]fakeEntry{}}, time.Minute)
	if _, found, err := c.Get(context.Background(), "userProfiles:7:1"); err != nil || found {
		t.Fatalf("expected clean miss, found=%v err=%v", found, err)
	}
}
