package cache

import (
	"context"
	"sort"
	"sync"
)

// NewMemoryStore 返回进程内的 Store，重启即丢失，适合测试与临时部署。
func NewMemoryStore() Store {
	return &memoryStore{buckets: make(map[string]map[Key]*Snapshot)}
}

type memoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[Key]*Snapshot
}

func (s *memoryStore) Open(ctx context.Context, name string) (Bucket, error) {
	if err := validateBucketName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = make(map[Key]*Snapshot)
	}
	s.mu.Unlock()
	return &memoryBucket{store: s, name: name}, nil
}

func (s *memoryStore) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memoryStore) Has(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[name]
	return ok, nil
}

func (s *memoryStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[name]
	delete(s.buckets, name)
	return ok, nil
}

func (s *memoryStore) Close() error { return nil }

type memoryBucket struct {
	store *memoryStore
	name  string
}

func (b *memoryBucket) Name() string { return b.name }

func (b *memoryBucket) Match(ctx context.Context, key Key, opts MatchOptions) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()

	entries := b.store.buckets[b.name]
	if snap, ok := entries[key]; ok {
		return snap.Clone(), nil
	}
	if !opts.IgnoreSearch {
		return nil, ErrNotFound
	}
	want := key.WithoutSearch()
	for _, candidate := range sortedKeys(entries) {
		if candidate.WithoutSearch() == want {
			return entries[candidate].Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (b *memoryBucket) Put(ctx context.Context, key Key, snapshot *Snapshot) error {
	return b.PutAll(ctx, []Record{{Key: key, Snapshot: snapshot}})
}

func (b *memoryBucket) PutAll(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecords(records); err != nil {
		return err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	entries, ok := b.store.buckets[b.name]
	if !ok {
		entries = make(map[Key]*Snapshot)
		b.store.buckets[b.name] = entries
	}
	for _, record := range records {
		entries[record.Key] = record.Snapshot.Clone()
	}
	return nil
}

func (b *memoryBucket) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	return sortedKeys(b.store.buckets[b.name]), nil
}

func (b *memoryBucket) Delete(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	entries := b.store.buckets[b.name]
	_, ok := entries[key]
	delete(entries, key)
	return ok, nil
}

func sortedKeys(entries map[Key]*Snapshot) []Key {
	keys := make([]Key, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
