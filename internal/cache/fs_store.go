package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const entrySuffix = ".entry"

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。磁盘布局：
//
//	<basePath>/<bucket>/<sha1[:2]>/<sha1(key)>.entry   # JSON 编码的 Key + Snapshot
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一条目并发写入，bucket 即 basePath 下的一级目录。
type fileStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// fileEntry 是落盘的条目格式。
type fileEntry struct {
	Key Key `json:"key"`
	Snapshot
}

func (s *fileStore) Open(ctx context.Context, name string) (Bucket, error) {
	if err := validateBucketName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.bucketPath(name), 0o755); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return &fileBucket{store: s, name: name}, nil
}

func (s *fileStore) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || validateBucketName(entry.Name()) != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *fileStore) Has(ctx context.Context, name string) (bool, error) {
	if err := validateBucketName(name); err != nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(s.bucketPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (s *fileStore) Delete(ctx context.Context, name string) (bool, error) {
	exists, err := s.Has(ctx, name)
	if err != nil || !exists {
		return false, err
	}
	unlock := s.lock("bucket::" + name)
	defer unlock()
	if err := os.RemoveAll(s.bucketPath(name)); err != nil {
		return false, fmt.Errorf("delete bucket %s: %w", name, err)
	}
	return true, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) bucketPath(name string) string {
	return filepath.Join(s.basePath, name)
}

func (s *fileStore) lock(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

type fileBucket struct {
	store *fileStore
	name  string
}

func (b *fileBucket) Name() string { return b.name }

func (b *fileBucket) Match(ctx context.Context, key Key, opts MatchOptions) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := readEntry(b.entryPath(key))
	switch {
	case err == nil:
		return &entry.Snapshot, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	case !opts.IgnoreSearch:
		return nil, ErrNotFound
	}

	want := key.WithoutSearch()
	var found *Snapshot
	walkErr := b.walk(func(candidate *fileEntry) bool {
		if candidate.Key.WithoutSearch() == want {
			found = &candidate.Snapshot
			return false
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (b *fileBucket) Put(ctx context.Context, key Key, snapshot *Snapshot) error {
	return b.PutAll(ctx, []Record{{Key: key, Snapshot: snapshot}})
}

// PutAll 先把所有条目写入临时文件，全部成功后再逐个 rename。
// 提交阶段任一 rename 失败时，已提交的条目会被回滚（恢复旧值或删除），整批都不可见。
func (b *fileBucket) PutAll(ctx context.Context, records []Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	prepared := make([]stagedEntry, 0, len(records))
	cleanup := func(items []stagedEntry) {
		for _, item := range items {
			os.Remove(item.temp)
		}
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			cleanup(prepared)
			return err
		}
		target := b.entryPath(record.Key)
		temp, err := writeTemp(target, fileEntry{Key: record.Key, Snapshot: *record.Snapshot})
		if err != nil {
			cleanup(prepared)
			return fmt.Errorf("stage %s: %w", record.Key, err)
		}
		prepared = append(prepared, stagedEntry{temp: temp, target: target, lockID: b.lockID(record.Key)})
	}

	for i := range prepared {
		item := &prepared[i]
		unlock := b.store.lock(item.lockID)
		err := item.commit()
		unlock()
		if err != nil {
			cleanup(prepared[i:])
			for j := i - 1; j >= 0; j-- {
				unlock := b.store.lock(prepared[j].lockID)
				prepared[j].rollback()
				unlock()
			}
			return fmt.Errorf("commit %s: %w", item.target, err)
		}
	}
	for _, item := range prepared {
		if item.backup != "" {
			os.Remove(item.backup)
		}
	}
	return nil
}

// stagedEntry 记录一次待提交的写入；backup 保存被覆盖的旧条目，供回滚使用。
type stagedEntry struct {
	temp   string
	target string
	backup string
	lockID string
}

func (e *stagedEntry) commit() error {
	if info, err := os.Lstat(e.target); err == nil && info.Mode().IsRegular() {
		backup := e.temp + ".bak"
		if err := os.Rename(e.target, backup); err != nil {
			return err
		}
		e.backup = backup
	}
	if err := os.Rename(e.temp, e.target); err != nil {
		if e.backup != "" {
			os.Rename(e.backup, e.target)
			e.backup = ""
		}
		return err
	}
	return nil
}

func (e *stagedEntry) rollback() {
	if e.backup != "" {
		os.Rename(e.backup, e.target)
		e.backup = ""
		return
	}
	os.Remove(e.target)
}

func (b *fileBucket) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []Key
	err := b.walk(func(entry *fileEntry) bool {
		keys = append(keys, entry.Key)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys, nil
}

func (b *fileBucket) Delete(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	unlock := b.store.lock(b.lockID(key))
	defer unlock()

	if err := os.Remove(b.entryPath(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *fileBucket) entryPath(key Key) string {
	sum := sha1.Sum([]byte(key.String()))
	digest := hex.EncodeToString(sum[:])
	return filepath.Join(b.store.bucketPath(b.name), digest[:2], digest+entrySuffix)
}

func (b *fileBucket) lockID(key Key) string {
	return b.name + "::" + key.String()
}

// walk 遍历 bucket 目录下的全部条目，fn 返回 false 时提前结束。
func (b *fileBucket) walk(fn func(*fileEntry) bool) error {
	root := b.store.bucketPath(b.name)
	stop := errors.New("stop")
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), entrySuffix) {
			return nil
		}
		entry, readErr := readEntry(p)
		if readErr != nil {
			if errors.Is(readErr, ErrNotFound) {
				return nil
			}
			return readErr
		}
		if !fn(entry) {
			return stop
		}
		return nil
	})
	if errors.Is(err, stop) {
		return nil
	}
	return err
}

func readEntry(p string) (*fileEntry, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", p, err)
	}
	return &entry, nil
}

func writeTemp(target string, entry fileEntry) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	tempFile, err := os.CreateTemp(filepath.Dir(target), ".cache-*")
	if err != nil {
		return "", err
	}
	tempName := tempFile.Name()
	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return "", err
	}
	return tempName, nil
}
