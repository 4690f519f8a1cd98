package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store 管理按缓存代命名的 bucket 集合，对应宿主提供的 origin 级缓存存储。
type Store interface {
	// Open 打开（不存在则创建）名为 name 的 bucket。
	Open(ctx context.Context, name string) (Bucket, error)

	// Names 返回当前存在的全部 bucket 名称，按字典序排列。
	Names(ctx context.Context) ([]string, error)

	// Has 判断 bucket 是否存在。
	Has(ctx context.Context, name string) (bool, error)

	// Delete 删除整个 bucket 及其条目，返回删除前是否存在。
	Delete(ctx context.Context, name string) (bool, error)

	// Close 释放底层资源（文件句柄、数据库连接）。
	Close() error
}

// Bucket 是单个缓存代内的键值存储。同一 Key 的并发写入遵循 last-write-wins。
type Bucket interface {
	Name() string

	// Match 查找条目，未命中返回 ErrNotFound。
	Match(ctx context.Context, key Key, opts MatchOptions) (*Snapshot, error)

	// Put 写入单个条目，覆盖同 Key 的旧值。
	Put(ctx context.Context, key Key, snapshot *Snapshot) error

	// PutAll 批量写入；任一条目写入失败时整批都不可见。
	PutAll(ctx context.Context, records []Record) error

	// Keys 列出 bucket 内全部 Key。
	Keys(ctx context.Context) ([]Key, error)

	// Delete 删除单个条目，返回删除前是否存在。
	Delete(ctx context.Context, key Key) (bool, error)
}

// MatchOptions 控制 Match 的宽松程度。
type MatchOptions struct {
	// IgnoreSearch 为 true 时忽略 URL 查询串，仅按方法与路径匹配。
	IgnoreSearch bool
}

// Record 组合 Key 与 Snapshot，供批量写入使用。
type Record struct {
	Key      Key
	Snapshot *Snapshot
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidBucketName 表示 bucket 名称为空或包含路径分隔符。
	ErrInvalidBucketName = errors.New("invalid bucket name")
)

func validateBucketName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name {
		return ErrInvalidBucketName
	}
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return ErrInvalidBucketName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidBucketName
	}
	return nil
}

var errNilSnapshot = errors.New("snapshot required")

func validateRecords(records []Record) error {
	for _, record := range records {
		if record.Snapshot == nil {
			return fmt.Errorf("%s: %w", record.Key, errNilSnapshot)
		}
	}
	return nil
}
