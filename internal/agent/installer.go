package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shorturl/offline-agent/internal/cache"
)

// Installer 在 install 阶段把预缓存清单完整写入当前缓存代。
type Installer struct {
	writer   bucketWriter
	fetcher  Fetcher
	manifest []string
}

// Install 并发抓取全部清单 URL；任一失败（网络错误或非 2xx）时整批放弃，不写入任何条目。
// 即使其它缓存代已有相同 URL 也会重新抓取。返回写入的条目数。
func (i *Installer) Install(ctx context.Context) (int, error) {
	bucket, err := i.writer.open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open bucket %s: %w", i.writer.generation, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	records := make([]cache.Record, len(i.manifest))
	errs := make([]error, len(i.manifest))
	var wg sync.WaitGroup
	for idx, rawURL := range i.manifest {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()
			record, err := i.fetchOne(ctx, rawURL)
			if err != nil {
				errs[idx] = err
				cancel()
				return
			}
			records[idx] = record
		}(idx, rawURL)
	}
	wg.Wait()

	if err := firstInstallError(errs); err != nil {
		return 0, err
	}
	if err := bucket.PutAll(ctx, records); err != nil {
		return 0, fmt.Errorf("store precache batch: %w", err)
	}
	return len(records), nil
}

func (i *Installer) fetchOne(ctx context.Context, rawURL string) (cache.Record, error) {
	req, err := NewRequest(http.MethodGet, rawURL)
	if err != nil {
		return cache.Record{}, &InstallError{URL: rawURL, Err: err}
	}

	started := time.Now()
	resp, err := i.fetcher.Fetch(ctx, req)
	if err != nil {
		return cache.Record{}, &InstallError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return cache.Record{}, &InstallError{URL: rawURL, Status: resp.StatusCode}
	}
	snapshot, err := cache.Capture(resp, i.writer.maxEntrySize)
	if err != nil {
		return cache.Record{}, &InstallError{URL: rawURL, Status: resp.StatusCode, Err: err}
	}

	i.writer.logger.WithFields(logrus.Fields{
		"action":     "precache_fetch",
		"generation": i.writer.generation,
		"url":        rawURL,
		"status":     resp.StatusCode,
		"bytes":      len(snapshot.Body),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Debug("precache_fetched")

	return cache.Record{Key: req.Key(), Snapshot: snapshot}, nil
}

// firstInstallError 优先返回真正的失败原因，而不是由 cancel 引起的连带取消错误。
func firstInstallError(errs []error) error {
	var fallback error
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ie *InstallError
		if errors.As(err, &ie) && errors.Is(ie.Err, context.Canceled) {
			if fallback == nil {
				fallback = err
			}
			continue
		}
		return err
	}
	return fallback
}
