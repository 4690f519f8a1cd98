package agent

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/shorturl/offline-agent/internal/cache"
)

// bucketWriter 负责把回源响应写穿到当前缓存代，写入失败只记日志，不影响响应本身。
type bucketWriter struct {
	store        cache.Store
	generation   string
	maxEntrySize int64
	logger       *logrus.Logger
}

func (w bucketWriter) open(ctx context.Context) (cache.Bucket, error) {
	return w.store.Open(ctx, w.generation)
}

// writeThrough 复制 resp 正文并以 key 写入；resp.Body 在返回后依然完整可读。
func (w bucketWriter) writeThrough(ctx context.Context, key cache.Key, resp *http.Response) bool {
	if !isCacheableStatus(resp.StatusCode) {
		return false
	}

	snapshot, err := cache.Capture(resp, w.maxEntrySize)
	if err != nil {
		level := logrus.WarnLevel
		if errors.Is(err, cache.ErrEntryTooLarge) {
			level = logrus.DebugLevel
		}
		w.logger.WithError(err).WithFields(logrus.Fields{
			"action":     "cache_put_skipped",
			"generation": w.generation,
			"key":        key.String(),
		}).Log(level, "cache_put_skipped")
		return false
	}

	bucket, err := w.open(ctx)
	if err == nil {
		err = bucket.Put(ctx, key, snapshot)
	}
	if err != nil {
		w.logger.WithError(err).WithFields(logrus.Fields{
			"action":     "cache_put",
			"generation": w.generation,
			"key":        key.String(),
		}).Warn("cache_put_failed")
		return false
	}
	return true
}

// isCacheableStatus 仅接受 2xx（206 除外）的响应，避免把错误页写成外壳页。
func isCacheableStatus(status int) bool {
	return status >= 200 && status < 300 && status != http.StatusPartialContent
}
