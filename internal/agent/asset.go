package agent

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/shorturl/offline-agent/internal/cache"
)

// AssetStrategy 处理静态资源：缓存优先，未命中时回源并写穿。
type AssetStrategy struct {
	writer  bucketWriter
	fetcher Fetcher
}

// Serve 命中当前缓存代时不发起任何网络请求；未命中时回源，
// 网络失败且无缓存则返回 *NetworkError。
func (s *AssetStrategy) Serve(ctx context.Context, req *Request) (*Result, error) {
	key := req.Key()
	bucket, err := s.writer.open(ctx)
	if err == nil {
		snapshot, matchErr := bucket.Match(ctx, key, cache.MatchOptions{})
		switch {
		case matchErr == nil:
			return &Result{Response: snapshot.Response(nil), Decision: DecisionAsset, Source: SourceHit}, nil
		case !errors.Is(matchErr, cache.ErrNotFound):
			s.writer.logger.WithError(matchErr).WithFields(logrus.Fields{
				"action":     "cache_match",
				"generation": s.writer.generation,
				"key":        key.String(),
			}).Warn("cache_match_failed")
		}
	}

	resp, err := s.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, &NetworkError{URL: req.URL.String(), Err: err}
	}
	s.writer.writeThrough(ctx, key, resp)
	return &Result{Response: resp, Decision: DecisionAsset, Source: SourceMiss}, nil
}
