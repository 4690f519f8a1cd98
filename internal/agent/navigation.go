package agent

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/shorturl/offline-agent/internal/cache"
)

// NavigationStrategy 处理页面导航：网络优先，成功时刷新外壳页，失败时回退缓存与离线页。
type NavigationStrategy struct {
	writer  bucketWriter
	fetcher Fetcher
}

// Serve 先回源。收到响应（任何状态码）即原样返回，并把 2xx 副本写到 "/" 键下；
// 网络失败时依次尝试原请求的缓存与 /offline/ 缓存，都没有则返回 ErrOfflineUnavailable。
func (s *NavigationStrategy) Serve(ctx context.Context, req *Request) (*Result, error) {
	resp, err := s.fetcher.Fetch(ctx, req)
	if err == nil {
		s.writer.writeThrough(ctx, cache.NewKey(http.MethodGet, ShellPath), resp)
		return &Result{Response: resp, Decision: DecisionNavigation, Source: SourceNetwork}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	s.writer.logger.WithError(err).WithFields(logrus.Fields{
		"action":     "navigation_fallback",
		"generation": s.writer.generation,
		"path":       req.Path(),
	}).Warn("navigation_network_failed")

	bucket, openErr := s.writer.open(ctx)
	if openErr != nil {
		return nil, errors.Join(ErrOfflineUnavailable, openErr)
	}

	if snapshot, matchErr := bucket.Match(ctx, req.Key(), cache.MatchOptions{}); matchErr == nil {
		return &Result{Response: snapshot.Response(nil), Decision: DecisionNavigation, Source: SourceFallback}, nil
	}
	if snapshot, matchErr := bucket.Match(ctx, cache.NewKey(http.MethodGet, OfflinePath), cache.MatchOptions{}); matchErr == nil {
		return &Result{Response: snapshot.Response(nil), Decision: DecisionNavigation, Source: SourceOffline}, nil
	}
	return nil, ErrOfflineUnavailable
}
