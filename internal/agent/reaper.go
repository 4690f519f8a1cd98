package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/shorturl/offline-agent/internal/cache"
)

// Reaper 删除当前缓存代以外的全部 bucket。
type Reaper struct {
	store      cache.Store
	generation string
	logger     *logrus.Logger
}

// Reap 返回被删除的 bucket 名称；没有旧缓存代时为空操作。
func (r *Reaper) Reap(ctx context.Context) ([]string, error) {
	names, err := r.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	var deleted []string
	for _, name := range names {
		if name == r.generation {
			continue
		}
		removed, err := r.store.Delete(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("delete bucket %s: %w", name, err)
		}
		if removed {
			deleted = append(deleted, name)
			r.logger.WithFields(logrus.Fields{
				"action":     "reap",
				"generation": r.generation,
				"bucket":     name,
			}).Info("stale_generation_deleted")
		}
	}
	return deleted, nil
}
