package version

import "fmt"

// Version/Commit/CacheGeneration 可在构建时通过 -ldflags 注入，默认使用开发占位符。
//
// CacheGeneration 决定当前缓存代的 bucket 名称；修改预缓存清单时必须同步提升该值，
// 以便新实例重新安装并清理旧代缓存。运行期配置无法覆盖它。
var (
	Version         = "0.1.0"
	Commit          = "dev"
	CacheGeneration = "shorturl-cache-v3"
)

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("offline-agent %s (%s) generation=%s", Version, Commit, CacheGeneration)
}
