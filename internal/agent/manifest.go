package agent

const (
	// ShellPath 是导航成功后刷新的站点外壳页。
	ShellPath = "/"
	// OfflinePath 是离线兜底页。
	OfflinePath = "/offline/"
	// StaticMarker 出现在 URL 路径中即视为静态资源。
	StaticMarker = "/static/"
)

var defaultManifest = []string{
	ShellPath,
	OfflinePath,
	"/static/manifest.json",
	"/static/icons/icon-192.png",
	"/static/icons/icon-512.png",
}

// DefaultManifest 返回构建期固定的预缓存清单副本。修改清单必须同时提升缓存代。
func DefaultManifest() []string {
	return append([]string(nil), defaultManifest...)
}
