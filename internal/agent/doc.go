// Package agent 实现离线缓存代理的核心策略：
//
//   - Installer 在 install 阶段把预缓存清单整体写入当前缓存代的 bucket；
//   - Reaper 在 activate 阶段删除其它缓存代；
//   - Router 对每个拦截请求分类：非 GET 直接透传，导航请求走 NavigationStrategy
//     （网络优先，失败回退缓存页/离线页），静态资源走 AssetStrategy（缓存优先，未命中回源并写穿）；
//   - Agent 串联 uninstalled → installing → installed → activating → active 状态机。
//
// 缓存代名称与 Store 均在构造时注入，包内不持有任何全局状态。
package agent
