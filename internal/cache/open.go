package cache

import "fmt"

// OpenStore 按驱动名构建 Store：fs 与 sqlite 以 path 为数据目录，memory 忽略 path。
func OpenStore(driver, path string) (Store, error) {
	switch driver {
	case "", "fs":
		return NewStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
