package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 支持的缓存存储驱动。
const (
	StorageDriverFS     = "fs"
	StorageDriverSQLite = "sqlite"
	StorageDriverMemory = "memory"
)

// GlobalConfig 描述全局运行时行为：监听端口、日志、缓存存储以及源站访问参数。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	StorageDriver   string   `mapstructure:"StorageDriver"`
	Origin          string   `mapstructure:"Origin"`
	Proxy           string   `mapstructure:"Proxy"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`
	MaxEntrySize    int64    `mapstructure:"MaxEntrySize"`
}

// PushConfig 控制推送/通知透传能力。
type PushConfig struct {
	Enabled      bool `mapstructure:"Enabled"`
	HistoryLimit int  `mapstructure:"HistoryLimit"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Push   PushConfig   `mapstructure:"Push"`
}

// StorageTarget 输出 driver:path 形式的摘要，供启动日志使用。
func (g GlobalConfig) StorageTarget() string {
	if g.StorageDriver == StorageDriverMemory {
		return g.StorageDriver
	}
	return fmt.Sprintf("%s:%s", g.StorageDriver, g.StoragePath)
}
