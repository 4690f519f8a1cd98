package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition 表示生命周期事件与当前状态不匹配。
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrOfflineUnavailable 表示导航回源失败且缓存中既无原请求也无离线页。
	ErrOfflineUnavailable = errors.New("offline page unavailable")
)

// InstallError 记录导致预缓存失败的清单条目。
type InstallError struct {
	URL    string
	Status int
	Err    error
}

func (e *InstallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("precache %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("precache %s: unexpected status %d", e.URL, e.Status)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// NetworkError 表示静态资源回源失败且没有可用缓存，错误原样交给调用方。
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
