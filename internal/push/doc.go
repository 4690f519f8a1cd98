// Package push 实现推送通知的透传边界：解析推送负载、展示通知、
// 并在点击时聚焦已打开的窗口或新开窗口。它不负责真实的推送投递。
package push
