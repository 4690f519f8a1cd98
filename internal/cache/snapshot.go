package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Snapshot 是一次响应的完整副本（状态码、头部、正文），可多次还原为 *http.Response。
type Snapshot struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

// ErrEntryTooLarge 表示响应正文超过允许缓存的上限。
var ErrEntryTooLarge = errors.New("response body exceeds cache entry limit")

// Capture 读取 resp 的正文生成 Snapshot，并把 resp.Body 替换为等价的新 Reader，
// 使调用方仍可把原响应原样返回。limit<=0 表示不限制。
//
// 正文超过 limit 时返回 ErrEntryTooLarge，此时 resp.Body 仍然完整可读（已读部分 + 剩余流），
// 调用方应直接透传响应而不写缓存。
func Capture(resp *http.Response, limit int64) (*Snapshot, error) {
	if resp == nil {
		return nil, errors.New("nil response")
	}
	body := resp.Body
	if body == nil {
		body = http.NoBody
	}

	reader := io.Reader(body)
	if limit > 0 {
		reader = io.LimitReader(body, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(data))
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if limit > 0 && int64(len(data)) > limit {
		resp.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(data), body), closer: body}
		return nil, ErrEntryTooLarge
	}
	body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))

	return &Snapshot{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     data,
		StoredAt: time.Now().UTC(),
	}, nil
}

// Response 将 Snapshot 还原为独立的 *http.Response，每次调用都返回新的正文 Reader。
func (s *Snapshot) Response(req *http.Request) *http.Response {
	header := s.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(s.Body)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", s.Status, http.StatusText(s.Status)),
		StatusCode:    s.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(s.Body)),
		ContentLength: int64(len(s.Body)),
		Request:       req,
	}
}

// Clone 深拷贝 Snapshot，避免内存驱动与调用方共享切片。
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Status:   s.Status,
		Header:   s.Header.Clone(),
		Body:     append([]byte(nil), s.Body...),
		StoredAt: s.StoredAt,
	}
}

type replayBody struct {
	io.Reader
	closer io.Closer
}

func (r *replayBody) Close() error {
	return r.closer.Close()
}
