package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/shorturl/offline-agent/internal/agent"
	"github.com/shorturl/offline-agent/internal/logging"
	"github.com/shorturl/offline-agent/internal/server"
)

// CacheHeader 标记响应来源：hit/miss/network/fallback/offline/bypass。
const CacheHeader = "X-Agent-Cache"

// Interceptor 是 agent 的最小依赖面，便于在测试中替换。
type Interceptor interface {
	Generation() string
	Intercept(ctx context.Context, req *agent.Request) (*agent.Result, error)
}

// Handler 把 Fiber 请求转换为 agent.Request，交给 agent 决策后把结果写回客户端。
type Handler struct {
	agent  Interceptor
	logger *logrus.Logger
}

// NewHandler constructs the interception handler.
func NewHandler(a Interceptor, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{agent: a, logger: logger}
}

// Handle 实现 server.ProxyHandler。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	req, err := buildAgentRequest(c)
	if err != nil {
		h.logResult(c, nil, requestID, 0, started, err)
		return h.writeError(c, fiber.StatusBadRequest, "invalid_request")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.agent.Intercept(ctx, req)
	if err != nil {
		h.logResult(c, nil, requestID, 0, started, err)
		if errors.Is(err, agent.ErrOfflineUnavailable) {
			return h.writeError(c, fiber.StatusServiceUnavailable, "offline_unavailable")
		}
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}
	defer result.Response.Body.Close()

	copyResponseHeaders(c, result.Response.Header)
	c.Set(CacheHeader, string(result.Source))
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(result.Response.StatusCode)

	if c.Method() == http.MethodHead {
		// HEAD 没有响应体，Content-Length 需按源站原值回写
		if cl := result.Response.ContentLength; cl >= 0 {
			c.Response().Header.SetContentLength(int(cl))
		}
		h.logResult(c, result, requestID, result.Response.StatusCode, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), result.Response.Body)
	h.logResult(c, result, requestID, result.Response.StatusCode, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("proxy stream failed: %v", err))
	}
	return nil
}

// buildAgentRequest 复制请求方法、URL、头部与正文，并补充 X-Forwarded-* 头。
func buildAgentRequest(c fiber.Ctx) (*agent.Request, error) {
	req, err := agent.NewRequest(c.Method(), c.OriginalURL())
	if err != nil {
		return nil, err
	}
	req.Header = fiberHeadersAsHTTP(c)
	req.Mode, req.Destination = agent.Classify(req.Method, req.Header)
	if body := c.Body(); len(body) > 0 {
		req.Body = append([]byte(nil), body...)
	}

	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Scheme())
	return req, nil
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

// copyResponseHeaders 逐值追加响应头；Content-Length 由 fasthttp 依据实际正文计算。
func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) || http.CanonicalHeaderKey(key) == "Content-Length" {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(c fiber.Ctx, result *agent.Result, requestID string, status int, started time.Time, err error) {
	decision, source := "", ""
	if result != nil {
		decision = result.Decision.String()
		source = string(result.Source)
	}
	fields := logging.RequestFields(h.agent.Generation(), c.Method(), c.OriginalURL(), decision, source)
	fields["action"] = "intercept"
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("intercept_failed")
		return
	}
	h.logger.WithFields(fields).Info("intercept_complete")
}
