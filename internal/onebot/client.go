package onebot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"qq-bridge/internal/apperr"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// DefaultTimeout 网关请求默认超时
const DefaultTimeout = 30 * time.Second

// Result 网关调用结果，OK 为 true 时只有 Payload 有意义，否则只有 Message/RetCode 有意义
type Result struct {
	OK      bool
	Payload interface{}
	Message string
	RetCode int
}

// PayloadMap 获取响应数据为 map 类型
func (r *Result) PayloadMap() map[string]interface{} {
	if r == nil || r.Payload == nil {
		return nil
	}
	if m, ok := r.Payload.(map[string]interface{}); ok {
		return m
	}
	return nil
}

func success(payload interface{}) *Result {
	return &Result{OK: true, Payload: payload}
}

func failure(retCode int, format string, args ...interface{}) *Result {
	return &Result{OK: false, RetCode: retCode, Message: fmt.Sprintf(format, args...)}
}

// Client OneBot HTTP 网关客户端，每次工具调用新建一个，不在调用间共享状态
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 使用共享的 http.Client（连接复用）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout 覆盖默认超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewHTTPClient 创建网关用的 http.Client：固定超时，不走环境代理
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// NewClient 创建网关客户端
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(c.timeout)
	}
	return c
}

// BaseURL 网关地址（已去掉末尾的 /）
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call 调用网关 action。ws:// 或 wss:// 地址走 WebSocket，其余走 HTTP POST
func (c *Client) Call(ctx context.Context, action string, params map[string]interface{}) (*Result, error) {
	if isWebSocketURL(c.baseURL) {
		return c.callWS(ctx, action, params)
	}
	return c.Execute(ctx, http.MethodPost, c.baseURL+"/"+action, params)
}

// Execute 发送一次网关请求并归一化响应。
// 网关层面的失败通过 Result 返回；只有传输层失败才返回 error（KindTransport）
func (c *Client) Execute(ctx context.Context, method, endpoint string, body map[string]interface{}) (*Result, error) {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransport, err, "Request failed: %s", err.Error())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err, 0)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err, resp.StatusCode)
	}

	zap.L().Debug("网关请求完成",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("cost", time.Since(start)))

	return classify(resp.StatusCode, raw)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body map[string]interface{}) (*http.Request, error) {
	var reader io.Reader
	if method == http.MethodGet {
		if len(body) > 0 {
			u, err := url.Parse(endpoint)
			if err != nil {
				return nil, err
			}
			q := u.Query()
			for k, v := range body {
				q.Set(k, queryValue(v))
			}
			u.RawQuery = q.Encode()
			endpoint = u.String()
		}
	} else if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

// classify 按顺序归类：带 retcode 的对象 → HTTP 200 → 其它
func classify(status int, raw []byte) (*Result, error) {
	var body interface{}
	decoded := len(bytes.TrimSpace(raw)) > 0 && sonic.Unmarshal(raw, &body) == nil

	if decoded {
		if obj, ok := body.(map[string]interface{}); ok {
			if rc, has := obj["retcode"]; has {
				return classifyEnvelope(obj, rc), nil
			}
		}
	}

	if status == http.StatusOK {
		if decoded {
			return success(body), nil
		}
		return success(string(raw)), nil
	}

	if status < 200 || status > 299 {
		return nil, transportError(fmt.Errorf("HTTP %d", status), status)
	}
	return failure(0, "Unexpected response format"), nil
}

// classifyEnvelope 处理 OneBot v11/v12 响应包，status 字段可选
func classifyEnvelope(obj map[string]interface{}, rc interface{}) *Result {
	code, ok := parseInt(rc)
	if ok && code == 0 {
		return success(obj["data"])
	}
	msg := firstString(obj["message"], obj["wording"])
	if msg == "" {
		msg = "API returned error"
	}
	if !ok {
		return failure(code, "API Error: %s (retcode: %v)", msg, rc)
	}
	return failure(code, "API Error: %s (retcode: %d)", msg, code)
}

func transportError(err error, status int) *apperr.Error {
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		msg = urlErr.Err.Error()
	}
	if status > 0 {
		return &apperr.Error{
			Kind:    apperr.KindTransport,
			Message: fmt.Sprintf("Request failed: %s (Status: %d)", msg, status),
			Status:  status,
			Err:     err,
		}
	}
	return apperr.Wrap(apperr.KindTransport, err, "Request failed: %s", msg)
}

func firstString(values ...interface{}) string {
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func queryValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	}
	if s, err := sonic.MarshalString(v); err == nil {
		return strings.Trim(s, `"`)
	}
	return fmt.Sprint(v)
}

func isWebSocketURL(u string) bool {
	return strings.HasPrefix(u, "ws://") || strings.HasPrefix(u, "wss://")
}

// 助手函数
func parseInt(v interface{}) (int, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case float64:
		return int(val), true
	case int64:
		return int(val), true
	case string:
		i, err := strconv.Atoi(val)
		return i, err == nil
	}
	return 0, false
}
