package qzone

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultPublishURL 说说发布接口（g_tk 由调用方拼在 query 上）
	DefaultPublishURL = "https://user.qzone.qq.com/proxy/domain/taotao.qzone.qq.com/cgi-bin/emotion_cgi_publish_v6"
	// DefaultCookieDomain 向网关取 cookie 时使用的域
	DefaultCookieDomain = "qzone.qq.com"
	// DefaultFeedTimeout 发布请求超时
	DefaultFeedTimeout = 30 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// FeedClient 只用于 QZone 发布接口的 HTTP 客户端。
// QZone 边缘节点的证书链过不了默认信任库，所以这里可以关闭证书校验；
// 这个放宽只存在于 FeedClient 自己的 Transport 上，网关客户端不受影响
type FeedClient struct {
	hc *http.Client
}

// FeedResponse 发布接口的原始响应
type FeedResponse struct {
	StatusCode int
	Body       []byte
}

// NewFeedClient 创建发布客户端
func NewFeedClient(timeout time.Duration, insecureSkipVerify bool) *FeedClient {
	if timeout <= 0 {
		timeout = DefaultFeedTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 仅限 QZone 发布接口
	}
	return &FeedClient{
		hc: &http.Client{Timeout: timeout, Transport: transport},
	}
}

// PostForm 以表单形式提交，cookie 原样放进 Cookie 头。
// 返回 error 时若已拿到响应，resp 也会一并返回，便于记录状态码和响应体
func (f *FeedClient) PostForm(ctx context.Context, endpoint string, form *Form, cookie, referer string) (*FeedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	out := &FeedResponse{StatusCode: resp.StatusCode, Body: body}
	if err != nil {
		return out, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("request failed with status code %d", resp.StatusCode)
	}
	return out, nil
}

// Form 保持字段顺序的表单，url.Values 编码时会按 key 排序
type Form struct {
	keys   []string
	values []string
}

// Add 追加字段
func (f *Form) Add(key, value string) {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
}

// Get 取第一个同名字段
func (f *Form) Get(key string) string {
	for i, k := range f.keys {
		if k == key {
			return f.values[i]
		}
	}
	return ""
}

// Encode 按添加顺序编码成 application/x-www-form-urlencoded
func (f *Form) Encode() string {
	var sb strings.Builder
	for i, k := range f.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.values[i]))
	}
	return sb.String()
}
