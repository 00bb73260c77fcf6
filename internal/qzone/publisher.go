package qzone

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"qq-bridge/internal/apperr"
	"qq-bridge/internal/onebot"
	"qq-bridge/internal/utils"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Gateway 取 cookie 用到的网关能力
type Gateway interface {
	Call(ctx context.Context, action string, params map[string]interface{}) (*onebot.Result, error)
}

// State 发布流程所处阶段
type State int

const (
	StateFetchingCookies State = iota
	StateExtractingSession
	StateComputingToken
	StatePublishing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFetchingCookies:
		return "fetching_cookies"
	case StateExtractingSession:
		return "extracting_session"
	case StateComputingToken:
		return "computing_token"
	case StatePublishing:
		return "publishing"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// PublishOutput 发布成功的结果。QZone 不保证返回结构化的成功标记，2xx 即视为成功
type PublishOutput struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"status_code"`
	Data       interface{} `json:"data"`
}

// Publisher 说说发布器，无状态，每次调用都重新取 cookie
type Publisher struct {
	gateway      Gateway
	feed         *FeedClient
	publishURL   string
	cookieDomain string
}

// PublisherOption 发布器选项
type PublisherOption func(*Publisher)

// WithPublishURL 覆盖发布接口地址
func WithPublishURL(u string) PublisherOption {
	return func(p *Publisher) {
		if u != "" {
			p.publishURL = u
		}
	}
}

// WithCookieDomain 覆盖取 cookie 的域
func WithCookieDomain(domain string) PublisherOption {
	return func(p *Publisher) {
		if domain != "" {
			p.cookieDomain = domain
		}
	}
}

// NewPublisher 创建发布器
func NewPublisher(gateway Gateway, feed *FeedClient, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		gateway:      gateway,
		feed:         feed,
		publishURL:   DefaultPublishURL,
		cookieDomain: DefaultCookieDomain,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// session 从 cookie 里拿到的登录态
type session struct {
	cookies string
	hostUIN string
	pskey   string
}

// Publish 发布一条说说：取 cookie → 解析 uin/p_skey → 算 g_tk → 直连 QZone 发布
func (p *Publisher) Publish(ctx context.Context, content string) (*PublishOutput, error) {
	state := StateFetchingCookies
	fail := func(err error) (*PublishOutput, error) {
		zap.L().Warn("QZone 发布失败", zap.Stringer("state", state), zap.Error(err))
		return nil, err
	}

	cookies, err := p.fetchCookies(ctx)
	if err != nil {
		return fail(err)
	}

	state = StateExtractingSession
	sess, err := extractSession(cookies)
	if err != nil {
		return fail(err)
	}

	state = StateComputingToken
	gtk := GTK(sess.pskey)
	zap.L().Debug("QZone 登录态",
		zap.String("host_uin", sess.hostUIN),
		zap.Int64("g_tk", gtk),
		zap.String("cookies", MaskCookies(sess.cookies)))

	state = StatePublishing
	out, err := p.post(ctx, sess, gtk, content)
	if err != nil {
		return fail(err)
	}

	state = StateDone
	zap.L().Info("QZone 发布成功", zap.String("host_uin", sess.hostUIN), zap.Int("status", out.StatusCode))
	return out, nil
}

func (p *Publisher) fetchCookies(ctx context.Context) (string, error) {
	res, err := p.gateway.Call(ctx, "get_cookies", map[string]interface{}{"domain": p.cookieDomain})
	if err != nil {
		return "", apperr.Wrap(apperr.KindOf(err), err, "Failed to get cookies: %s", apperr.Message(err))
	}
	if !res.OK {
		return "", &apperr.Error{
			Kind:    apperr.KindGateway,
			Message: "Failed to get cookies: " + res.Message,
			RetCode: res.RetCode,
		}
	}
	cookies, _ := res.PayloadMap()["cookies"].(string)
	if cookies == "" {
		return "", apperr.New(apperr.KindGateway, "Failed to get cookies: Empty response")
	}
	return cookies, nil
}

func extractSession(cookies string) (*session, error) {
	jar := ParseCookies(cookies)
	hostUIN, ok := ExtractAccountID(jar)
	if !ok {
		return nil, apperr.New(apperr.KindSessionExtraction, "Failed to extract QQ from cookies")
	}
	pskey, ok := ExtractSigningKey(jar)
	if !ok {
		return nil, apperr.New(apperr.KindSessionExtraction, "Failed to extract p_skey from cookies")
	}
	return &session{cookies: cookies, hostUIN: hostUIN, pskey: pskey}, nil
}

// BuildForm 构造发布表单，字段顺序与网页端一致
func BuildForm(content, hostUIN string) *Form {
	f := &Form{}
	f.Add("syn_tweet_verson", "1")
	f.Add("paramstr", "1")
	f.Add("pic_template", "")
	f.Add("richtype", "")
	f.Add("richval", "")
	f.Add("special_url", "")
	f.Add("subrichtype", "")
	f.Add("who", "1")
	f.Add("con", content)
	f.Add("feedversion", "1")
	f.Add("ver", "1")
	f.Add("ugc_right", "1")
	f.Add("to_sign", "0")
	f.Add("hostuin", hostUIN)
	f.Add("code_version", "1")
	f.Add("format", "fs")
	f.Add("qzreferrer", referer(hostUIN))
	return f
}

func referer(hostUIN string) string {
	return "https://user.qzone.qq.com/" + hostUIN
}

func (p *Publisher) publishEndpoint(gtk int64) string {
	sep := "?&"
	if strings.Contains(p.publishURL, "?") {
		sep = "&"
	}
	return p.publishURL + sep + "g_tk=" + strconv.FormatInt(gtk, 10)
}

func (p *Publisher) post(ctx context.Context, sess *session, gtk int64, content string) (*PublishOutput, error) {
	resp, err := p.feed.PostForm(ctx, p.publishEndpoint(gtk), BuildForm(content, sess.hostUIN), sess.cookies, referer(sess.hostUIN))
	if err != nil {
		code := "unknown"
		status := 0
		if resp != nil {
			status = resp.StatusCode
			code = strconv.Itoa(status)
			zap.L().Error("QZone 发布响应异常",
				zap.Int("status", status),
				zap.String("body", truncate(string(resp.Body), 500)))
		}
		return nil, &apperr.Error{
			Kind:    apperr.KindFeedPublish,
			Message: "QZone Publish failed: " + describe(err) + " (Code: " + code + ")",
			Status:  status,
			Err:     err,
		}
	}

	var data interface{}
	if err := sonic.Unmarshal(resp.Body, &data); err != nil {
		data = string(resp.Body)
	}
	return &PublishOutput{
		Message:    "Publish successful",
		StatusCode: resp.StatusCode,
		Data:       data,
	}, nil
}

// describe 去掉 url.Error 里带 g_tk 的完整地址
func describe(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if cut := utils.Truncate(s, n); cut != s {
		return cut + "..."
	}
	return s
}
