package bridge

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"qq-bridge/internal/apperr"
	"qq-bridge/internal/audit"
	"qq-bridge/internal/config"
	"qq-bridge/internal/onebot"
	"qq-bridge/internal/qzone"
	"qq-bridge/internal/tools"
	"qq-bridge/internal/utils"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	contextArg  = "_context"
	namespace   = "qq."
	auditBudget = 3 * time.Second
)

// TextContent 结果中的文本片段
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult 返回给宿主的结果，成功和失败同一形状
type ToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Text 拼接全部文本片段
func (r *ToolResult) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

func textResult(text string, isError bool) *ToolResult {
	return &ToolResult{Content: []TextContent{{Type: "text", Text: text}}, IsError: isError}
}

// CallRecord 最近调用记录
type CallRecord struct {
	TraceID  string    `json:"trace_id"`
	Tool     string    `json:"tool"`
	OK       bool      `json:"ok"`
	Kind     string    `json:"kind,omitempty"`
	Duration string    `json:"duration"`
	Time     time.Time `json:"time"`
}

// Dispatcher 按工具名路由调用，每次调用使用独立的网关客户端和发布器
type Dispatcher struct {
	cfg      *config.Config
	registry *Registry

	gatewayHTTP *http.Client
	feed        *qzone.FeedClient

	recent   *utils.RingBuffer[CallRecord]
	recorder audit.Recorder
}

// Option 调度器选项
type Option func(*Dispatcher)

// WithRecorder 设置审计记录器
func WithRecorder(r audit.Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithGatewayHTTPClient 替换网关使用的 http.Client
func WithGatewayHTTPClient(hc *http.Client) Option {
	return func(d *Dispatcher) {
		if hc != nil {
			d.gatewayHTTP = hc
		}
	}
}

// WithFeedClient 替换说说发布使用的客户端
func WithFeedClient(fc *qzone.FeedClient) Option {
	return func(d *Dispatcher) {
		if fc != nil {
			d.feed = fc
		}
	}
}

// New 创建调度器，cfg 在启动时解析一次
func New(cfg *config.Config, opts ...Option) (*Dispatcher, error) {
	all, err := tools.NewAll()
	if err != nil {
		return nil, err
	}
	return newDispatcher(cfg, all, opts...)
}

func newDispatcher(cfg *config.Config, all []tool.InvokableTool, opts ...Option) (*Dispatcher, error) {
	registry, err := NewRegistry(context.Background(), all)
	if err != nil {
		return nil, err
	}

	insecure := true
	if cfg.QZone.InsecureSkipVerify != nil {
		insecure = *cfg.QZone.InsecureSkipVerify
	}

	d := &Dispatcher{
		cfg:         cfg,
		registry:    registry,
		gatewayHTTP: onebot.NewHTTPClient(cfg.GatewayTimeout()),
		feed:        qzone.NewFeedClient(cfg.QZoneTimeout(), insecure),
		recent:      utils.NewRingBuffer[CallRecord](cfg.Debug.RecentCalls),
		recorder:    audit.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Tools 全部工具的描述，按注册顺序
func (d *Dispatcher) Tools() []ToolSpec {
	return d.registry.Specs()
}

// Recent 最近 n 次调用
func (d *Dispatcher) Recent(n int) []CallRecord {
	return d.recent.GetLast(n)
}

// Dispatch 执行一次工具调用，任何失败都转换为 isError 结果，不向上抛
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) (res *ToolResult) {
	traceID := uuid.NewString()
	start := time.Now()
	var err error

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("工具调用 panic", zap.String("trace_id", traceID), zap.String("tool", name),
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = apperr.New(apperr.KindInternal, "panic: %v", r)
			res = d.errorResult(name, err)
		}
		d.finish(ctx, traceID, name, start, err)
	}()

	res, err = d.dispatch(ctx, name, args)
	if err != nil {
		return d.errorResult(name, err)
	}
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	if args == nil {
		args = map[string]interface{}{}
	}

	token, host, err := d.credentials(args)
	if err != nil {
		return nil, err
	}

	t, ok := d.registry.Lookup(name)
	if !ok {
		return nil, apperr.New(apperr.KindUnknownTool, "Unknown tool: %s", name)
	}

	gateway := onebot.NewClient(host, token, onebot.WithHTTPClient(d.gatewayHTTP))
	publisher := qzone.NewPublisher(gateway, d.feed,
		qzone.WithPublishURL(d.cfg.QZone.PublishURL),
		qzone.WithCookieDomain(d.cfg.QZone.CookieDomain),
	)
	ctx = tools.WithToolContext(ctx, &tools.ToolContext{
		Gateway:       gateway,
		Publisher:     publisher,
		ShowToolCalls: d.cfg.Debug.ShowToolCalls,
	})

	arguments, err := sonic.MarshalString(args)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "Invalid arguments: %s", err.Error())
	}
	out, err := t.InvokableRun(ctx, arguments)
	if err != nil {
		return nil, err
	}
	return textResult(out, false), nil
}

// credentials _context 优先，其次是启动配置
func (d *Dispatcher) credentials(args map[string]interface{}) (token, host string, err error) {
	if cc, ok := args[contextArg].(map[string]interface{}); ok {
		token, _ = cc["token"].(string)
		host, _ = cc["host"].(string)
	}
	if token == "" {
		token = d.cfg.OneBot.Token
	}
	if host == "" {
		host = d.cfg.OneBot.BaseURL
	}
	if token == "" || host == "" {
		return "", "", apperr.New(apperr.KindConfiguration,
			"Missing configuration: 'token' or 'host' must be provided in _context or environment variables (%s, %s).",
			config.EnvToken, config.EnvBaseURL)
	}
	return token, strings.TrimSuffix(host, "/"), nil
}

func (d *Dispatcher) errorResult(name string, err error) *ToolResult {
	return textResult(fmt.Sprintf("Error executing %s: %s", name, apperr.Message(err)), true)
}

func (d *Dispatcher) finish(ctx context.Context, traceID, name string, start time.Time, err error) {
	elapsed := time.Since(start)
	var kind string
	if err != nil {
		kind = string(apperr.KindOf(err))
	}

	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.String("tool", name),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		zap.L().Warn("工具调用失败", append(fields, zap.String("kind", kind), zap.Error(err))...)
	} else {
		zap.L().Info("工具调用完成", fields...)
	}

	d.recent.Push(CallRecord{
		TraceID:  traceID,
		Tool:     name,
		OK:       err == nil,
		Kind:     kind,
		Duration: elapsed.String(),
		Time:     start,
	})

	var msg string
	if err != nil {
		msg = apperr.Message(err)
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditBudget)
	defer cancel()
	if aerr := d.recorder.Record(actx, audit.NewCallLog(traceID, name, kind, elapsed, msg)); aerr != nil {
		zap.L().Warn("写入审计记录失败", zap.String("trace_id", traceID), zap.Error(aerr))
	}
}

// Canonical 工具名的规范形式，未注册返回 false
func (d *Dispatcher) Canonical(name string) (string, bool) {
	return d.registry.Canonical(name)
}
