package tools

import (
	"context"
	"fmt"

	"qq-bridge/internal/apperr"
	"qq-bridge/internal/onebot"
	"qq-bridge/internal/qzone"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"go.uber.org/zap"
)

// Gateway 网关调用能力
type Gateway interface {
	Call(ctx context.Context, action string, params map[string]interface{}) (*onebot.Result, error)
}

// Publisher QZone 发布能力
type Publisher interface {
	Publish(ctx context.Context, content string) (*qzone.PublishOutput, error)
}

// ToolContext 单次工具调用的上下文，由调度器按本次调用的凭据构造
type ToolContext struct {
	Gateway       Gateway
	Publisher     Publisher
	ShowToolCalls bool
}

// ctxKey 上下文键类型
type ctxKey string

const toolContextKey ctxKey = "tool_context"

// WithToolContext 将工具上下文放入 context
func WithToolContext(ctx context.Context, tc *ToolContext) context.Context {
	return context.WithValue(ctx, toolContextKey, tc)
}

// GetToolContext 从 context 获取工具上下文
func GetToolContext(ctx context.Context) *ToolContext {
	if tc, ok := ctx.Value(toolContextKey).(*ToolContext); ok {
		return tc
	}
	return nil
}

func mustToolContext(ctx context.Context) (*ToolContext, error) {
	tc := GetToolContext(ctx)
	if tc == nil {
		return nil, apperr.New(apperr.KindInternal, "工具上下文未初始化")
	}
	return tc, nil
}

// LogToolCall 记录工具调用，input 中不能带凭据
func (tc *ToolContext) LogToolCall(toolName string, input interface{}, output interface{}, err error) {
	if tc == nil || !tc.ShowToolCalls {
		return
	}
	inputJSON, _ := sonic.MarshalString(input)
	outputJSON, _ := sonic.MarshalString(output)
	if err != nil {
		zap.L().Debug("工具调用", zap.String("tool", toolName), zap.String("input", inputJSON), zap.String("output", outputJSON), zap.Error(err))
	} else {
		zap.L().Debug("工具调用", zap.String("tool", toolName), zap.String("input", inputJSON), zap.String("output", outputJSON))
	}
}

// CallContext 单次调用可携带的网关凭据，缺省时使用启动配置
type CallContext struct {
	Token string `json:"token,omitempty" jsonschema:"description=Bearer token of the OneBot gateway"`
	Host  string `json:"host,omitempty" jsonschema:"description=Base URL of the OneBot gateway (http(s):// or ws(s)://)"`
}

// prettyJSON 输出采用两空格缩进，key 排序，不转义 HTML
var prettyJSON = sonic.Config{SortMapKeys: true}.Froze()

func marshalOutput(_ context.Context, output interface{}) (string, error) {
	data, err := prettyJSON.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "序列化工具结果失败: %s", err.Error())
	}
	return string(data), nil
}

// unmarshalArgs 参数解析失败归为 InvalidArgument，而不是笼统的内部错误
func unmarshalArgs[T any]() utils.UnmarshalArguments {
	return func(_ context.Context, arguments string) (interface{}, error) {
		v := new(T)
		if arguments == "" {
			return v, nil
		}
		if err := sonic.UnmarshalString(arguments, v); err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "Invalid arguments: %s", err.Error())
		}
		return v, nil
	}
}

func inferTool[T, D any](name, desc string, fn utils.InvokeFunc[*T, D]) (tool.InvokableTool, error) {
	t, err := utils.InferTool(name, desc, fn,
		utils.WithUnmarshalArguments(unmarshalArgs[T]()),
		utils.WithMarshalOutput(marshalOutput),
	)
	if err != nil {
		return nil, fmt.Errorf("创建工具 %s 失败: %w", name, err)
	}
	return t, nil
}

// NewAll 创建全部 QQ 工具，顺序即对外展示的顺序
func NewAll() ([]tool.InvokableTool, error) {
	builders := []func() (tool.InvokableTool, error){
		NewGetRecentContactTool,
		NewSendGroupMsgTool,
		NewSendPrivateMsgTool,
		NewPublishQZoneTool,
	}
	all := make([]tool.InvokableTool, 0, len(builders))
	for _, build := range builders {
		t, err := build()
		if err != nil {
			return nil, err
		}
		all = append(all, t)
	}
	return all, nil
}

// gatewayPayload 把网关失败结果提升为 KindGateway 错误
func gatewayPayload(res *onebot.Result, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, &apperr.Error{Kind: apperr.KindGateway, Message: res.Message, RetCode: res.RetCode}
	}
	return res.Payload, nil
}
