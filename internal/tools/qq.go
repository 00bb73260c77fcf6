package tools

import (
	"context"
	"strconv"
	"strings"

	"qq-bridge/internal/apperr"
	"qq-bridge/internal/onebot"
	"qq-bridge/internal/qzone"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
)

// 工具名
const (
	NameGetRecentContact = "qq.get_recent_contact"
	NameSendGroupMsg     = "qq.send_group_msg"
	NameSendPrivateMsg   = "qq.send_private_msg"
	NamePublishQZone     = "qq.publish_qzone"
)

const defaultRecentContactCount = 10

// ID QQ 号或群号，兼容数字和字符串两种写法，发给网关时统一为字符串
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := sonic.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return apperr.Wrap(apperr.KindInvalidArgument, err, "invalid id %s", s)
	}
	*id = ID(s)
	return nil
}

// ==================== 最近联系人 ====================

// GetRecentContactInput 获取最近联系人的输入参数
type GetRecentContactInput struct {
	Count   int          `json:"count,omitempty" jsonschema:"description=Number of recent contacts to retrieve (default 10),default=10"`
	Context *CallContext `json:"_context,omitempty" jsonschema:"description=Context containing token and host"`
}

func getRecentContactFunc(ctx context.Context, input *GetRecentContactInput) (interface{}, error) {
	tc, err := mustToolContext(ctx)
	if err != nil {
		return nil, err
	}

	count := input.Count
	if count <= 0 {
		count = defaultRecentContactCount
	}

	out, err := gatewayPayload(tc.Gateway.Call(ctx, "get_recent_contact", map[string]interface{}{
		"count": count,
	}))
	logged := *input
	logged.Context = nil
	tc.LogToolCall(NameGetRecentContact, logged, out, err)
	return out, err
}

// NewGetRecentContactTool 创建最近联系人工具
func NewGetRecentContactTool() (tool.InvokableTool, error) {
	return inferTool(NameGetRecentContact, "Get recent messages/contacts", getRecentContactFunc)
}

// ==================== 群消息 ====================

// SendGroupMsgInput 发送群消息的输入参数
type SendGroupMsgInput struct {
	GroupID ID           `json:"group_id" jsonschema:"description=Target group ID"`
	Message string       `json:"message" jsonschema:"description=Content of the message"`
	Context *CallContext `json:"_context,omitempty" jsonschema:"description=Context containing token and host"`
}

func sendGroupMsgFunc(ctx context.Context, input *SendGroupMsgInput) (interface{}, error) {
	tc, err := mustToolContext(ctx)
	if err != nil {
		return nil, err
	}
	if input.GroupID == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "group_id is required")
	}
	if input.Message == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "message is required")
	}

	out, err := gatewayPayload(tc.Gateway.Call(ctx, "send_group_msg", map[string]interface{}{
		"group_id": string(input.GroupID),
		"message":  onebot.TextMessage(input.Message),
	}))
	logged := *input
	logged.Context = nil
	tc.LogToolCall(NameSendGroupMsg, logged, out, err)
	return out, err
}

// NewSendGroupMsgTool 创建群消息工具
func NewSendGroupMsgTool() (tool.InvokableTool, error) {
	return inferTool(NameSendGroupMsg, "Send a message to a group", sendGroupMsgFunc)
}

// ==================== 私聊消息 ====================

// SendPrivateMsgInput 发送私聊消息的输入参数
type SendPrivateMsgInput struct {
	UserID  ID           `json:"user_id" jsonschema:"description=Target user ID"`
	Message string       `json:"message" jsonschema:"description=Content of the message"`
	Context *CallContext `json:"_context,omitempty" jsonschema:"description=Context containing token and host"`
}

func sendPrivateMsgFunc(ctx context.Context, input *SendPrivateMsgInput) (interface{}, error) {
	tc, err := mustToolContext(ctx)
	if err != nil {
		return nil, err
	}
	if input.UserID == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "user_id is required")
	}
	if input.Message == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "message is required")
	}

	out, err := gatewayPayload(tc.Gateway.Call(ctx, "send_private_msg", map[string]interface{}{
		"user_id": string(input.UserID),
		"message": onebot.TextMessage(input.Message),
	}))
	logged := *input
	logged.Context = nil
	tc.LogToolCall(NameSendPrivateMsg, logged, out, err)
	return out, err
}

// NewSendPrivateMsgTool 创建私聊消息工具
func NewSendPrivateMsgTool() (tool.InvokableTool, error) {
	return inferTool(NameSendPrivateMsg, "Send a private message to a user", sendPrivateMsgFunc)
}

// ==================== QZone 说说 ====================

// PublishQZoneInput 发布说说的输入参数
type PublishQZoneInput struct {
	Content string       `json:"content" jsonschema:"description=Content of the post"`
	Context *CallContext `json:"_context,omitempty" jsonschema:"description=Context containing token and host"`
}

func publishQZoneFunc(ctx context.Context, input *PublishQZoneInput) (*qzone.PublishOutput, error) {
	tc, err := mustToolContext(ctx)
	if err != nil {
		return nil, err
	}
	if input.Content == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "content is required")
	}

	out, err := tc.Publisher.Publish(ctx, input.Content)
	logged := *input
	logged.Context = nil
	tc.LogToolCall(NamePublishQZone, logged, out, err)
	return out, err
}

// NewPublishQZoneTool 创建说说发布工具
func NewPublishQZoneTool() (tool.InvokableTool, error) {
	return inferTool(NamePublishQZone, "Publish a post to QZone", publishQZoneFunc)
}
