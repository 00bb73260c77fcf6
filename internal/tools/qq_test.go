package tools

import (
	"context"
	"testing"

	"qq-bridge/internal/apperr"
	"qq-bridge/internal/onebot"
	"qq-bridge/internal/qzone"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	action string
	params map[string]interface{}
}

type fakeGateway struct {
	calls []call
	res   *onebot.Result
	err   error
}

func (g *fakeGateway) Call(_ context.Context, action string, params map[string]interface{}) (*onebot.Result, error) {
	g.calls = append(g.calls, call{action, params})
	return g.res, g.err
}

type fakePublisher struct {
	content string
	out     *qzone.PublishOutput
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, content string) (*qzone.PublishOutput, error) {
	p.content = content
	return p.out, p.err
}

func run(t *testing.T, tl tool.InvokableTool, tc *ToolContext, args string) (string, error) {
	t.Helper()
	return tl.InvokableRun(WithToolContext(context.Background(), tc), args)
}

func TestGetRecentContactDefaultsCount(t *testing.T) {
	gw := &fakeGateway{res: &onebot.Result{OK: true, Payload: []interface{}{map[string]interface{}{"peerUin": "1"}}}}
	tl, err := NewGetRecentContactTool()
	require.NoError(t, err)

	out, err := run(t, tl, &ToolContext{Gateway: gw}, `{}`)
	require.NoError(t, err)
	require.Len(t, gw.calls, 1)
	assert.Equal(t, "get_recent_contact", gw.calls[0].action)
	assert.Equal(t, 10, gw.calls[0].params["count"])
	assert.Equal(t, "[\n  {\n    \"peerUin\": \"1\"\n  }\n]", out)
}

func TestGetRecentContactNoMemoization(t *testing.T) {
	gw := &fakeGateway{res: &onebot.Result{OK: true, Payload: []interface{}{}}}
	tl, err := NewGetRecentContactTool()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := run(t, tl, &ToolContext{Gateway: gw}, `{"count":5}`)
		require.NoError(t, err)
	}
	require.Len(t, gw.calls, 3)
	for _, c := range gw.calls {
		assert.Equal(t, 5, c.params["count"])
	}
}

func TestSendGroupMsgWrapsTextSegment(t *testing.T) {
	gw := &fakeGateway{res: &onebot.Result{OK: true, Payload: map[string]interface{}{"message_id": float64(9)}}}
	tl, err := NewSendGroupMsgTool()
	require.NoError(t, err)

	out, err := run(t, tl, &ToolContext{Gateway: gw}, `{"group_id":"123","message":"hi","_context":{"token":"t"}}`)
	require.NoError(t, err)
	require.Len(t, gw.calls, 1)
	assert.Equal(t, "send_group_msg", gw.calls[0].action)

	body, err := sonic.MarshalString(gw.calls[0].params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"group_id":"123","message":[{"type":"text","data":{"text":"hi"}}]}`, body)
	assert.JSONEq(t, `{"message_id":9}`, out)
}

func TestSendPrivateMsgAcceptsNumericID(t *testing.T) {
	gw := &fakeGateway{res: &onebot.Result{OK: true}}
	tl, err := NewSendPrivateMsgTool()
	require.NoError(t, err)

	_, err = run(t, tl, &ToolContext{Gateway: gw}, `{"user_id":10001,"message":"yo"}`)
	require.NoError(t, err)
	assert.Equal(t, "10001", gw.calls[0].params["user_id"])
}

func TestSendMsgMissingArguments(t *testing.T) {
	gw := &fakeGateway{res: &onebot.Result{OK: true}}
	group, err := NewSendGroupMsgTool()
	require.NoError(t, err)
	private, err := NewSendPrivateMsgTool()
	require.NoError(t, err)

	_, err = run(t, group, &ToolContext{Gateway: gw}, `{"message":"hi"}`)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	assert.Equal(t, "group_id is required", apperr.Message(err))

	_, err = run(t, private, &ToolContext{Gateway: gw}, `{"user_id":"1"}`)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	assert.Equal(t, "message is required", apperr.Message(err))

	_, err = run(t, private, &ToolContext{Gateway: gw}, `{"user_id":true,"message":"x"}`)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	assert.Empty(t, gw.calls)
}

func TestGatewayFailureBecomesGatewayError(t *testing.T) {
	gw := &fakeGateway{res: &onebot.Result{OK: false, RetCode: 100, Message: "API Error: bad (retcode: 100)"}}
	tl, err := NewSendGroupMsgTool()
	require.NoError(t, err)

	_, err = run(t, tl, &ToolContext{Gateway: gw}, `{"group_id":"1","message":"x"}`)
	require.Error(t, err)
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindGateway, e.Kind)
	assert.Equal(t, 100, e.RetCode)
	assert.Equal(t, "API Error: bad (retcode: 100)", apperr.Message(err))
}

func TestTransportErrorPassesThrough(t *testing.T) {
	gw := &fakeGateway{err: apperr.New(apperr.KindTransport, "Request failed: timeout")}
	tl, err := NewGetRecentContactTool()
	require.NoError(t, err)

	_, err = run(t, tl, &ToolContext{Gateway: gw}, `{}`)
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(err))
}

func TestPublishQZone(t *testing.T) {
	pub := &fakePublisher{out: &qzone.PublishOutput{Message: "Publish successful", StatusCode: 200, Data: "<html>"}}
	tl, err := NewPublishQZoneTool()
	require.NoError(t, err)

	out, err := run(t, tl, &ToolContext{Publisher: pub}, `{"content":"今天天气不错"}`)
	require.NoError(t, err)
	assert.Equal(t, "今天天气不错", pub.content)
	assert.Equal(t, "{\n  \"message\": \"Publish successful\",\n  \"status_code\": 200,\n  \"data\": \"<html>\"\n}", out)

	_, err = run(t, tl, &ToolContext{Publisher: pub}, `{}`)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestMissingToolContext(t *testing.T) {
	tl, err := NewGetRecentContactTool()
	require.NoError(t, err)

	_, err = tl.InvokableRun(context.Background(), `{}`)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestToolSchemas(t *testing.T) {
	all, err := NewAll()
	require.NoError(t, err)
	require.Len(t, all, 4)

	wantRequired := map[string][]string{
		NameGetRecentContact: nil,
		NameSendGroupMsg:     {"group_id", "message"},
		NameSendPrivateMsg:   {"user_id", "message"},
		NamePublishQZone:     {"content"},
	}
	for _, tl := range all {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		want, ok := wantRequired[info.Name]
		require.True(t, ok, info.Name)

		js, err := info.ParamsOneOf.ToJSONSchema()
		require.NoError(t, err)
		raw, err := sonic.Marshal(js)
		require.NoError(t, err)

		var schema struct {
			Properties map[string]interface{} `json:"properties"`
			Required   []string               `json:"required"`
		}
		require.NoError(t, sonic.Unmarshal(raw, &schema))
		assert.Contains(t, schema.Properties, "_context", info.Name)
		assert.ElementsMatch(t, want, schema.Required, info.Name)
	}
}
