package onebot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"qq-bridge/internal/apperr"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// callWS 通过 WebSocket 调用一次 OneBot API。
// 每次调用单独建连，读到 echo 匹配的响应后关闭，期间收到的事件推送直接丢弃
func (c *Client) callWS(ctx context.Context, action string, params map[string]interface{}) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	dialer := websocket.Dialer{
		Proxy:            nil,
		HandshakeTimeout: c.timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, c.baseURL, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, transportError(err, status)
	}
	defer conn.Close()

	// ctx 取消时打断阻塞中的读
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	echo := uuid.New().String()
	req := map[string]interface{}{
		"action": action,
		"params": params,
		"echo":   echo,
	}
	data, err := sonic.Marshal(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransport, err, "Request failed: %s", err.Error())
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, transportError(err, 0)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, transportError(fmt.Errorf("API调用超时: %s: %w", action, ctx.Err()), 0)
			}
			return nil, transportError(err, 0)
		}

		var frame map[string]interface{}
		if err := sonic.Unmarshal(message, &frame); err != nil {
			zap.L().Debug("忽略无法解析的帧", zap.Error(err))
			continue
		}
		// 没有 echo 的是事件推送
		if fmt.Sprint(frame["echo"]) != echo {
			continue
		}

		if rc, has := frame["retcode"]; has {
			return classifyEnvelope(frame, rc), nil
		}
		return failure(0, "Unexpected response format"), nil
	}
}
