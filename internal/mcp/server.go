package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"qq-bridge/internal/bridge"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ServerName 对宿主暴露的服务名
const ServerName = "tencent-qq"

// Dispatcher 工具调度能力
type Dispatcher interface {
	Tools() []bridge.ToolSpec
	Dispatch(ctx context.Context, name string, args map[string]interface{}) *bridge.ToolResult
}

// Server MCP stdio 服务
type Server struct {
	dispatcher Dispatcher
	mcp        *server.MCPServer
}

// NewServer 创建 MCP 服务并注册全部工具
func NewServer(d Dispatcher, version string) *Server {
	s := &Server{
		dispatcher: d,
		mcp: server.NewMCPServer(ServerName, version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	for _, spec := range d.Tools() {
		s.mcp.AddTool(mcp.NewToolWithRawSchema(spec.Name, spec.Description, json.RawMessage(spec.RawSchema())), s.handle)
	}
	zap.L().Info("已注册 MCP 工具", zap.Int("tool_count", len(d.Tools())))
	return s
}

// MCPServer 底层 mcp-go 服务
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// handle 失败一律作为 isError 结果返回，不返回协议错误
func (s *Server) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.dispatcher.Dispatch(ctx, req.Params.Name, req.GetArguments())
	return toCallToolResult(res), nil
}

func toCallToolResult(res *bridge.ToolResult) *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: res.IsError}
	for _, c := range res.Content {
		out.Content = append(out.Content, mcp.NewTextContent(c.Text))
	}
	return out
}

// ServeStdio 在 stdin/stdout 上提供服务，直到 ctx 结束或输入关闭
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen 在指定的读写端上提供服务
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(zap.L()))
	zap.L().Info("MCP stdio 服务已启动", zap.String("name", ServerName))
	return stdio.Listen(ctx, in, out)
}
