package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"qq-bridge/internal/audit"
	"qq-bridge/internal/bridge"
	"qq-bridge/internal/config"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dispatcher 工具调度能力
type Dispatcher interface {
	Tools() []bridge.ToolSpec
	Dispatch(ctx context.Context, name string, args map[string]interface{}) *bridge.ToolResult
	Recent(n int) []bridge.CallRecord
}

// History 持久化的调用记录
type History interface {
	Recent(ctx context.Context, tool string, limit int) ([]audit.CallLog, error)
}

// Server HTTP服务，和 MCP 共用同一个调度器
type Server struct {
	cfg        *config.Config
	dispatcher Dispatcher
	history    History
	version    string
	startedAt  time.Time
	server     *http.Server
}

// Option 服务选项
type Option func(*Server)

// WithHistory 启用审计库中的调用记录
func WithHistory(h History) Option {
	return func(s *Server) {
		s.history = h
	}
}

// NewServer 创建HTTP服务
func NewServer(cfg *config.Config, dispatcher Dispatcher, version string, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		version:    version,
		startedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler 路由
func (s *Server) Handler() http.Handler {
	if !s.cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	// stdout 只能有 MCP 帧，gin 的调试输出改走 zap
	ginLog := zap.NewStdLog(zap.L().Named("gin")).Writer()
	gin.DefaultWriter = ginLog
	gin.DefaultErrorWriter = ginLog

	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	// 健康检查
	r.GET("/health", s.healthCheck)

	api := r.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/tools", s.listTools)
		api.POST("/tools/:name", s.callTool)
	}
	return r
}

// Start 启动HTTP服务，阻塞到服务关闭
func (s *Server) Start() {
	addr := s.cfg.Server.Addr
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	zap.L().Info("HTTP服务启动", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().Error("HTTP服务异常", zap.Error(err))
	}
}

// Stop 停止HTTP服务
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}

// accessLog 请求日志走 zap，不能写 stdout
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Debug("HTTP请求",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"name":   "qq-bridge",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// getStatus 运行状态和最近调用
func (s *Server) getStatus(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > s.cfg.Debug.RecentCalls {
		limit = 20
	}

	resp := gin.H{
		"status":       "running",
		"version":      s.version,
		"started_at":   s.startedAt.Format(time.RFC3339),
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
		"tool_count":   len(s.dispatcher.Tools()),
		"recent_calls": s.dispatcher.Recent(limit),
		"config": gin.H{
			"gateway_configured": s.cfg.OneBot.BaseURL != "" && s.cfg.OneBot.Token != "",
			"audit_enabled":      s.cfg.Audit.Enabled,
		},
	}

	// 审计库可用时附带持久化记录，查询失败不影响状态接口
	if s.history != nil {
		logs, err := s.history.Recent(c.Request.Context(), c.Query("tool"), limit)
		if err != nil {
			zap.L().Warn("查询审计记录失败", zap.Error(err))
			resp["audit_error"] = "审计记录查询失败"
		} else {
			resp["audit_calls"] = logs
		}
	}

	c.JSON(http.StatusOK, resp)
}

// listTools 工具列表
func (s *Server) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.dispatcher.Tools()})
}

// callTool 请求体即工具参数；工具失败也返回 200，由 isError 区分
func (s *Server) callTool(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败"})
		return
	}

	var args map[string]interface{}
	if len(raw) > 0 {
		if err := sonic.Unmarshal(raw, &args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求体不是合法的 JSON 对象"})
			return
		}
	}

	res := s.dispatcher.Dispatch(c.Request.Context(), c.Param("name"), args)
	c.JSON(http.StatusOK, res)
}
