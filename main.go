package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"qq-bridge/internal/audit"
	"qq-bridge/internal/bridge"
	"qq-bridge/internal/config"
	"qq-bridge/internal/logger"
	"qq-bridge/internal/mcp"
	"qq-bridge/internal/server"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "qq-bridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "config/config.yaml", "配置文件路径（可选）")
	httpAddr := pflag.String("http", "", "启用 HTTP 接口并监听该地址")
	logLevel := pflag.String("log-level", "", "日志级别: debug, info, warn, error")
	pflag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if *logLevel != "" {
		cfg.App.LogLevel = *logLevel
	}
	if *httpAddr != "" {
		cfg.Server.Enabled = true
		cfg.Server.Addr = *httpAddr
	}

	// 初始化日志系统
	logger.Init(cfg.App.LogLevel, cfg.App.Debug, cfg.App.LogFile)
	defer func() { _ = zap.L().Sync() }()

	zap.L().Info("配置已加载", zap.String("path", *configPath),
		zap.Bool("gateway_configured", cfg.OneBot.BaseURL != "" && cfg.OneBot.Token != ""))

	// 审计，连接失败不影响工具调用
	var recorder audit.Recorder = audit.Nop{}
	var serverOpts []server.Option
	if cfg.Audit.Enabled {
		r, err := audit.NewMySQLRecorder(cfg.Audit.MySQL)
		if err != nil {
			zap.L().Warn("审计库不可用，调用记录只保留在内存", zap.Error(err))
		} else {
			recorder = r
			serverOpts = append(serverOpts, server.WithHistory(r))
		}
	}
	defer func() { _ = recorder.Close() }()

	dispatcher, err := bridge.New(cfg, bridge.WithRecorder(recorder))
	if err != nil {
		return fmt.Errorf("创建调度器失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动HTTP服务
	if cfg.Server.Enabled {
		httpServer := server.NewServer(cfg, dispatcher, version, serverOpts...)
		go httpServer.Start()
		defer httpServer.Stop()
	}

	mcpServer := mcp.NewServer(dispatcher, version)
	if err := mcpServer.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("MCP 服务异常退出: %w", err)
	}

	zap.L().Info("再见！")
	return nil
}
