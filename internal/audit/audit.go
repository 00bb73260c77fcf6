package audit

import (
	"context"
	"fmt"
	"time"

	"qq-bridge/internal/config"
	"qq-bridge/internal/utils"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MaxMessageLen 审计消息最大长度（字符）
const MaxMessageLen = 500

// CallLog 一次工具调用的审计记录，不落任何凭据和 cookie
type CallLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TraceID    string `gorm:"type:varchar(36);uniqueIndex" json:"trace_id"`
	Tool       string `gorm:"type:varchar(100);index" json:"tool"`
	OK         bool   `gorm:"index" json:"ok"`
	Kind       string `gorm:"type:varchar(50)" json:"kind,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Message    string `gorm:"type:varchar(500)" json:"message,omitempty"`
}

func (CallLog) TableName() string { return "tool_call_logs" }

// NewCallLog 构造审计记录，消息按字符截断
func NewCallLog(traceID, tool string, kind string, d time.Duration, message string) *CallLog {
	return &CallLog{
		TraceID:    traceID,
		Tool:       tool,
		OK:         kind == "",
		Kind:       kind,
		DurationMs: d.Milliseconds(),
		Message:    utils.Truncate(message, MaxMessageLen),
	}
}

// Recorder 审计记录器
type Recorder interface {
	Record(ctx context.Context, log *CallLog) error
	Close() error
}

// Nop 未启用审计时使用
type Nop struct{}

func (Nop) Record(context.Context, *CallLog) error { return nil }
func (Nop) Close() error                            { return nil }

// MySQLRecorder 基于 gorm 的审计记录器
type MySQLRecorder struct {
	db *gorm.DB
}

// NewMySQLRecorder 连接 MySQL 并迁移审计表
func NewMySQLRecorder(cfg config.MySQLConfig) (*MySQLRecorder, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 数据库失败: %w", err)
	}
	return NewRecorder(db)
}

// NewRecorder 使用已有的 gorm 连接
func NewRecorder(db *gorm.DB) (*MySQLRecorder, error) {
	if err := db.AutoMigrate(&CallLog{}); err != nil {
		return nil, fmt.Errorf("迁移审计表失败: %w", err)
	}
	zap.L().Info("审计表已就绪", zap.String("table", CallLog{}.TableName()))
	return &MySQLRecorder{db: db}, nil
}

// Record 写入一条记录
func (r *MySQLRecorder) Record(ctx context.Context, log *CallLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// Recent 最近 limit 条记录，按时间倒序
func (r *MySQLRecorder) Recent(ctx context.Context, tool string, limit int) ([]CallLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var logs []CallLog
	query := r.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if tool != "" {
		query = query.Where("tool = ?", tool)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// Close 关闭数据库连接
func (r *MySQLRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
