package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别，贯穿各层直到调度边界才转换为工具结果
type Kind string

const (
	KindConfiguration     Kind = "configuration"      // 缺少 token/host
	KindInvalidArgument   Kind = "invalid_argument"   // 工具参数缺失或非法
	KindUnknownTool       Kind = "unknown_tool"       // 未注册的工具名
	KindGateway           Kind = "gateway"            // retcode 非 0 或响应格式异常
	KindTransport         Kind = "transport"          // 连接、超时、TLS 失败
	KindSessionExtraction Kind = "session_extraction" // cookie 缺少必要字段
	KindFeedPublish       Kind = "feed_publish"       // QZone 发布请求失败
	KindInternal          Kind = "internal"
)

// Error 带类别的错误
type Error struct {
	Kind    Kind
	Message string
	RetCode int // 仅 KindGateway
	Status  int // HTTP 状态码，0 表示没有
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode 机器可读的错误码
func (e *Error) ErrorCode() string { return string(e.Kind) }

// New 创建指定类别的错误
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误，保留原错误链
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf 取出错误链上第一个带类别的错误的类别
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误链中是否有指定类别
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Message 返回面向用户的错误信息（去掉 eino 等中间层加的前缀）
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
