package errcode

import "errors"

// 错误码约定：
// - 0：无错误
// - 4xxx：业务类错误（调用方可修正请求后重试）
// - 5xxx：系统错误（需要中断流程）
const (
	OK          = 0
	BadRequest  = 4000
	Forbidden   = 4003
	NotFound    = 4004
	Conflict    = 4009
	SystemError = 5000
)

// Error 把错误码和面向调用方的消息绑在一起，服务层统一返回该类型。
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// New 构造带错误码的业务错误。
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf 提取错误链中的错误码；非业务错误一律视为系统错误。
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return SystemError
}
