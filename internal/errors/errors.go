package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrNotImplemented   ErrorCode = 1007

	// 房间与玩家 (2000-2019)
	ErrGameNotStarted     ErrorCode = 2000
	ErrGameAlreadyStarted ErrorCode = 2001
	ErrRoomFull           ErrorCode = 2002
	ErrDuplicatePlayer    ErrorCode = 2003
	ErrPlayerNotFound     ErrorCode = 2004
	ErrNotHost            ErrorCode = 2005
	ErrNotEnoughPlayers   ErrorCode = 2006
	ErrRoomNotFound       ErrorCode = 2007
	ErrRoomClosed         ErrorCode = 2008
	ErrNotJoined          ErrorCode = 2009

	// 意识形态 (2020-2029)
	ErrInvalidIdeology ErrorCode = 2020
	ErrIdeologyTaken   ErrorCode = 2021
	ErrIdeologyMissing ErrorCode = 2022

	// 回合与阶段 (2030-2049)
	ErrNotActivePlayer ErrorCode = 2030
	ErrWrongPhase      ErrorCode = 2031
	ErrInvalidOption   ErrorCode = 2032
	ErrNoCurrentCard   ErrorCode = 2033
	ErrTurnMismatch    ErrorCode = 2034
	ErrNotPendingAck   ErrorCode = 2035
	ErrGameOver        ErrorCode = 2036
	ErrPlayerNotAfk    ErrorCode = 2037

	// 投票与影响力 (2050-2059)
	ErrAlreadyVoted          ErrorCode = 2050
	ErrInvalidVote           ErrorCode = 2051
	ErrInsufficientInfluence ErrorCode = 2052

	// 支持令牌 (2060-2069)
	ErrNoTokenAvailable ErrorCode = 2060
	ErrInvalidTarget    ErrorCode = 2061

	// 危机 (2070-2079)
	ErrNoActiveCrisis      ErrorCode = 2070
	ErrContributionCap     ErrorCode = 2071
	ErrInvalidContribution ErrorCode = 2072
	ErrCrisisResolved      ErrorCode = 2073

	// 聊天 (2080-2089)
	ErrInvalidChat ErrorCode = 2080

	// 通信错误 (4000-4999)
	ErrWebSocketConnect ErrorCode = 4000
	ErrWebSocketSend    ErrorCode = 4001
	ErrWebSocketReceive ErrorCode = 4002
	ErrWebSocketClosed  ErrorCode = 4003
	ErrMessageFormat    ErrorCode = 4007

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002

	// 安全错误 (7000-7999)
	ErrRateLimitExceeded ErrorCode = 7004
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",
	ErrNotImplemented:   "功能未实现",

	ErrGameNotStarted:     "游戏未开始",
	ErrGameAlreadyStarted: "游戏已经开始",
	ErrRoomFull:           "房间已满",
	ErrDuplicatePlayer:    "玩家已在房间中",
	ErrPlayerNotFound:     "玩家不存在",
	ErrNotHost:            "只有房主可以执行此操作",
	ErrNotEnoughPlayers:   "玩家人数不足",
	ErrRoomNotFound:       "房间不存在",
	ErrRoomClosed:         "房间已关闭",
	ErrNotJoined:          "尚未加入房间",

	ErrInvalidIdeology: "无效的意识形态",
	ErrIdeologyTaken:   "意识形态已被其他玩家选择",
	ErrIdeologyMissing: "仍有玩家未选择意识形态",

	ErrNotActivePlayer: "不是当前行动玩家",
	ErrWrongPhase:      "当前阶段不允许此操作",
	ErrInvalidOption:   "无效的选项",
	ErrNoCurrentCard:   "当前没有决策卡",
	ErrTurnMismatch:    "回合编号不匹配",
	ErrNotPendingAck:   "无需确认回合结果",
	ErrGameOver:        "游戏已结束",
	ErrPlayerNotAfk:    "当前行动玩家未挂机且在线",

	ErrAlreadyVoted:          "本轮已投票",
	ErrInvalidVote:           "无效的投票",
	ErrInsufficientInfluence: "影响力不足",

	ErrNoTokenAvailable: "没有可赠送的支持令牌",
	ErrInvalidTarget:    "无效的目标玩家",

	ErrNoActiveCrisis:      "当前没有危机",
	ErrContributionCap:     "超过本次危机的贡献上限",
	ErrInvalidContribution: "无效的贡献数量",
	ErrCrisisResolved:      "危机已解决",

	ErrInvalidChat: "聊天内容无效",

	ErrWebSocketConnect: "WebSocket连接失败",
	ErrWebSocketSend:    "WebSocket发送失败",
	ErrWebSocketReceive: "WebSocket接收失败",
	ErrWebSocketClosed:  "WebSocket连接已关闭",
	ErrMessageFormat:    "消息格式错误",

	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",

	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",

	ErrRateLimitExceeded: "请求频率超限",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`            // 错误码
	Message string       `json:"message"`         // 错误消息
	Details string       `json:"details"`         // 详细信息
	Cause   error        `json:"-"`               // 原始错误
	Stack   []StackFrame `json:"stack,omitempty"` // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is 支持 errors.Is 按错误码比较
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// UserMessage 返回给客户端展示的消息（不含错误码）
func (e *AppError) UserMessage() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/statecraft/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more || len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrNotFound, e.Code == ErrRoomNotFound:
		return 404
	case e.Code >= 1001 && e.Code <= 1003:
		return 400
	case e.Code == ErrPermissionDenied:
		return 403
	case e.Code == ErrTimeout:
		return 408
	case e.Code == ErrNotImplemented:
		return 501
	case e.Code == ErrRateLimitExceeded:
		return 429
	case e.Code >= 2000 && e.Code <= 2099:
		return 409
	case e.Code >= 5000 && e.Code <= 5999:
		return 503
	default:
		return 500
	}
}

// IsGameRule 判断是否为游戏规则校验错误（只回复给请求方，不广播）
func IsGameRule(err error) bool {
	code := GetCode(err)
	return code >= 2000 && code <= 2099
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch GetCode(err) {
	case ErrTimeout,
		ErrWebSocketConnect,
		ErrDatabaseConnect,
		ErrRateLimitExceeded:
		return true
	default:
		return false
	}
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
