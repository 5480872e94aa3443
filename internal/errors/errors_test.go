package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrRoomFull)
	suite.NotNil(err)
	suite.Equal(ErrRoomFull, err.Code)
	suite.Equal("房间已满", err.Message)
	suite.Empty(err.Details)

	err = New(ErrPlayerNotFound, "p-404")
	suite.Equal("玩家不存在", err.Message)
	suite.Equal("p-404", err.Details)

	err = New(ErrWrongPhase, "phase=voting", "op=roll")
	suite.Equal("phase=voting; op=roll", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInsufficientInfluence, "需要 %d, 当前 %d", 4, 2)
	suite.Equal(ErrInsufficientInfluence, err.Code)
	suite.Equal("需要 4, 当前 2", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装已有的AppError保留原始错误码
	appErr := New(ErrNotFound, "资源不存在")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNotFound, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("连接超时")
	wrappedErr := Wrapf(originalErr, ErrDatabaseConnect, "数据库 %s 连接失败", "sqlite")
	suite.Equal(ErrDatabaseConnect, wrappedErr.Code)
	suite.Equal("数据库 sqlite 连接失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrNotHost)
	suite.True(Is(err, ErrNotHost))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrNotHost))
	suite.False(Is(errors.New("标准错误"), ErrUnknown))

	// errors.Is 按错误码比较
	suite.True(errors.Is(err, New(ErrNotHost)))
	suite.False(errors.Is(err, New(ErrRoomFull)))
}

func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrAlreadyVoted, GetCode(New(ErrAlreadyVoted)))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{
		Code:    ErrNotFound,
		Message: "资源未找到",
	}
	suite.Equal("[1002] 资源未找到", err.Error())
	suite.Equal("资源未找到", err.UserMessage())

	err.Details = "room=ABC123"
	suite.Equal("[1002] 资源未找到: room=ABC123", err.Error())
	suite.Equal("资源未找到: room=ABC123", err.UserMessage())
}

func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	suite.Equal(originalErr, Wrap(originalErr, ErrUnknown).Unwrap())
	suite.Nil(New(ErrUnknown).Unwrap())
}

func (suite *ErrorsTestSuite) TestWithCause() {
	cause := errors.New("SQL语法错误")
	err := New(ErrDatabaseQuery).WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("SQL语法错误", err.Details)

	// 已有Details的情况
	err2 := New(ErrDatabaseQuery, "查询失败").WithCause(cause)
	suite.Equal("查询失败", err2.Details)
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrNotFound, 404},
		{ErrRoomNotFound, 404},
		{ErrPermissionDenied, 403},
		{ErrTimeout, 408},
		{ErrNotImplemented, 501},
		{ErrRateLimitExceeded, 429},
		{ErrRoomFull, 409},
		{ErrDatabaseConnect, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

func (suite *ErrorsTestSuite) TestIsGameRule() {
	suite.True(IsGameRule(New(ErrWrongPhase)))
	suite.True(IsGameRule(New(ErrContributionCap)))
	suite.False(IsGameRule(New(ErrDatabaseQuery)))
	suite.False(IsGameRule(nil))
}

func (suite *ErrorsTestSuite) TestIsRetryable() {
	for _, code := range []ErrorCode{ErrTimeout, ErrWebSocketConnect, ErrDatabaseConnect, ErrRateLimitExceeded} {
		suite.True(IsRetryable(New(code)), "错误码 %d 应该是可重试的", code)
	}
	for _, code := range []ErrorCode{ErrInvalidParam, ErrNotFound, ErrAlreadyVoted} {
		suite.False(IsRetryable(New(code)), "错误码 %d 不应该是可重试的", code)
	}
	suite.False(IsRetryable(nil))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
}

func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrRoomNotFound, "ZZZZZZ")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

// 测试游戏相关错误
func (suite *ErrorsTestSuite) TestGameErrors() {
	gameErrors := map[ErrorCode]string{
		ErrGameNotStarted:        "游戏未开始",
		ErrGameAlreadyStarted:    "游戏已经开始",
		ErrIdeologyTaken:         "意识形态已被其他玩家选择",
		ErrNotActivePlayer:       "不是当前行动玩家",
		ErrAlreadyVoted:          "本轮已投票",
		ErrInsufficientInfluence: "影响力不足",
		ErrNoTokenAvailable:      "没有可赠送的支持令牌",
		ErrNoActiveCrisis:        "当前没有危机",
	}

	for code, expectedMsg := range gameErrors {
		suite.Equal(expectedMsg, New(code).Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
