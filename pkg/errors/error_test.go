package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidParameter, "invalid parameter: %s", "test")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter: test", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeRobotNotFound, "robot not found", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeRobotNotFound, err.Code)
	suite.Equal("robot not found", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeRobotNotFound, cause, "robot not found: %s", "r-1")
	suite.NotNil(err)
	suite.Equal(ErrCodeRobotNotFound, err.Code)
	suite.Equal("robot not found: r-1", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeRobotNotFound, "robot not found", cause)
	suite.Equal("[200] data not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeRobotNotFound, "robot not found", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal(ErrCodeInvalidParameter, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeRobotNotFound, "robot not found")
	err := Wrap(ErrCodeOrderFailed, "order failed", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeOrderFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.True(HasCode(err, ErrCodeInvalidParameter))
	suite.False(HasCode(err, ErrCodeRobotNotFound))
}

func (suite *ErrorTestSuite) TestIsError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeRobotNotFound, "robot not found", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	var codedErr *Error
	suite.True(As(err, &codedErr))
	suite.Equal(ErrCodeInvalidParameter, codedErr.Code)
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidParameter)
	suite.Equal(ErrorCode(201), ErrCodeRobotNotFound)
	suite.Equal(ErrorCode(300), ErrCodeInstrumentNotFound)
	suite.Equal(ErrorCode(500), ErrCodeOrderFailed)
	suite.Equal(ErrorCode(700), ErrCodeMarketDataParseFailed)
	suite.Equal(ErrorCode(800), ErrCodeCallbackFailed)
}

func (suite *ErrorTestSuite) TestIsMatchesCodeSentinel() {
	err := Wrap(ErrCodeInstrumentNotFound, "instrument BTCUSDT not found", errors.New("404"))
	wrapped := Wrap(ErrCodeStreamOpenFailed, "subscribe failed", err)

	suite.True(Is(wrapped, New(ErrCodeInstrumentNotFound, "")))
	suite.False(Is(wrapped, New(ErrCodeOrderFailed, "")))
	suite.False(Is(wrapped, New(ErrCodeInstrumentNotFound, "another message")))
}

func (suite *ErrorTestSuite) TestHasCodeInChain() {
	inner := New(ErrCodeInstrumentNotFound, "unknown instrument")
	outer := Wrap(ErrCodeStreamOpenFailed, "subscribe failed", inner)

	suite.False(HasCode(outer, ErrCodeInstrumentNotFound))
	suite.True(HasCodeInChain(outer, ErrCodeInstrumentNotFound))
	suite.True(HasCodeInChain(outer, ErrCodeStreamOpenFailed))
	suite.False(HasCodeInChain(errors.New("plain"), ErrCodeStreamOpenFailed))
	suite.False(HasCodeInChain(nil, ErrCodeStreamOpenFailed))
}

func (suite *ErrorTestSuite) TestIsTransient() {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "order placement", err: New(ErrCodeOrderFailed, "x"), expected: true},
		{name: "broker unavailable", err: New(ErrCodeBrokerUnavailable, "x"), expected: true},
		{name: "query failed", err: New(ErrCodeQueryFailed, "x"), expected: true},
		{name: "invalid price band", err: New(ErrCodeInvalidPriceBand, "x"), expected: false},
		{name: "plain error", err: errors.New("x"), expected: false},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.Equal(tt.expected, IsTransient(tt.err))
		})
	}
}
