// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrUnexpectedEOF(12)
	err = errors.Wrap(err, "failed to read string")
	s.ErrorIs(err, ErrUnexpectedEOF)
	s.Equal(Code(ErrUnexpectedEOF), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newCodecError("new error", ErrUnknownTag.errCode, false)
	s.True(sameCodeErr.Is(ErrUnknownTag))
}

func (s *ErrSuite) TestWrap() {
	// Decode 相关错误。
	s.ErrorIs(WrapErrUnsupportedVersion(3, 0), ErrUnsupportedVersion)
	s.ErrorIs(WrapErrUnexpectedEOF(0, "reading header"), ErrUnexpectedEOF)
	s.ErrorIs(WrapErrUnknownTag('z', 2), ErrUnknownTag)
	s.ErrorIs(WrapErrInvalidBackReference("symbol", 3, 1), ErrInvalidBackReference)
	s.ErrorIs(WrapErrUnsupportedType("bignum", 2), ErrUnsupportedType)
	s.ErrorIs(WrapErrRecursionLimitExceeded(8, 10), ErrRecursionLimitExceeded)
	s.ErrorIs(WrapErrInputTooLarge("bytes", 10, 5), ErrInputTooLarge)
	s.ErrorIs(WrapErrMalformedData("negative length", 4), ErrMalformedData)

	// Encode 相关错误。
	s.ErrorIs(WrapErrUnrepresentableValue("array length mismatch"), ErrUnrepresentableValue)
	s.ErrorIs(WrapErrIntegerOutOfRange(1<<40, -1<<32, 1<<32-1), ErrUnrepresentableValue)

	// IO 与参数相关错误。
	s.ErrorIs(WrapErrIoFailed("Map001.rxdata", errors.New("permission denied")), ErrIoFailed)
	s.Nil(WrapErrIoFailed("Map001.rxdata", nil))
	s.ErrorIs(WrapErrParameterInvalid(1, 0), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidRange(1, 10, 0), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("max depth %d", -1), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterTooLarge("input"), ErrParameterTooLarge)
	s.ErrorIs(WrapErrOperationNotSupported("bignum"), ErrOperationNotSupported)
}

func (s *ErrSuite) TestMessageFields() {
	err := WrapErrUnknownTag('z', 2)
	s.Contains(err.Error(), "tag=0x7a")
	s.Contains(err.Error(), "offset=2")

	err = WrapErrInvalidBackReference("object", 5, 2)
	s.Contains(err.Error(), "5 out of range 0 <= index <= 1")
}

func (s *ErrSuite) TestErrorType() {
	s.Equal(InputError, GetErrorType(WrapErrUnexpectedEOF(1)))
	s.Equal(InputError, GetErrorType(errors.Wrap(WrapErrUnknownTag(1, 2), "at $[0]")))
	s.Equal(SystemError, GetErrorType(WrapErrUnrepresentableValue("x")))
	s.Equal(SystemError, GetErrorType(errors.New("plain")))
	s.Equal(InputError, GetErrorType(WrapErrAsInputError(ErrParameterInvalid)))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestRetryable() {
	s.True(IsRetryableErr(WrapErrIoFailed("a", errors.New("busy"))))
	s.False(IsRetryableErr(WrapErrUnexpectedEOF(1)))
	s.False(IsRetryableErr(errors.New("plain")))
	s.True(IsCanceledOrTimeout(errors.Wrap(context.Canceled, "stop")))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())

	s.Nil(Combine(nil, nil))
	s.ErrorIs(Combine(nil, WrapErrUnexpectedEOF(1)), ErrUnexpectedEOF)
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
