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
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrConvertUnsupported("chan")
	errors.Wrap(err, "failed to convert input")
	s.ErrorIs(err, ErrConvertUnsupported)
	s.Equal(Code(ErrConvertUnsupported), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))

	sameCodeErr := newSnapError("new error", ErrConvertUnsupported.errCode, false)
	s.True(sameCodeErr.Is(ErrConvertUnsupported))
}

func (s *ErrSuite) TestWrap() {
	// Convert 相关错误。
	s.ErrorIs(WrapErrConvertUnsupported("chan", "failed to convert field"), ErrConvertUnsupported)

	// Dump 相关错误。
	s.ErrorIs(WrapErrDumpInputInvalid("fixtures/a.json", os.ErrInvalid), ErrDumpInputInvalid)
	s.ErrorIs(WrapErrDumpIoFailed("fixtures/a.json", os.ErrClosed), ErrDumpIoFailed)
	s.ErrorIs(WrapErrDumpNoInput("fixtures", "nothing to dump"), ErrDumpNoInput)

	// 参数相关错误。
	s.ErrorIs(WrapErrParameterInvalid(8, 1, "failed to create"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidRange(1, 1<<16, 0, "concurrency should be in range"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("output_dir", "no output parameter"), ErrParameterMissing)
}

func (s *ErrSuite) TestWrapNil() {
	s.NoError(WrapErrDumpInputInvalid("fixtures/a.json", nil))
	s.NoError(WrapErrDumpIoFailed("fixtures/a.json", nil))
}

func (s *ErrSuite) TestRetryable() {
	s.False(IsRetryableErr(ErrDumpInputInvalid))
	s.True(IsRetryableErr(ErrDumpIoFailed))
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
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrDumpIoFailed("a.json", os.ErrClosed), WrapErrConvertUnsupported("chan"))
	s.Equal(Code(ErrConvertUnsupported), Code(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
