// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestDo(t *testing.T) {
	ctx := context.Background()

	n := 0
	testFn := func() error {
		if n < 3 {
			n++
			return errors.New("some error")
		}
		return nil
	}

	err := Do(ctx, testFn, Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAttempts(t *testing.T) {
	ctx := context.Background()

	n := 0
	testFn := func() error {
		n++
		return errors.New("some error")
	}

	err := Do(ctx, testFn, Attempts(3), Sleep(time.Millisecond))
	assert.Error(t, err)
	assert.Equal(t, 3, n)
}

func TestUnrecoverable(t *testing.T) {
	ctx := context.Background()

	n := 0
	mockErr := errors.New("some error")
	testFn := func() error {
		n++
		return Unrecoverable(mockErr)
	}

	err := Do(ctx, testFn, Sleep(time.Millisecond))
	assert.ErrorIs(t, err, mockErr)
	assert.Equal(t, 1, n)
}

func TestRetryErr(t *testing.T) {
	ctx := context.Background()

	mockErr := errors.New("not retryable")
	n := 0
	testFn := func() error {
		n++
		return mockErr
	}

	err := Do(ctx, testFn, Sleep(time.Millisecond), RetryErr(func(err error) bool {
		return !errors.Is(err, mockErr)
	}))
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	testFn := func() error {
		cancel()
		return errors.New("some error")
	}

	err := Do(ctx, testFn, Sleep(100*time.Millisecond))
	assert.Error(t, err)
}

func TestContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	testFn := func() error {
		return errors.New("some error")
	}

	err := Do(ctx, testFn, Sleep(50*time.Millisecond))
	assert.Error(t, err)
}

func TestHandle(t *testing.T) {
	ctx := context.Background()

	n := 0
	testFn := func() (bool, error) {
		if n < 2 {
			n++
			return true, errors.New("retryable")
		}
		return false, nil
	}

	err := Handle(ctx, testFn, Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	stopFn := func() (bool, error) {
		return false, errors.New("fatal")
	}
	err = Handle(ctx, stopFn, Sleep(time.Millisecond))
	assert.Error(t, err)
}
