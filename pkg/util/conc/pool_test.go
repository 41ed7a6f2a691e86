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

package conc

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool(t *testing.T) {
	pool := NewDefaultPool[int](4)
	defer pool.Release()

	assert.Equal(t, 4, pool.Cap())

	futures := make([]*Future[int], 0, 16)
	for i := 0; i < 16; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * i, nil
		}))
	}
	for i, future := range futures {
		res, err := future.Await()
		assert.NoError(t, err)
		assert.Equal(t, i*i, res)
	}
}

func TestPoolSubmitError(t *testing.T) {
	pool := NewDefaultPool[int](1)
	defer pool.Release()

	wantErr := errors.New("mock error")
	future := pool.Submit(func() (int, error) {
		return 0, wantErr
	})
	assert.False(t, future.OK())
	assert.ErrorIs(t, future.Err(), wantErr)
}

func TestPoolWithPreHandler(t *testing.T) {
	var called atomic.Int32
	pool := NewPool[struct{}](2, WithPreHandler(func() {
		called.Add(1)
	}))
	defer pool.Release()

	future := pool.Submit(func() (struct{}, error) {
		return struct{}{}, nil
	})
	assert.True(t, future.OK())
	assert.EqualValues(t, 1, called.Load())
}

func TestPoolResize(t *testing.T) {
	pool := NewDefaultPool[struct{}](4)
	defer pool.Release()

	assert.Error(t, pool.Resize(0))
	assert.NoError(t, pool.Resize(8))
	assert.Equal(t, 8, pool.Cap())

	nb := NewPool[struct{}](1, WithNonBlocking(true))
	defer nb.Release()
	assert.Error(t, nb.Resize(2))
}

func TestGoAndAwaitAll(t *testing.T) {
	a := Go(func() (int, error) {
		time.Sleep(10 * time.Millisecond)
		return 1, nil
	})
	b := Go(func() (int, error) {
		return 2, nil
	})
	assert.NoError(t, AwaitAll(a, b))
	assert.Equal(t, 1, a.Value())
	assert.Equal(t, 2, b.Value())
}
