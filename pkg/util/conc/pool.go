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
	"fmt"
	"runtime"
	"sync"
	"time"

	ants "github.com/panjf2000/ants/v2"
)

// Pool 是 ants 协程池的泛型封装，任务通过 Future 返回结果。
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建一个容量为 cap 的协程池。
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		// 只有在参数非法时才会出错。
		panic(err)
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}
}

// NewDefaultPool 创建一个使用默认选项的协程池。
func NewDefaultPool[T any](cap int) *Pool[T] {
	return NewPool[T](cap, WithPreAlloc(true))
}

// Submit 提交一个任务，立即返回对应的 Future。
// 注意：任务内部的 panic 会被吞掉并转换成错误返回。
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		defer func() {
			if x := recover(); x != nil {
				future.err = fmt.Errorf("panicked with error: %v", x)
				panic(x) // throw panic out
			}
		}()
		if pool.opt.preHandler != nil {
			pool.opt.preHandler()
		}
		res, err := method()
		if err != nil {
			future.err = err
			return
		}
		future.value = res
	})
	if err != nil {
		future.err = err
		close(future.ch)
	}

	return future
}

// Cap 返回协程池容量。
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Running 返回正在执行任务的 worker 数。
func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

// Free 返回空闲的 worker 数。
func (pool *Pool[T]) Free() int {
	return pool.inner.Free()
}

// Release 关闭协程池并回收 worker。
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}

// ReleaseTimeout 在超时时间内关闭协程池。
func (pool *Pool[T]) ReleaseTimeout(timeout time.Duration) error {
	return pool.inner.ReleaseTimeout(timeout)
}

// Resize 动态调整协程池容量，nonBlocking 模式下不支持。
func (pool *Pool[T]) Resize(size int) error {
	if pool.opt.nonBlocking {
		return ants.ErrPoolOverload
	}
	if size <= 0 {
		return fmt.Errorf("cannot set pool size to non-positive value: %d", size)
	}
	pool.inner.Tune(size)
	return nil
}

var (
	encodePool     *Pool[any]
	encodePoolOnce sync.Once
)

// EncodePool 返回进程级共享的编码协程池，容量按 CPU 数分配。
func EncodePool() *Pool[any] {
	encodePoolOnce.Do(func() {
		encodePool = NewDefaultPool[any](runtime.NumCPU())
	})
	return encodePool
}
