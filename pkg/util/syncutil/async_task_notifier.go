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

package syncutil

import (
	"context"
)

// AsyncTaskNotifier 用于协调后台任务的取消与结束。
//
// 使用方式：后台协程监听 Context()，结束前调用 Finish 上报结果；
// 外部调用 Cancel 发出停止信号，再通过 BlockUntilFinish 等待退出。
type AsyncTaskNotifier[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	future chan T
	result T
}

// NewAsyncTaskNotifier 创建一个新的 AsyncTaskNotifier。
func NewAsyncTaskNotifier[T any]() *AsyncTaskNotifier[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncTaskNotifier[T]{
		ctx:    ctx,
		cancel: cancel,
		future: make(chan T, 1),
	}
}

// Context 返回用于通知后台任务停止的上下文。
func (n *AsyncTaskNotifier[T]) Context() context.Context {
	return n.ctx
}

// Cancel 通知后台任务停止。
func (n *AsyncTaskNotifier[T]) Cancel() {
	n.cancel()
}

// Finish 由后台任务在退出前调用，上报最终结果。
// 只允许调用一次。
func (n *AsyncTaskNotifier[T]) Finish(result T) {
	n.future <- result
	close(n.future)
}

// BlockUntilFinish 阻塞直到后台任务调用 Finish。
func (n *AsyncTaskNotifier[T]) BlockUntilFinish() T {
	if r, ok := <-n.future; ok {
		n.result = r
	}
	return n.result
}

// BlockAndGetResult 阻塞等待并返回后台任务的结果。
func (n *AsyncTaskNotifier[T]) BlockAndGetResult() T {
	return n.BlockUntilFinish()
}
