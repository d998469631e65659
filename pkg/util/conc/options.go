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
	"time"

	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/rbmarshal-go/pkg/log"
)

type poolOption struct {
	// preAlloc 在创建时一次性分配全部 worker。
	preAlloc bool
	// idleExpiry 为空闲 worker 的回收间隔；0 使用 ants 默认值，负数表示从不回收。
	idleExpiry time.Duration
	// concealPanic 为 true 时任务 panic 只记录日志，不再向上抛出。
	concealPanic bool
	panicHandler func(any)
	// preHandler 在每个任务执行前调用。
	preHandler func()
}

// antsOptions 把选项翻译成 ants 的配置。提交总是阻塞等待空闲 worker，
// 调用方据此保证 Submit 不会因池满而失败。
func (opt *poolOption) antsOptions() []ants.Option {
	result := []ants.Option{
		ants.WithPreAlloc(opt.preAlloc),
		ants.WithNonblocking(false),
		ants.WithPanicHandler(opt.handlePanic),
	}
	switch {
	case opt.idleExpiry < 0:
		result = append(result, ants.WithDisablePurge(true))
	case opt.idleExpiry > 0:
		result = append(result, ants.WithExpiryDuration(opt.idleExpiry))
	}
	return result
}

func (opt *poolOption) handlePanic(v any) {
	log.Error("conc pool task panicked", zap.Any("panic", v))
	if opt.panicHandler != nil {
		opt.panicHandler(v)
	}
	if !opt.concealPanic {
		panic(v)
	}
}

// PoolOption 配置 Pool。
type PoolOption func(opt *poolOption)

func defaultPoolOption() *poolOption {
	return &poolOption{}
}

// WithPreAlloc 让协程池在创建时分配全部 worker。
func WithPreAlloc(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.preAlloc = v
	}
}

// WithIdleExpiry 设置空闲 worker 的回收间隔，负数表示从不回收。
func WithIdleExpiry(d time.Duration) PoolOption {
	return func(opt *poolOption) {
		opt.idleExpiry = d
	}
}

func WithConcealPanic(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.concealPanic = v
	}
}

// WithPanicHandler 在任务 panic 时额外调用 fn，随后按 concealPanic 决定是否继续抛出。
func WithPanicHandler(fn func(any)) PoolOption {
	return func(opt *poolOption) {
		opt.panicHandler = fn
	}
}

func WithPreHandler(fn func()) PoolOption {
	return func(opt *poolOption) {
		opt.preHandler = fn
	}
}
