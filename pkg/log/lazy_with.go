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

package log

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// lazyWithCore 推迟 core.With 的字段编码，直到 Logger 第一次真正写日志。
// 解码器为每次调用派生 Logger，多数派生实例从不输出，延迟编码可以省掉这部分开销。
// 参考 https://github.com/uber-go/zap/issues/1426。
type lazyWithCore struct {
	core   atomic.Pointer[zapcore.Core]
	once   sync.Once
	fields []zapcore.Field
}

var _ zapcore.Core = (*lazyWithCore)(nil)

// NewLazyWith 包装 core，fields 在首次 Check/With/Sync 时合并。
func NewLazyWith(core zapcore.Core, fields []zapcore.Field) zapcore.Core {
	d := &lazyWithCore{fields: fields}
	d.core.Store(&core)
	return d
}

func (d *lazyWithCore) load() zapcore.Core {
	return *d.core.Load()
}

func (d *lazyWithCore) resolve() zapcore.Core {
	d.once.Do(func() {
		merged := d.load().With(d.fields)
		d.core.Store(&merged)
	})
	return d.load()
}

// Enabled 只读级别，不触发合并。
func (d *lazyWithCore) Enabled(level zapcore.Level) bool {
	return d.load().Enabled(level)
}

func (d *lazyWithCore) Sync() error {
	return d.resolve().Sync()
}

// Write 只会在 Check 之后被调用，此时字段已合并。
func (d *lazyWithCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return d.load().Write(entry, fields)
}

func (d *lazyWithCore) With(fields []zapcore.Field) zapcore.Core {
	return d.resolve().With(fields)
}

func (d *lazyWithCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return d.resolve().Check(e, ce)
}
