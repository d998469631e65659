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
	"sync/atomic"

	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rateGroup 记录 Logger 当前绑定的限流分组。
type rateGroup struct {
	name    string
	limiter RateLimiter
}

// MLogger 在 zap.Logger 之上增加按分组限流的日志输出。
// 解码器在处理大批量文件时用它压制重复的告警。
type MLogger struct {
	*zap.Logger
	group atomic.Pointer[rateGroup]
}

// With 返回携带额外字段的新 Logger，字段在首次写入时才合并到 core。
// 新 Logger 沿用当前的限流分组。
func (l *MLogger) With(fields ...zap.Field) *MLogger {
	nl := &MLogger{
		Logger: l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return NewLazyWith(core, fields)
		})),
	}
	if g := l.group.Load(); g != nil {
		nl.group.Store(g)
	}
	return nl
}

// WithRateGroup 把 Logger 绑定到命名限流分组。
// 同名分组在进程内共享一个限流器，后一次调用的参数覆盖前一次。
func (l *MLogger) WithRateGroup(name string, creditPerSecond, maxBalance float64) *MLogger {
	rl := utils.NewRateLimiter(creditPerSecond, maxBalance)
	if actual, loaded := _namedRateLimiters.LoadOrStore(name, rl); loaded {
		rl = actual.(*utils.ReconfigurableRateLimiter)
		rl.Update(creditPerSecond, maxBalance)
	}
	l.group.Store(&rateGroup{name: name, limiter: rl})
	return l
}

// RateGroup 返回绑定的分组名，未绑定时为空。
func (l *MLogger) RateGroup() string {
	if g := l.group.Load(); g != nil {
		return g.name
	}
	return ""
}

func (l *MLogger) r() RateLimiter {
	if g := l.group.Load(); g != nil {
		return g.limiter
	}
	return R()
}

func (l *MLogger) rated(level zapcore.Level, cost float64, msg string, fields []zap.Field) bool {
	if !l.r().CheckCredit(cost) {
		return false
	}
	if ce := l.WithOptions(zap.AddCallerSkip(2)).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
	return true
}

// RatedDebug 在限流允许时以 Debug 级别输出，返回是否放行。
func (l *MLogger) RatedDebug(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.DebugLevel, cost, msg, fields)
}

// RatedInfo 同 RatedDebug，级别为 Info。
func (l *MLogger) RatedInfo(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.InfoLevel, cost, msg, fields)
}

// RatedWarn 同 RatedDebug，级别为 Warn。
func (l *MLogger) RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	return l.rated(zapcore.WarnLevel, cost, msg, fields)
}
