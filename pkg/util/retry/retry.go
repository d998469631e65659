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
	"runtime"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/rbmarshal-go/pkg/log"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return file + ":" + strconv.Itoa(line)
}

// Do 按指数退避重试 fn，直到成功、遇到不可恢复错误、次数耗尽或 ctx 结束。
// ctx 结束时优先返回最后一次执行的错误。
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := log.Ctx(ctx)
	c := newDefaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	var policy backoff.BackOff = c.backOff()
	if c.attempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(c.attempts-1))
	}
	policy = backoff.WithContext(policy, ctx)

	caller := getCaller(2)
	var (
		lastErr error
		retried uint
	)
	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRecoverable(err) {
			log.Warn("retry func failed, not be recoverable",
				zap.Uint("retried", retried),
				zap.Uint("attempt", c.attempts),
				zap.String("caller", caller))
			return backoff.Permanent(err)
		}
		if c.isRetryErr != nil && !c.isRetryErr(err) {
			log.Warn("retry func failed, not be retryable",
				zap.Uint("retried", retried),
				zap.Uint("attempt", c.attempts),
				zap.String("caller", caller))
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		if retried%4 == 0 {
			log.Warn("retry func failed",
				zap.Uint("retried", retried),
				zap.Duration("next", next),
				zap.Error(err),
				zap.String("caller", caller))
		}
		retried++
	}

	err := backoff.RetryNotify(op, policy, notify)
	if err == nil {
		return nil
	}
	if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) && lastErr != nil {
		log.Warn("retry func failed, ctx done",
			zap.Uint("retried", retried),
			zap.String("caller", caller))
		return lastErr
	}
	if IsRecoverable(err) && (c.isRetryErr == nil || c.isRetryErr(err)) {
		log.Warn("retry func failed, reach max retry",
			zap.Uint("attempt", c.attempts),
			zap.String("caller", caller))
	}
	return err
}

var errUnrecoverable = errors.New("unrecoverable error")

// Unrecoverable 标记 err 为不可恢复，Do 遇到后立即返回。
func Unrecoverable(err error) error {
	return merr.Combine(err, errUnrecoverable)
}

// IsRecoverable 判断 err 是否未被 Unrecoverable 标记。
func IsRecoverable(err error) bool {
	return !errors.Is(err, errUnrecoverable)
}
