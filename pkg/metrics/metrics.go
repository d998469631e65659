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

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// rbmarshalNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	rbmarshalNamespace = "rbmarshal"

	// 以下为当前使用的通用标签名。
	outcomeLabelName     = "outcome"
	compressionLabelName = "compression"

	// outcome 标签的取值。
	SuccessLabel = "success"
	FailLabel    = "fail"
	SharedLabel  = "shared"
)

var (
	// buckets 为耗时直方图的桶划分，单位为毫秒。
	// 实际桶分布为：
	// [0.0625 0.125 0.25 0.5 1 2 4 8 16 32 64 128 256 512 1024 2048]
	buckets = prometheus.ExponentialBuckets(0.0625, 2, 16)

	// sizeBuckets 为数据大小的桶划分，单位为字节。
	sizeBuckets = prometheus.ExponentialBuckets(64, 4, 12)

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回 Register 使用的注册器，未注册时返回默认注册器。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 将所有指标注册到 r，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		RegisterLoaderMetrics(r)
		metricRegisterer = r
	})
}
