package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	loaderMetricSubsystem = "loader"
)

var (
	LoaderFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: rbmarshalNamespace,
			Subsystem: loaderMetricSubsystem,
			Name:      "files_total",
			Help:      "按结果统计的已加载文件数",
		}, []string{outcomeLabelName})

	LoaderInputBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: rbmarshalNamespace,
			Subsystem: loaderMetricSubsystem,
			Name:      "input_bytes",
			Help:      "解压后送入解码器的字节数",
			Buckets:   sizeBuckets,
		}, []string{compressionLabelName})

	LoaderDecodeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: rbmarshalNamespace,
			Subsystem: loaderMetricSubsystem,
			Name:      "decode_latency",
			Help:      "单个文件的解码耗时，单位毫秒",
			Buckets:   buckets,
		})

	LoaderInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: rbmarshalNamespace,
			Subsystem: loaderMetricSubsystem,
			Name:      "inflight",
			Help:      "正在加载的文件数",
		})
)

// RegisterLoaderMetrics 注册加载器相关指标。
func RegisterLoaderMetrics(registry prometheus.Registerer) {
	registry.MustRegister(LoaderFilesTotal)
	registry.MustRegister(LoaderInputBytes)
	registry.MustRegister(LoaderDecodeLatency)
	registry.MustRegister(LoaderInflight)
}
