package loader

import (
	"time"

	"github.com/blang/semver/v4"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/hardware"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

const (
	defaultMaxFileSize   = 256 << 20 // 256 MiB
	defaultVersions      = ">=4.8.0 <5.0.0"
	defaultRetryAttempts = 3
	defaultRetryInterval = 50 * time.Millisecond
)

// Config 是加载器配置，从配置文件的 loader 节读取。值为 0 表示使用默认值。
type Config struct {
	// Workers 为并发解码的协程数，默认等于 CPU 数。
	Workers int `mapstructure:"workers" json:"workers" yaml:"workers"`
	// PreAllocWorkers 为 true 时创建加载器即分配全部解码协程。
	PreAllocWorkers bool `mapstructure:"prealloc-workers" json:"prealloc-workers" yaml:"prealloc-workers"`
	// WorkerIdleExpiry 为空闲解码协程的回收间隔，0 使用协程池默认值，负数表示从不回收。
	WorkerIdleExpiry time.Duration `mapstructure:"worker-idle-expiry" json:"worker-idle-expiry" yaml:"worker-idle-expiry"`
	// MaxFileSize 为磁盘文件（压缩前）的字节上限，默认取 256 MiB 与内存的 1/8 中的较小值。
	MaxFileSize int `mapstructure:"max-file-size" json:"max-file-size" yaml:"max-file-size"`
	// Versions 为接受的格式版本范围，语法同 blang/semver 的 Range。
	Versions string `mapstructure:"versions" json:"versions" yaml:"versions"`
	// RetryAttempts 为读取文件的最大尝试次数。
	RetryAttempts uint `mapstructure:"retry-attempts" json:"retry-attempts" yaml:"retry-attempts"`
	// RetryInterval 为首次重试前的等待时间。
	RetryInterval time.Duration `mapstructure:"retry-interval" json:"retry-interval" yaml:"retry-interval"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	cfg := Config{}
	cfg.initialize()
	return cfg
}

// Validate 校验配置，负数与无法解析的版本范围返回 ErrParameterInvalid。
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return merr.WrapErrParameterInvalidMsg("loader.workers must not be negative, got %d", c.Workers)
	}
	if c.MaxFileSize < 0 {
		return merr.WrapErrParameterInvalidMsg("loader.max-file-size must not be negative, got %d", c.MaxFileSize)
	}
	if c.RetryInterval < 0 {
		return merr.WrapErrParameterInvalidMsg("loader.retry-interval must not be negative, got %s", c.RetryInterval)
	}
	if c.Versions != "" {
		if _, err := semver.ParseRange(c.Versions); err != nil {
			return merr.WrapErrParameterInvalidMsg("loader.versions %q: %v", c.Versions, err)
		}
	}
	return nil
}

func (c *Config) initialize() {
	if c.Workers <= 0 {
		c.Workers = hardware.GetCPUNum()
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = defaultMaxFileSize
		if mem := hardware.GetMemoryCount() / 8; mem > 0 && mem < uint64(c.MaxFileSize) {
			c.MaxFileSize = int(mem)
		}
	}
	if c.Versions == "" {
		c.Versions = defaultVersions
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaultRetryAttempts
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
}
