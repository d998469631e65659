package viper

import (
	"path/filepath"
	"strings"

	spfviper "github.com/spf13/viper"

	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

// Config 封装 spf13/viper 实例，对外提供精简的 YAML/JSON 配置加载接口。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config，未加载文件时所有读取都返回零值。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

// LoadFile 将 YAML 或 JSON 配置文件加载到 Config 中。
// 文件类型通过扩展名（.yaml/.yml/.json）推断，其他扩展名返回 ErrParameterInvalid。
func (c *Config) LoadFile(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		c.v.SetConfigType("yaml")
	case ".json":
		c.v.SetConfigType("json")
	default:
		return merr.WrapErrParameterInvalidMsg("unsupported config file type %q", ext)
	}
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// ConfigFileUsed 返回已加载的配置文件路径。
func (c *Config) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}

// IsSet 判断 key 是否在配置中出现。
func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Set 覆盖 key 的取值，优先级高于配置文件。
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针。
func (c *Config) Unmarshal(dst any) error {
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst，key 不存在时 dst 保持不变。
func (c *Config) UnmarshalKey(key string, dst any) error {
	if !c.v.IsSet(key) {
		return nil
	}
	return c.v.UnmarshalKey(key, dst)
}
