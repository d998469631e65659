package application

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/rbmarshal-go/internal/loader"
	zlog "github.com/lk2023060901/rbmarshal-go/pkg/log"
	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
	zviper "github.com/lk2023060901/rbmarshal-go/pkg/util/viper"
)

const (
	// DefaultConfigPath 不存在时静默跳过；显式指定的路径不存在则报错。
	DefaultConfigPath = "./config.yaml"
	// ConfigPathEnv 指定配置文件路径的环境变量。
	ConfigPathEnv = "RBM_CONFIG_FILE_PATH"
)

// Settings 是配置文件中与编解码相关的各节。
type Settings struct {
	Decoder marshal.DecoderConfig
	Encoder marshal.EncoderConfig
	Loader  loader.Config
}

type options struct {
	configPath string
	logLevel   string
}

// Option 用于配置 Application。
type Option func(*options)

// WithConfigFile 指定配置文件，优先级高于环境变量与默认路径。
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithLogLevel 覆盖全局日志级别。
func WithLogLevel(level string) Option {
	return func(o *options) {
		o.logLevel = level
	}
}

// Application 是 rbmarshal 进程的运行时容器，负责配置与日志。
type Application struct {
	opts     options
	cfg      *zviper.Config
	settings Settings
	loggers  map[string]*zlog.MLogger
}

// New 创建一个 Application。
func New(opts ...Option) *Application {
	a := &Application{}
	for _, o := range opts {
		o(&a.opts)
	}
	return a
}

// Run 按以下优先级解析配置文件路径并加载，然后初始化日志：
//  1. 默认：./config.yaml（不存在时跳过）
//  2. 环境变量：RBM_CONFIG_FILE_PATH
//  3. WithConfigFile
func (a *Application) Run() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.loadSettings(); err != nil {
		return err
	}
	return a.initLogging()
}

// Config 返回已加载的配置。
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Settings 返回从配置中读取的编解码设置。
func (a *Application) Settings() Settings {
	return a.settings
}

// Logger 返回配置中命名的 Logger，未知名称退回全局 Logger。
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With(zlog.FieldModule(name))
}

// Close 刷新并关闭日志输出。
func (a *Application) Close() {
	_ = zlog.Sync()
	zlog.Cleanup()
}

func (a *Application) resolveConfigPath() (path string, required bool) {
	path = DefaultConfigPath
	if envPath := strings.TrimSpace(os.Getenv(ConfigPathEnv)); envPath != "" {
		path, required = envPath, true
	}
	if a.opts.configPath != "" {
		path, required = a.opts.configPath, true
	}
	return path, required
}

func (a *Application) loadConfig() (*zviper.Config, error) {
	cfg := zviper.New()
	path, required := a.resolveConfigPath()
	if !required {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}
	if err := cfg.LoadFile(path); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %q", path)
	}
	return cfg, nil
}

// loadSettings 读取 marshal 与 loader 两节。
//
// 示例：
//
//	marshal:
//	  max-depth: 128
//	  symbol-links: true
//	loader:
//	  workers: 4
func (a *Application) loadSettings() error {
	var s Settings
	if err := a.cfg.UnmarshalKey("marshal", &s.Decoder); err != nil {
		return errors.Wrap(err, "read marshal config")
	}
	if err := a.cfg.UnmarshalKey("marshal", &s.Encoder); err != nil {
		return errors.Wrap(err, "read marshal config")
	}
	if err := s.Decoder.Validate(); err != nil {
		return err
	}
	if err := a.cfg.UnmarshalKey("loader", &s.Loader); err != nil {
		return errors.Wrap(err, "read loader config")
	}
	if err := s.Loader.Validate(); err != nil {
		return err
	}
	a.settings = s
	return nil
}

func (a *Application) initLogging() error {
	if err := a.initGlobalLogger(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLogger 以配置中的 log 节为基础，环境变量与 WithLogLevel 依次覆盖：
//   - RBM_LOG_LEVEL：日志级别（默认 "warn"）。
//   - RBM_LOG_FORMAT：日志格式（"console" 或 "json"）。
//   - RBM_LOG_FILE_DIR / RBM_LOG_FILE：文件日志目录与文件名。
func (a *Application) initGlobalLogger() error {
	cfg := &zlog.Config{Level: "warn", Format: "console", Stderr: true}
	if err := a.cfg.UnmarshalKey("log", cfg); err != nil {
		return errors.Wrap(err, "read log config")
	}
	cfg.Level = getenvDefault("RBM_LOG_LEVEL", cfg.Level)
	cfg.Format = getenvDefault("RBM_LOG_FORMAT", cfg.Format)
	cfg.File.RootPath = getenvDefault("RBM_LOG_FILE_DIR", cfg.File.RootPath)
	cfg.File.Filename = getenvDefault("RBM_LOG_FILE", cfg.File.Filename)
	if a.opts.logLevel != "" {
		cfg.Level = a.opts.logLevel
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig 根据 logging 节创建命名 Logger。
//
// 示例：
//
//	logging:
//	  loader:
//	    level: debug
//	    file:
//	      rootpath: ./logs
//	      filename: loader.log
func (a *Application) initModuleLoggersFromConfig() error {
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, err := zlog.NewLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}
