// Package loader 从磁盘并发加载 Marshal 文件：读取、解压、计算摘要并解码。
package loader

import (
	"context"
	"encoding/hex"
	"io/fs"
	"os"
	"time"

	"github.com/blang/semver/v4"
	"github.com/cockroachdb/errors"
	"github.com/zeebo/blake3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/rbmarshal-go/internal/compressor"
	"github.com/lk2023060901/rbmarshal-go/pkg/log"
	"github.com/lk2023060901/rbmarshal-go/pkg/marshal"
	"github.com/lk2023060901/rbmarshal-go/pkg/metrics"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/conc"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/hardware"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/retry"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/typeutil"
)

// Result 是一个文件的加载结果。并发 Load 同一路径的调用方共享同一个 Result，不应修改它。
type Result struct {
	Path  string
	Value marshal.Value
	// Digest 为磁盘原始字节的 BLAKE3-256 摘要（十六进制）。
	Digest      string
	Compression compressor.Kind
	Version     semver.Version
	// Size 为解压后送入解码器的字节数。
	Size int
	// Duplicate 表示此前已经加载过摘要相同的文件。
	Duplicate bool
}

// Stats 是加载器的累计计数。
type Stats struct {
	Loaded int64
	Failed int64
}

type loaderOption struct {
	decoderOpts []marshal.DecoderOption
	logger      *log.MLogger
}

// Option 用于配置加载器。
type Option func(opt *loaderOption)

// WithDecoderOptions 设置解码预算等选项。
func WithDecoderOptions(opts ...marshal.DecoderOption) Option {
	return func(opt *loaderOption) {
		opt.decoderOpts = append(opt.decoderOpts, opts...)
	}
}

// WithLogger 设置加载器使用的 Logger。
func WithLogger(logger *log.MLogger) Option {
	return func(opt *loaderOption) {
		opt.logger = logger
	}
}

// Loader 并发加载 Marshal 文件，可被多个 goroutine 共享。
type Loader struct {
	log.Binder

	cfg     Config
	accept  semver.Range
	decoder *marshal.Decoder
	pool    *conc.Pool[*Result]
	group   singleflight.Group
	digests *typeutil.ConcurrentSet[string]

	loaded atomic.Int64
	failed atomic.Int64
}

// New 创建加载器，配置非法时返回 ErrParameterInvalid。
func New(cfg Config, opts ...Option) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.initialize()

	opt := &loaderOption{}
	for _, o := range opts {
		o(opt)
	}
	accept, err := semver.ParseRange(cfg.Versions)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("loader.versions %q: %v", cfg.Versions, err)
	}
	decoder, err := marshal.NewDecoder(opt.decoderOpts...)
	if err != nil {
		return nil, err
	}

	pool := conc.NewPool[*Result](cfg.Workers,
		conc.WithConcealPanic(true),
		conc.WithPreAlloc(cfg.PreAllocWorkers),
		conc.WithIdleExpiry(cfg.WorkerIdleExpiry))

	l := &Loader{
		cfg:     cfg,
		accept:  accept,
		decoder: decoder,
		pool:    pool,
		digests: typeutil.NewConcurrentSet[string](),
	}
	l.BindModule("loader")
	if opt.logger != nil {
		l.SetLogger(opt.logger)
	}
	l.Logger().Debug("loader created",
		zap.Int("workers", cfg.Workers),
		zap.Int("maxFileSize", cfg.MaxFileSize),
		zap.Uint64("freeMemory", hardware.GetFreeMemoryCount()))
	return l, nil
}

// Config 返回生效的配置。
func (l *Loader) Config() Config {
	return l.cfg
}

// Stats 返回累计计数。共享执行只计一次。
func (l *Loader) Stats() Stats {
	return Stats{
		Loaded: l.loaded.Load(),
		Failed: l.failed.Load(),
	}
}

// Close 释放协程池。
func (l *Loader) Close() {
	l.pool.Release()
}

// Load 加载单个文件。同一路径上并发的调用只执行一次，结果共享。
func (l *Loader) Load(ctx context.Context, path string) (*Result, error) {
	v, err, shared := l.group.Do(path, func() (any, error) {
		return l.load(ctx, path)
	})
	if shared {
		metrics.LoaderFilesTotal.WithLabelValues(metrics.SharedLabel).Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// LoadAll 去重后在协程池中加载 paths。成功的结果按首次出现的顺序返回，
// 失败的文件不出现在结果中，其错误被合并后返回。
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]*Result, error) {
	ctx, span := log.StartIntent(ctx, "loader", "LoadAll")
	defer span.End()

	unique := typeutil.Unique(paths)
	log.Ctx(ctx).Debug("load files", zap.Int("files", len(unique)), zap.Int("requested", len(paths)))

	futures := make([]*conc.Future[*Result], 0, len(unique))
	for _, path := range unique {
		path := path
		futures = append(futures, l.pool.Submit(func() (*Result, error) {
			return l.Load(ctx, path)
		}))
	}

	results := make([]*Result, 0, len(unique))
	var errs []error
	for _, f := range futures {
		r, err := f.Await()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, r)
	}
	if len(errs) > 0 {
		log.Ctx(ctx).Warn("some files failed to load", zap.Int("failed", len(errs)), zap.Int("loaded", len(results)))
	}
	return results, merr.Combine(errs...)
}

func (l *Loader) load(ctx context.Context, path string) (*Result, error) {
	metrics.LoaderInflight.Inc()
	defer metrics.LoaderInflight.Dec()

	r, err := l.loadFile(ctx, path)
	if err != nil {
		l.failed.Inc()
		metrics.LoaderFilesTotal.WithLabelValues(metrics.FailLabel).Inc()
		l.Logger().RatedWarn(1, "load failed", log.FieldSource(path), zap.Error(err))
		return nil, errors.Wrapf(err, "load %s", path)
	}
	l.loaded.Inc()
	metrics.LoaderFilesTotal.WithLabelValues(metrics.SuccessLabel).Inc()
	return r, nil
}

func (l *Loader) loadFile(ctx context.Context, path string) (*Result, error) {
	raw, err := l.readFile(ctx, path)
	if err != nil {
		return nil, err
	}

	plain, kind, err := compressor.Open(raw, compressor.WithMaxSize(l.decoder.Config().MaxInputSize))
	if err != nil {
		return nil, err
	}

	major, minor, err := marshal.ReadHeader(plain)
	if err != nil {
		return nil, err
	}
	version := semver.Version{Major: uint64(major), Minor: uint64(minor)}
	if !l.accept(version) {
		return nil, merr.WrapErrUnsupportedVersion(major, minor, "outside accepted range "+l.cfg.Versions)
	}

	start := time.Now()
	value, err := l.decoder.Decode(plain)
	metrics.LoaderDecodeLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)
	metrics.LoaderInputBytes.WithLabelValues(string(kind)).Observe(float64(len(plain)))
	if err != nil {
		return nil, err
	}

	sum := blake3.Sum256(raw)
	digest := hex.EncodeToString(sum[:])
	duplicate := !l.digests.Insert(digest)

	log.Ctx(ctx).Debug("file loaded",
		log.FieldSource(path),
		zap.String("compression", string(kind)),
		zap.String("version", version.String()),
		zap.Int("size", len(plain)),
		zap.Bool("duplicate", duplicate))

	return &Result{
		Path:        path,
		Value:       value,
		Digest:      digest,
		Compression: kind,
		Version:     version,
		Size:        len(plain),
		Duplicate:   duplicate,
	}, nil
}

// readFile 读取文件，I/O 错误按退避策略重试；文件不存在、无权限、是目录或过大时不重试。
func (l *Loader) readFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, func() error {
		info, err := os.Stat(path)
		if err != nil {
			if errors.IsAny(err, fs.ErrNotExist, fs.ErrPermission) {
				return retry.Unrecoverable(merr.WrapErrIoFailed(path, err))
			}
			return merr.WrapErrIoFailed(path, err)
		}
		if info.IsDir() {
			return retry.Unrecoverable(merr.WrapErrParameterInvalidMsg("%s is a directory", path))
		}
		if info.Size() > int64(l.cfg.MaxFileSize) {
			return retry.Unrecoverable(merr.WrapErrInputTooLarge("bytes", int(info.Size()), l.cfg.MaxFileSize, path))
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return merr.WrapErrIoFailed(path, err)
		}
		return nil
	},
		retry.Attempts(l.cfg.RetryAttempts),
		retry.Sleep(l.cfg.RetryInterval),
		retry.RetryErr(merr.IsRetryableErr),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}
