package application

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	zlog "github.com/lk2023060901/rbmarshal-go/pkg/log"
	"github.com/lk2023060901/rbmarshal-go/pkg/util/merr"
)

const sampleConfig = `
log:
  level: error
marshal:
  max-depth: 64
  symbol-links: true
loader:
  workers: 2
  versions: ">=4.8.0"
logging:
  loader:
    level: debug
    file:
      rootpath: %s
      filename: loader.log
`

func writeConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunWithConfigFile(t *testing.T) {
	logDir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(sampleConfig, logDir))

	app := New(WithConfigFile(path))
	require.NoError(t, app.Run())
	defer app.Close()

	s := app.Settings()
	assert.Equal(t, 64, s.Decoder.MaxDepth)
	assert.True(t, s.Encoder.SymbolLinks)
	assert.Equal(t, 2, s.Loader.Workers)
	assert.Equal(t, ">=4.8.0", s.Loader.Versions)
	assert.Equal(t, path, app.Config().ConfigFileUsed())
	assert.Equal(t, zapcore.ErrorLevel, zlog.GetLevel())

	lg := app.Logger("loader")
	lg.Debug("module logger works")
	require.NoError(t, lg.Sync())
	data, err := os.ReadFile(filepath.Join(logDir, "loader.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "module logger works")

	assert.NotNil(t, app.Logger("unknown"))
}

func TestRunResolution(t *testing.T) {
	// 默认路径不存在时跳过。
	app := New(WithLogLevel("warn"))
	require.NoError(t, app.Run())
	assert.Equal(t, 0, app.Settings().Loader.Workers)
	assert.Equal(t, zapcore.WarnLevel, zlog.GetLevel())

	// 显式路径不存在时报错。
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(t, New(WithConfigFile(missing)).Run())

	t.Setenv(ConfigPathEnv, missing)
	assert.Error(t, New().Run())

	path := writeConfig(t, "loader:\n  workers: 3\n")
	t.Setenv(ConfigPathEnv, path)
	app = New()
	require.NoError(t, app.Run())
	assert.Equal(t, 3, app.Settings().Loader.Workers)
}

func TestRunInvalidSettings(t *testing.T) {
	for _, body := range []string{
		"marshal:\n  max-depth: -1\n",
		"loader:\n  versions: four\n",
	} {
		err := New(WithConfigFile(writeConfig(t, body))).Run()
		assert.ErrorIs(t, err, merr.ErrParameterInvalid, body)
	}
}
