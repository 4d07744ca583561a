package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-mini-game-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig 測試預設配置
func TestDefaultConfig(t *testing.T) {
	cfg := internal.DefaultConfig()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, int64(0), cfg.Game.Seed)
}

// TestLoadConfig_FromFile 測試從 YAML 文件載入
func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 4000
  read_timeout: 5s
game:
  seed: 42
log:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := internal.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Std())
	// 未指定的欄位保留預設值
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout.Std())
	assert.Equal(t, int64(42), cfg.Game.Seed)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

// TestLoadConfig_EnvOverridesFile 測試 PORT 環境變數覆蓋
func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4000\n"), 0o644))

	t.Setenv("PORT", "5555")

	cfg, err := internal.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5555, cfg.Server.Port)
}

// TestLoadConfig_InvalidPortEnv 測試非法 PORT 環境變數
func TestLoadConfig_InvalidPortEnv(t *testing.T) {
	tests := []struct {
		name string
		port string
	}{
		{name: "not a number", port: "abc"},
		{name: "negative", port: "-1"},
		{name: "too large", port: "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PORT", tt.port)

			_, err := internal.LoadConfig("")
			assert.Error(t, err)
		})
	}
}

// TestLoadConfig_MissingFile 測試不存在的配置文件
func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := internal.LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}
