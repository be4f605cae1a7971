package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func testViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := newConfig(testViper())
	require.NoError(t, err)
	assert.Equal(t, backendBadger, cfg.Backend)
	assert.Equal(t, ".mk", cfg.Dir)
	assert.Equal(t, 10*time.Millisecond, cfg.retryDelay)
	assert.Equal(t, int64(64<<20), cfg.valueLogFileSize)
	assert.Equal(t, 20, cfg.Retries)
}

func TestConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "mk.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
backend: localfs
dir: /var/lib/mk
cacheSize: 42
retryDelay: 1s
badger:
  valueLogFileSize: 16MiB
`), 0600))

	v := testViper()
	v.SetConfigFile(file)
	require.NoError(t, v.ReadInConfig())
	cfg, err := newConfig(v)
	require.NoError(t, err)
	assert.Equal(t, backendLocalFS, cfg.Backend)
	assert.Equal(t, "/var/lib/mk", cfg.Dir)
	assert.Equal(t, 42, cfg.CacheSize)
	assert.Equal(t, time.Second, cfg.retryDelay)
	assert.Equal(t, int64(16<<20), cfg.valueLogFileSize)
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("MK_BACKEND", "memory")
	t.Setenv("MK_BADGER_VALUELOGFILESIZE", "1GiB")

	cfg, err := newConfig(testViper())
	require.NoError(t, err)
	assert.Equal(t, backendMemory, cfg.Backend)
	assert.Equal(t, int64(1<<30), cfg.valueLogFileSize)
}

func TestConfigValidation(t *testing.T) {
	for _, tc := range []struct {
		name  string
		key   string
		value interface{}
	}{
		{"unknown backend", "backend", "mongo"},
		{"missing dir", "dir", ""},
		{"negative retries", "retries", -1},
		{"bad delay", "retryDelay", "soon"},
		{"bad size", "badger.valueLogFileSize", "huge"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v := testViper()
			v.Set(tc.key, tc.value)
			_, err := newConfig(v)
			assert.Error(t, err)
		})
	}

	v := testViper()
	v.Set("backend", backendLocalFS)
	v.Set("distributed", true)
	_, err := newConfig(v)
	assert.Error(t, err, "the localfs backend has no atomic counter")
}

func TestConfigGenerate(t *testing.T) {
	cfg, err := newConfig(testViper())
	require.NoError(t, err)
	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "mk.yaml")
	require.NoError(t, os.WriteFile(file, b, 0600))
	v := testViper()
	v.SetConfigFile(file)
	require.NoError(t, v.ReadInConfig())
	reread, err := newConfig(v)
	require.NoError(t, err)
	assert.Equal(t, cfg, reread)
}
