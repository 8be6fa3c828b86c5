package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkpool/pkg/errors"
)

func TestPoolConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PoolConfig
		wantErr bool
	}{
		{"valid", PoolConfig{ChunkSize: 4}, false},
		{"zero chunk size", PoolConfig{ChunkSize: 0}, true},
		{"negative chunk size", PoolConfig{ChunkSize: -1}, true},
		{"negative initial", PoolConfig{ChunkSize: 4, InitialChunks: -1}, true},
		{"negative max", PoolConfig{ChunkSize: 4, MaxChunks: -1}, true},
		{"initial above max", PoolConfig{ChunkSize: 4, InitialChunks: 3, MaxChunks: 2}, true},
		{"bounded", PoolConfig{ChunkSize: 4, InitialChunks: 2, MaxChunks: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidParam(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBenchConfigValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Bench.ReleaseRatio = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cfg = Default()
	cfg.Bench.Rounds = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Bench.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Tracing.SampleRate = -0.1
	assert.Error(t, cfg.Validate())
}

func TestLoadFileWithEnvSubstitution(t *testing.T) {
	t.Setenv("CHUNKPOOL_TEST_SIZE", "16")

	path := filepath.Join(t.TempDir(), "chunkpool.yaml")
	content := `
pool:
  name: lights
  chunk_size: ${CHUNKPOOL_TEST_SIZE}
  max_chunks: 8
bench:
  objects: 100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lights", cfg.Pool.Name)
	assert.Equal(t, 16, cfg.Pool.ChunkSize)
	assert.Equal(t, 8, cfg.Pool.MaxChunks)
	assert.Equal(t, 100, cfg.Bench.Objects)
	// untouched sections keep their defaults
	assert.Equal(t, 5, cfg.Bench.Rounds)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool:\n  chunk_size: 0\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidParam(err))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	garbled := filepath.Join(t.TempDir(), "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("pool: [unterminated\n"), 0o600))
	_, err = LoadFile(garbled)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSubstituteEnvVarsDoesNotReexpandValues(t *testing.T) {
	t.Setenv("CHUNKPOOL_TEST_SELF", "${CHUNKPOOL_TEST_SELF}")
	t.Setenv("CHUNKPOOL_TEST_NAME", "lights")

	got := substituteEnvVars("name: ${CHUNKPOOL_TEST_SELF}\npool: ${CHUNKPOOL_TEST_NAME}-${CHUNKPOOL_TEST_UNSET}\ntail: ${open")
	assert.Equal(t, "name: ${CHUNKPOOL_TEST_SELF}\npool: lights-\ntail: ${open", got)
}

func TestSaveThenLoadFile(t *testing.T) {
	cfg := Default()
	cfg.Pool.Name = "particles"
	cfg.Pool.ChunkSize = 32
	cfg.Bench.Workers = 2

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	err = Save(filepath.Join(t.TempDir(), "missing-dir", "saved.yaml"), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
