package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogCfgValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogCfg
		wantErr bool
	}{
		{name: "empty defaults", cfg: LogCfg{}},
		{name: "debug json", cfg: LogCfg{Level: "debug", Format: "json"}},
		{name: "warning alias", cfg: LogCfg{Level: "warning"}},
		{name: "console format", cfg: LogCfg{Format: "console"}},
		{name: "bad level", cfg: LogCfg{Level: "verbose"}, wantErr: true},
		{name: "bad format", cfg: LogCfg{Format: "xml"}, wantErr: true},
		{name: "negative rotation", cfg: LogCfg{MaxSizeMB: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewNoOutputsIsNop(t *testing.T) {
	logger, err := New(&LogCfg{})
	require.NoError(t, err)
	require.NotNil(t, logger)
	// Must be safe to use even with nothing wired.
	logger.Info("dropped")
}

func TestNewNilConfigDefaultsToConsole(t *testing.T) {
	logger, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewInvalidLevelFails(t *testing.T) {
	_, err := New(&LogCfg{Level: "verbose"})
	assert.Error(t, err)
}

func TestNewFileOutputWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticknet.log")
	logger, err := New(&LogCfg{Level: "info", Path: path})
	require.NoError(t, err)

	logger.Info("hello", zap.String("app", "ticknet"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "ticknet")
}
