package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount  string
		wantErr bool
	}{
		{"0", false},
		{"999.99", false},
		{"999999.99", false},
		{"1000000", true},
		{"-0.01", true},
		{"10.005", true},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAttachmentName(t *testing.T) {
	assert.NoError(t, ValidateAttachmentName("invoice.PDF"))
	assert.NoError(t, ValidateAttachmentName("scan.jpeg"))
	assert.Error(t, ValidateAttachmentName("script.sh"))
	assert.Error(t, ValidateAttachmentName("noext"))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("jan.kowalski@example.com"))
	assert.Error(t, ValidateEmail("not-an-email"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "line one\nline two\tend", SanitizeString("line one\nline\x00 two\tend\x7f"))
	assert.Equal(t, "abc", SanitizeString("a\x01b\x1fc"))
}

func TestNewLogger(t *testing.T) {
	t.Run("writes json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "app.log")
		logger, err := NewLogger(LoggerConfig{Level: "info", OutputPath: path, Format: "json"})
		require.NoError(t, err)

		logger.Info("hello", zap.String("k", "v"))
		require.NoError(t, logger.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"hello"`)
		assert.Contains(t, string(data), `"timestamp"`)
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stdout"})
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(zap.DebugLevel))
		assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	})
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewKVLogger(zap.New(core))

	l.Info("Document transitioned", "document_id", int64(7), "action", "submit")
	l.Error("Transition refused", "action", "submit")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Document transitioned", entries[0].Message)
	assert.Equal(t, int64(7), entries[0].ContextMap()["document_id"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
