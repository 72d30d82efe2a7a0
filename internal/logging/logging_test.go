package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/tangzhangming/treeopt/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LogConfig
		level zapcore.Level
	}{
		{"production", config.LogConfig{Level: "info"}, zapcore.InfoLevel},
		{"development", config.LogConfig{Level: "debug", Development: true}, zapcore.DebugLevel},
		{"error", config.LogConfig{Level: "error"}, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if !l.Core().Enabled(tt.level) {
				t.Errorf("expected %s enabled", tt.level)
			}
			if tt.level > zapcore.DebugLevel && l.Core().Enabled(tt.level-1) {
				t.Errorf("expected %s disabled", tt.level-1)
			}
		})
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "chatty"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
